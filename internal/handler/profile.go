package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/account-service/internal/imaging"
	"github.com/iliyamo/account-service/internal/middleware"
	"github.com/iliyamo/account-service/internal/model"
	"github.com/iliyamo/account-service/internal/service"
)

// ProfileService reads and edits the caller's own account.
type ProfileService interface {
	Profile(ctx context.Context, userID uint64) (model.User, error)
	UpdateProfile(ctx context.Context, userID uint64, in service.ProfileInput) (model.User, error)
	UpdateProfileImage(ctx context.Context, userID uint64, data []byte) (string, error)
	Activities(ctx context.Context, userID uint64, limit int) ([]model.Activity, error)
}

type ProfileHandler struct {
	Svc ProfileService
}

func NewProfileHandler(svc ProfileService) *ProfileHandler {
	if svc == nil {
		panic("nil service passed to NewProfileHandler")
	}
	return &ProfileHandler{Svc: svc}
}

type profileReq struct {
	Username *string `json:"username" validate:"omitempty,min=3,max=30"`
	Name     *string `json:"name" validate:"omitempty,min=2,max=50"`
	Email    *string `json:"email" validate:"omitempty,email"`
}

type profileResp struct {
	ID           uint64 `json:"id"`
	Email        string `json:"email"`
	Username     string `json:"username"`
	Name         string `json:"name"`
	ProfileImage string `json:"profileImage"`
	IsVerified   bool   `json:"isVerified"`
}

func toProfileResp(u model.User) profileResp {
	return profileResp{
		ID:           u.ID,
		Email:        u.Email,
		Username:     model.Str(u.Username),
		Name:         model.Str(u.Name),
		ProfileImage: model.Str(u.ProfileImage),
		IsVerified:   u.IsVerified,
	}
}

func (h *ProfileHandler) Get(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Svc.Profile(ctx, middleware.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toProfileResp(u))
}

// Update applies a partial profile change. Email or username owned by
// another account is rejected with 400.
func (h *ProfileHandler) Update(c echo.Context) error {
	var req profileReq
	if ok, err := bind(c, &req); !ok {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Svc.UpdateProfile(ctx, middleware.UserID(c), service.ProfileInput{
		Email:    req.Email,
		Username: req.Username,
		Name:     req.Name,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Profile updated successfully", "user": toProfileResp(u)})
}

// UploadImage stores a new avatar from the multipart field profileImage.
func (h *ProfileHandler) UploadImage(c echo.Context) error {
	fh, err := c.FormFile("profileImage")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "No file uploaded"})
	}
	if fh.Size > imaging.MaxUploadBytes {
		return respondError(c, imaging.ErrTooLarge)
	}
	f, err := fh.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "could not read upload"})
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, imaging.MaxUploadBytes+1))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "could not read upload"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	url, err := h.Svc.UpdateProfileImage(ctx, middleware.UserID(c), data)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Profile image updated successfully", "imageUrl": url})
}

// Activities lists the caller's recent account activity.
func (h *ProfileHandler) Activities(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	list, err := h.Svc.Activities(ctx, middleware.UserID(c), queryInt(c, "limit"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"activities": toActivityParts(list)})
}
