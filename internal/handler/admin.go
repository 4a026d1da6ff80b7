package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/account-service/internal/middleware"
	"github.com/iliyamo/account-service/internal/model"
	"github.com/iliyamo/account-service/internal/service"
)

// AdminService is the administrator surface.
type AdminService interface {
	ListUsers(ctx context.Context, page, limit int) (service.UserPage, error)
	ChangeRole(ctx context.Context, actorID, userID uint64, role model.Role) (model.User, error)
	SetActivation(ctx context.Context, actorID, userID uint64, active bool, until *time.Time) (model.User, error)
	Stats(ctx context.Context) (model.UserStats, error)
	RecentActivities(ctx context.Context, limit int) ([]model.Activity, error)
	CurrentSettings(ctx context.Context) (model.Settings, error)
	UpdateSetting(ctx context.Context, name string, value bool) (model.Settings, error)
	Maintenance(ctx context.Context, op string) (service.MaintenanceResult, error)
}

// AdminHandler serves /v1/admin. Invalidate, when set, drops cached
// dashboard responses after a mutation.
type AdminHandler struct {
	Svc        AdminService
	Invalidate func(ctx context.Context)
}

func NewAdminHandler(svc AdminService, invalidate func(ctx context.Context)) *AdminHandler {
	if svc == nil {
		panic("nil service passed to NewAdminHandler")
	}
	return &AdminHandler{Svc: svc, Invalidate: invalidate}
}

func (h *AdminHandler) invalidate(ctx context.Context) {
	if h.Invalidate != nil {
		h.Invalidate(ctx)
	}
}

type roleReq struct {
	Role string `json:"role" validate:"required,oneof=USER ADMIN"`
}
type activationReq struct {
	IsActive    *bool      `json:"isActive" validate:"required"`
	ActiveUntil *time.Time `json:"activeUntil"`
}
type settingReq struct {
	SettingName string `json:"settingName" validate:"required"`
	Value       *bool  `json:"value" validate:"required"`
}
type maintenanceReq struct {
	Operation string `json:"operation" validate:"required"`
}

type pagination struct {
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Pages int `json:"pages"`
}

// ListUsers pages through all users, newest first.
func (h *AdminHandler) ListUsers(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	p, err := h.Svc.ListUsers(ctx, queryInt(c, "page"), queryInt(c, "limit"))
	if err != nil {
		return respondError(c, err)
	}
	users := make([]userPart, 0, len(p.Users))
	for _, u := range p.Users {
		users = append(users, toUserPart(u))
	}
	return c.JSON(http.StatusOK, echo.Map{
		"users":      users,
		"pagination": pagination{Total: p.Total, Page: p.Page, Limit: p.Limit, Pages: p.Pages},
	})
}

// ChangeRole sets USER or ADMIN. Demoting the last ADMIN fails with 400.
func (h *AdminHandler) ChangeRole(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	var req roleReq
	if ok, err := bind(c, &req); !ok {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Svc.ChangeRole(ctx, middleware.UserID(c), id, model.Role(req.Role))
	if err != nil {
		return respondError(c, err)
	}
	h.invalidate(ctx)
	return c.JSON(http.StatusOK, echo.Map{"message": "User role updated successfully", "user": toUserPart(u)})
}

// SetActivation enables or disables an account, optionally until a time.
func (h *AdminHandler) SetActivation(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	var req activationReq
	if ok, err := bind(c, &req); !ok {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Svc.SetActivation(ctx, middleware.UserID(c), id, *req.IsActive, req.ActiveUntil)
	if err != nil {
		return respondError(c, err)
	}
	h.invalidate(ctx)
	msg := "User deactivated successfully"
	if u.IsActive {
		msg = "User activated successfully"
	}
	return c.JSON(http.StatusOK, echo.Map{"message": msg, "user": toUserPart(u)})
}

// Stats returns the dashboard counters.
func (h *AdminHandler) Stats(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	st, err := h.Svc.Stats(ctx)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, st)
}

// Activities lists recent activity across all users.
func (h *AdminHandler) Activities(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	list, err := h.Svc.RecentActivities(ctx, queryInt(c, "limit"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"activities": toActivityParts(list)})
}

func (h *AdminHandler) Settings(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	st, err := h.Svc.CurrentSettings(ctx)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"settings": st})
}

// UpdateSetting persists one named flag.
func (h *AdminHandler) UpdateSetting(c echo.Context) error {
	var req settingReq
	if ok, err := bind(c, &req); !ok {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	st, err := h.Svc.UpdateSetting(ctx, req.SettingName, *req.Value)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Setting updated successfully", "settings": st})
}

// Maintenance runs backupDatabase or cleanSessions.
func (h *AdminHandler) Maintenance(c echo.Context) error {
	var req maintenanceReq
	if ok, err := bind(c, &req); !ok {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	res, err := h.Svc.Maintenance(ctx, req.Operation)
	if err != nil {
		return respondError(c, err)
	}
	body := echo.Map{"message": res.Message, "operation": res.Operation}
	switch res.Operation {
	case service.OpBackupDatabase:
		body["recordsCaptured"] = res.RecordsCaptured
	case service.OpCleanSessions:
		body["cleanedCount"] = res.CleanedCount
	}
	return c.JSON(http.StatusOK, body)
}
