package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/account-service/internal/config"
	"github.com/iliyamo/account-service/internal/middleware"
	"github.com/iliyamo/account-service/internal/service"
	"github.com/iliyamo/account-service/internal/utils"
)

// AuthService is the account flow behind the auth endpoints.
type AuthService interface {
	Register(ctx context.Context, in service.RegisterInput) (service.RegisterResult, error)
	ResendCode(ctx context.Context, email string) error
	Verify(ctx context.Context, email, code string) (service.VerifyResult, error)
	UserExists(ctx context.Context, email string) (bool, error)
	ForgotPassword(ctx context.Context, email string) (bool, error)
	ResetPassword(ctx context.Context, email, code, password string) error
	Login(ctx context.Context, email, password string) (service.Session, error)
	Refresh(ctx context.Context, raw string) (service.Session, error)
	RefreshAccess(ctx context.Context, raw string) (utils.AccessToken, utils.SessionClaims, error)
	RevokeRefresh(ctx context.Context, raw string) error
	RevokeAll(ctx context.Context, userID uint64) error
	CurrentSession(ctx context.Context, userID uint64) (utils.AccessToken, utils.SessionClaims, error)
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg config.Config
	Svc AuthService
}

func NewAuthHandler(cfg config.Config, svc AuthService) *AuthHandler {
	if svc == nil {
		panic("nil service passed to NewAuthHandler")
	}
	return &AuthHandler{Cfg: cfg, Svc: svc}
}

// ----- DTOs -----

type registerReq struct {
	Username string `json:"username" validate:"required,min=3,max=30"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Name     string `json:"name" validate:"omitempty,min=2,max=50"`
}
type emailReq struct {
	Email string `json:"email" validate:"required,email"`
}
type verifyReq struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,numeric"`
}
type forgotReq struct {
	Email           string `json:"email" validate:"required,email"`
	CheckUserExists bool   `json:"checkUserExists"`
}
type resetReq struct {
	Email    string `json:"email" validate:"required,email"`
	Code     string `json:"code" validate:"required,numeric"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}
type loginReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type authResp struct {
	User    userPart  `json:"user"`
	Access  tokenPart `json:"access"`
	Refresh tokenPart `json:"refresh"`
}

func (h *AuthHandler) sessionResponse(c echo.Context, status int, s service.Session) error {
	setSessionCookies(c, h.Cfg, s.Access, &s.Refresh)
	return c.JSON(status, authResp{
		User:    toUserPart(s.User),
		Access:  tokenPart{Token: s.Access.Token, Expires: s.Access.Exp},
		Refresh: tokenPart{Token: s.Refresh.Raw, Expires: s.Refresh.Exp},
	})
}

// Register creates an unverified account and mails the verification code.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if ok, err := bind(c, &req); !ok {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	res, err := h.Svc.Register(ctx, service.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		return respondError(c, err)
	}
	msg := "Registration successful. Please check your email for the verification code."
	if !res.EmailSent {
		msg = "Registration successful, but the verification email could not be sent. Please request a new code."
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"message":                 msg,
		"user":                    toUserPart(res.User),
		"isVerificationEmailSent": res.EmailSent,
	})
}

// ResendCode issues a fresh verification code.
func (h *AuthHandler) ResendCode(c echo.Context) error {
	var req emailReq
	if ok, err := bind(c, &req); !ok {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Svc.ResendCode(ctx, req.Email); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Verification code sent"})
}

// Verify redeems a verification code.
func (h *AuthHandler) Verify(c echo.Context) error {
	var req verifyReq
	if ok, err := bind(c, &req); !ok {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	res, err := h.Svc.Verify(ctx, req.Email, req.Code)
	if err != nil {
		return respondError(c, err)
	}
	if res.AlreadyVerified {
		return c.JSON(http.StatusOK, echo.Map{"message": "Email already verified", "alreadyVerified": true})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Email verified successfully"})
}

// ForgotPassword mails a reset code. The response is the same whether or
// not the address is known, unless the caller only asks for existence.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req forgotReq
	if ok, err := bind(c, &req); !ok {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	if req.CheckUserExists {
		exists, err := h.Svc.UserExists(ctx, req.Email)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, echo.Map{"userExists": exists})
	}
	if _, err := h.Svc.ForgotPassword(ctx, req.Email); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "If an account exists for this email, a reset code has been sent"})
}

// ResetPassword sets a new password with a reset code.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetReq
	if ok, err := bind(c, &req); !ok {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Svc.ResetPassword(ctx, req.Email, req.Code, req.Password); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Password reset successfully"})
}

// Login verifies credentials and returns a new token pair. Unverified
// accounts get 403 with the email so the client can route to /verify.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if ok, err := bind(c, &req); !ok {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	s, err := h.Svc.Login(ctx, req.Email, req.Password)
	if errors.Is(err, service.ErrUnverifiedUser) {
		return c.JSON(http.StatusForbidden, echo.Map{
			"error": service.ErrUnverifiedUser.Error(),
			"email": strings.ToLower(strings.TrimSpace(req.Email)),
		})
	}
	if err != nil {
		return respondError(c, err)
	}
	return h.sessionResponse(c, http.StatusOK, s)
}

// refreshFrom reads the refresh token from the body, then the cookie.
func refreshFrom(c echo.Context) string {
	var req refreshReq
	_ = c.Bind(&req)
	if raw := strings.TrimSpace(req.RefreshToken); raw != "" {
		return raw
	}
	if ck, err := c.Cookie(refreshCookie); err == nil {
		return strings.TrimSpace(ck.Value)
	}
	return ""
}

// Refresh rotates the refresh token and issues a new pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
	raw := refreshFrom(c)
	if raw == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	s, err := h.Svc.Refresh(ctx, raw)
	if err != nil {
		return respondError(c, err)
	}
	return h.sessionResponse(c, http.StatusOK, s)
}

// RefreshAccess returns a new access token without rotating the refresh token.
func (h *AuthHandler) RefreshAccess(c echo.Context) error {
	raw := refreshFrom(c)
	if raw == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	access, _, err := h.Svc.RefreshAccess(ctx, raw)
	if err != nil {
		return respondError(c, err)
	}
	setSessionCookies(c, h.Cfg, access, nil)
	return c.JSON(http.StatusOK, echo.Map{
		"access": tokenPart{Token: access.Token, Expires: access.Exp},
	})
}

// Logout revokes one refresh token when given, otherwise every refresh
// token of the bearer. Session cookies are cleared either way.
func (h *AuthHandler) Logout(c echo.Context) error {
	var uid uint64
	if raw := middleware.TokenFromRequest(c, h.Cfg.SessionCookie); raw != "" {
		if cl, err := utils.ParseSessionToken(h.Cfg.JWTSecret, raw); err == nil {
			uid = cl.ID
		}
	}
	refresh := refreshFrom(c)

	ctx, cancel := reqCtx(c)
	defer cancel()

	switch {
	case refresh != "":
		if err := h.Svc.RevokeRefresh(ctx, refresh); err != nil {
			if errors.Is(err, service.ErrInvalidRefresh) {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
			}
			return respondError(c, err)
		}
	case uid != 0:
		if err := h.Svc.RevokeAll(ctx, uid); err != nil {
			return respondError(c, err)
		}
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "provide Authorization header or refresh_token"})
	}
	clearSessionCookies(c, h.Cfg)
	return c.NoContent(http.StatusNoContent)
}

// Session returns claims rebuilt from the stored user with a re-signed
// access token, so role and status changes show up without a new login.
func (h *AuthHandler) Session(c echo.Context) error {
	uid := middleware.UserID(c)
	if uid == 0 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	access, claims, err := h.Svc.CurrentSession(ctx, uid)
	if errors.Is(err, service.ErrUserNotFound) {
		clearSessionCookies(c, h.Cfg)
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "session expired"})
	}
	if err != nil {
		return respondError(c, err)
	}
	setSessionCookies(c, h.Cfg, access, nil)
	return c.JSON(http.StatusOK, echo.Map{
		"user":   claims,
		"access": tokenPart{Token: access.Token, Expires: access.Exp},
	})
}

// Me echoes the claims of the current request.
func (h *AuthHandler) Me(c echo.Context) error {
	cl, ok := middleware.ClaimsFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	return c.JSON(http.StatusOK, echo.Map{"user": cl})
}
