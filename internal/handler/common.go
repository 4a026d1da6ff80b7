package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/account-service/internal/config"
	"github.com/iliyamo/account-service/internal/model"
	"github.com/iliyamo/account-service/internal/utils"
)

const (
	requestTimeout = 5 * time.Second
	refreshCookie  = "refresh_token"
)

// reqCtx bounds the database work of one request.
func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// paramID parses a positive numeric path parameter.
func paramID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

func queryInt(c echo.Context, name string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(c.QueryParam(name)))
	return n
}

// ----- DTOs -----

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type userPart struct {
	ID           uint64     `json:"id"`
	Email        string     `json:"email"`
	Username     string     `json:"username,omitempty"`
	Name         string     `json:"name,omitempty"`
	ProfileImage string     `json:"profileImage,omitempty"`
	Role         string     `json:"role"`
	IsVerified   bool       `json:"isVerified"`
	IsActive     bool       `json:"isActive"`
	ActiveUntil  *time.Time `json:"activeUntil,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

func toUserPart(u model.User) userPart {
	return userPart{
		ID:           u.ID,
		Email:        u.Email,
		Username:     model.Str(u.Username),
		Name:         model.Str(u.Name),
		ProfileImage: model.Str(u.ProfileImage),
		Role:         string(u.Role),
		IsVerified:   u.IsVerified,
		IsActive:     u.IsActive,
		ActiveUntil:  u.ActiveUntil,
		CreatedAt:    u.CreatedAt,
	}
}

type activityPart struct {
	ID        uint64    `json:"id"`
	UserID    uint64    `json:"userId"`
	Action    string    `json:"action"`
	Details   string    `json:"details,omitempty"`
	IPAddress string    `json:"ipAddress,omitempty"`
	UserAgent string    `json:"userAgent,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func toActivityParts(list []model.Activity) []activityPart {
	out := make([]activityPart, 0, len(list))
	for _, a := range list {
		out = append(out, activityPart{
			ID:        a.ID,
			UserID:    a.UserID,
			Action:    a.Action,
			Details:   model.Str(a.Details),
			IPAddress: model.Str(a.IPAddress),
			UserAgent: model.Str(a.UserAgent),
			CreatedAt: a.CreatedAt,
		})
	}
	return out
}

// ----- cookies -----

func secureCookies(cfg config.Config) bool {
	return strings.HasPrefix(cfg.BaseURL, "https://")
}

// setSessionCookies stores the access token for page routes and the
// refresh token for /v1/auth, both HttpOnly.
func setSessionCookies(c echo.Context, cfg config.Config, access utils.AccessToken, refresh *utils.RefreshToken) {
	c.SetCookie(&http.Cookie{
		Name:     cfg.SessionCookie,
		Value:    access.Token,
		Path:     "/",
		Expires:  access.Exp,
		HttpOnly: true,
		Secure:   secureCookies(cfg),
		SameSite: http.SameSiteLaxMode,
	})
	if refresh == nil {
		return
	}
	c.SetCookie(&http.Cookie{
		Name:     refreshCookie,
		Value:    refresh.Raw,
		Path:     "/v1/auth",
		Expires:  refresh.Exp,
		HttpOnly: true,
		Secure:   secureCookies(cfg),
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookies(c echo.Context, cfg config.Config) {
	for _, ck := range []struct{ name, path string }{{cfg.SessionCookie, "/"}, {refreshCookie, "/v1/auth"}} {
		c.SetCookie(&http.Cookie{
			Name:     ck.name,
			Value:    "",
			Path:     ck.path,
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   secureCookies(cfg),
			SameSite: http.SameSiteLaxMode,
		})
	}
}
