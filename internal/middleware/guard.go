package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/account-service/internal/model"
	"github.com/iliyamo/account-service/internal/utils"
)

const (
	LoginPath     = "/auth/login"
	DashboardPath = "/dashboard"
	AdminPath     = "/admin"
	VerifyPath    = "/verify"
)

// ProtectedPages are the page routes the guard runs on.
var ProtectedPages = []string{DashboardPath, "/profile", "/settings", AdminPath}

// Decision is the guard outcome. An empty Redirect means allow.
type Decision struct {
	Redirect string
}

func (d Decision) Allowed() bool { return d.Redirect == "" }

func underPath(path, root string) bool {
	return path == root || strings.HasPrefix(path, root+"/")
}

// IsAdminPath reports whether path belongs to the admin area.
func IsAdminPath(path string) bool { return underPath(path, AdminPath) }

// VerificationPolicy reports whether unverified users are held at /verify.
type VerificationPolicy interface {
	RequireVerification(ctx context.Context) (bool, error)
}

// Decide applies the page access table in order: no session, admin area
// without ADMIN, ADMIN on the user dashboard, unverified email when
// requireVerification is on.
func Decide(claims *utils.SessionClaims, path string, requireVerification bool) Decision {
	if claims == nil {
		return Decision{Redirect: LoginPath}
	}
	admin := claims.Role == string(model.RoleAdmin)
	if IsAdminPath(path) {
		if !admin {
			return Decision{Redirect: DashboardPath}
		}
		return Decision{}
	}
	if admin && underPath(path, DashboardPath) {
		return Decision{Redirect: AdminPath}
	}
	if requireVerification && !claims.IsVerified {
		return Decision{Redirect: VerifyPath + "?email=" + url.QueryEscape(claims.Email)}
	}
	return Decision{}
}

// RouteGuard protects page routes. The token comes from the Authorization
// header or the session cookie; when loader is set the claims are reloaded
// from the database before deciding. A nil policy always requires
// verification, and so does a policy that fails.
func RouteGuard(secret, cookieName string, loader ClaimsLoader, policy VerificationPolicy) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			var claims *utils.SessionClaims
			if raw := TokenFromRequest(c, cookieName); raw != "" {
				if cl, err := utils.ParseSessionToken(secret, raw); err == nil {
					claims = cl
				}
			}
			if claims != nil && loader != nil {
				ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
				fresh, err := loader.ReloadClaims(ctx, claims.ID)
				cancel()
				if err != nil {
					claims = nil
				} else {
					fresh.RegisteredClaims = claims.RegisteredClaims
					claims = &fresh
				}
			}

			needVerify := true
			if claims != nil && !claims.IsVerified && policy != nil {
				ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
				on, err := policy.RequireVerification(ctx)
				cancel()
				if err != nil {
					slog.WarnContext(c.Request().Context(), "load verification setting failed", "err", err)
				} else {
					needVerify = on
				}
			}

			d := Decide(claims, c.Request().URL.Path, needVerify)
			if !d.Allowed() {
				return c.Redirect(http.StatusFound, d.Redirect)
			}
			SetClaims(c, claims)
			return next(c)
		}
	}
}
