package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/account-service/internal/service"
	"github.com/iliyamo/account-service/internal/utils"
)

// ClaimsLoader re-derives claims from the persisted user.
type ClaimsLoader interface {
	ReloadClaims(ctx context.Context, userID uint64) (utils.SessionClaims, error)
}

// SessionSync replaces token claims with fresh ones loaded from the
// database, so role and status changes apply to tokens already issued.
// Deleted users get 401 and deactivated ones 403. It must run after JWTAuth.
func SessionSync(loader ClaimsLoader) echo.MiddlewareFunc {
	if loader == nil {
		panic("middleware: nil claims loader")
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := UserID(c)
			if id == 0 {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
			}
			ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
			defer cancel()

			fresh, err := loader.ReloadClaims(ctx, id)
			if errors.Is(err, service.ErrUserNotFound) {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "session expired"})
			}
			if err != nil {
				slog.ErrorContext(ctx, "reload session claims", "user_id", id, "err", err)
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load session failed"})
			}
			if !fresh.IsActive {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "AccountInactive"})
			}
			if old, ok := ClaimsFrom(c); ok {
				fresh.RegisteredClaims = old.RegisteredClaims
			}
			SetClaims(c, &fresh)
			return next(c)
		}
	}
}
