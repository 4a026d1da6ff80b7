package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/account-service/internal/utils"
)

// TokenFromRequest returns the access token from the Authorization header,
// falling back to the session cookie used by page routes.
func TokenFromRequest(c echo.Context, cookieName string) string {
	if auth := c.Request().Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	if cookieName != "" {
		if ck, err := c.Cookie(cookieName); err == nil {
			return ck.Value
		}
	}
	return ""
}

// JWTAuth validates the access token and stores its claims on the context.
// Handlers read them with ClaimsFrom or UserID.
func JWTAuth(secret, cookieName string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := TokenFromRequest(c, cookieName)
			if raw == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			claims, err := utils.ParseSessionToken(secret, raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			SetClaims(c, claims)
			return next(c)
		}
	}
}
