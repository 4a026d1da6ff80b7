package middleware

// identity.go holds the context keys set by the auth middlewares and the
// helpers handlers use to read them back.

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/account-service/internal/utils"
)

const (
	ctxClaims = "claims"
	ctxUserID = "user_id"
	ctxRole   = "role"
)

// SetClaims stores claims and the derived user id and role on c.
func SetClaims(c echo.Context, claims *utils.SessionClaims) {
	c.Set(ctxClaims, claims)
	c.Set(ctxUserID, claims.ID)
	c.Set(ctxRole, claims.Role)
}

// ClaimsFrom returns the claims stored by JWTAuth or SessionSync.
func ClaimsFrom(c echo.Context) (*utils.SessionClaims, bool) {
	cl, ok := c.Get(ctxClaims).(*utils.SessionClaims)
	return cl, ok && cl != nil
}

// UserID returns the authenticated user id, or 0.
func UserID(c echo.Context) uint64 {
	switch v := c.Get(ctxUserID).(type) {
	case uint64:
		return v
	case int64:
		if v > 0 {
			return uint64(v)
		}
	case string:
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			return n
		}
	}
	return 0
}

// userKey identifies the caller for rate limit and cache keys.
func userKey(c echo.Context) string {
	if id := UserID(c); id != 0 {
		return strconv.FormatUint(id, 10)
	}
	return "guest"
}
