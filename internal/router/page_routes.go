package router

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/account-service/internal/handler"
	"github.com/iliyamo/account-service/internal/middleware"
)

// RegisterPages registers the guarded page shells. The guard redirects
// instead of answering 401/403.
func RegisterPages(e *echo.Echo, d Deps) {
	guard := middleware.RouteGuard(d.Cfg.JWTSecret, d.Cfg.SessionCookie, d.Loader, d.Policy)
	for _, p := range middleware.ProtectedPages {
		name := strings.TrimPrefix(p, "/")
		e.GET(p, handler.Page(name), guard)
		e.GET(p+"/*", handler.Page(name), guard)
	}
}
