package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/account-service/internal/middleware"
	"github.com/iliyamo/account-service/internal/model"
)

// RegisterAdmin registers ADMIN-scoped endpoints under /v1/admin. The role
// check runs on claims reloaded from the database, so a demoted admin loses
// access on the next request. Dashboard reads are cached in Redis.
func RegisterAdmin(e *echo.Echo, d Deps) {
	h := d.Admin
	g := e.Group("/v1/admin",
		middleware.JWTAuth(d.Cfg.JWTSecret, d.Cfg.SessionCookie),
		middleware.SessionSync(d.Loader),
		middleware.RequireRole(string(model.RoleAdmin)),
		middleware.NewTokenBucket(d.RateLimit, d.Redis),
	)
	cache := middleware.NewRedisCache(d.Cache, d.Redis)

	g.GET("/users", h.ListUsers)
	g.PUT("/users/:id/role", h.ChangeRole)
	g.PUT("/users/:id/activation", h.SetActivation)
	g.GET("/stats", h.Stats, cache)
	g.GET("/activities", h.Activities, cache)
	g.GET("/settings", h.Settings)
	g.POST("/settings", h.UpdateSetting)
	g.POST("/maintenance", h.Maintenance)
}
