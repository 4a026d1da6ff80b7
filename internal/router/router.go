// Package router wires handlers and middleware into an Echo instance.
package router

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/iliyamo/account-service/internal/config"
	"github.com/iliyamo/account-service/internal/handler"
	"github.com/iliyamo/account-service/internal/middleware"
)

// Deps is everything the routes need. OAuth and Redis may be nil; the
// Google routes and the Redis backed middlewares are then left out or
// pass requests through.
type Deps struct {
	Cfg     config.Config
	Logger  *slog.Logger
	DB      handler.Pinger
	Redis   *redis.Client
	Loader  middleware.ClaimsLoader
	Policy  middleware.VerificationPolicy
	Auth    *handler.AuthHandler
	OAuth   *handler.OAuthHandler
	Profile *handler.ProfileHandler
	Admin   *handler.AdminHandler

	RateLimit     config.RateLimitConfig
	AuthRateLimit config.RateLimitConfig
	Cache         config.CacheConfig
}

// New builds the Echo instance with the global middleware chain and every
// route registered.
func New(d Deps) *echo.Echo {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(echo.WrapMiddleware(otelhttp.NewMiddleware(d.Cfg.Tracing.ServiceName)))
	e.Use(middleware.Prometheus())
	e.Use(middleware.RequestLogger(d.Logger))
	e.Use(middleware.ClientInfo())

	RegisterRoutes(e, d)
	RegisterAuth(e, d)
	RegisterUser(e, d)
	RegisterAdmin(e, d)
	RegisterPages(e, d)
	return e
}

// RegisterRoutes registers the unauthenticated operational endpoints.
func RegisterRoutes(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health(d.DB))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	if d.Cfg.Storage.Type == "local" && d.Cfg.Storage.UploadDir != "" {
		e.Static("/uploads", d.Cfg.Storage.UploadDir)
	}
}

// cacheInvalidator drops cached admin responses after a mutation.
func cacheInvalidator(rdb *redis.Client, cfg config.CacheConfig) func(ctx context.Context) {
	if rdb == nil || !cfg.Enabled {
		return nil
	}
	return func(ctx context.Context) {
		middleware.InvalidateCache(ctx, rdb, cfg.Prefix)
	}
}

// NewAdminHandler builds the admin handler with cache invalidation bound
// to the configured Redis prefix.
func NewAdminHandler(svc handler.AdminService, rdb *redis.Client, cfg config.CacheConfig) *handler.AdminHandler {
	return handler.NewAdminHandler(svc, cacheInvalidator(rdb, cfg))
}

func notConfigured(c echo.Context) error {
	return c.JSON(http.StatusNotFound, echo.Map{"error": "oauth provider not configured"})
}
