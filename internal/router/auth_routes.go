package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/account-service/internal/middleware"
)

// RegisterAuth registers the account flow under /v1/auth behind the stricter
// auth rate limiter, and the session endpoints under /v1.
func RegisterAuth(e *echo.Echo, d Deps) {
	a := d.Auth
	g := e.Group("/v1/auth", middleware.NewTokenBucket(d.AuthRateLimit, d.Redis))
	g.POST("/register", a.Register)
	g.POST("/resend-code", a.ResendCode)
	g.POST("/verify", a.Verify)
	g.POST("/forgot-password", a.ForgotPassword)
	g.POST("/reset-password", a.ResetPassword)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/refresh-access", a.RefreshAccess)
	g.POST("/logout", a.Logout)

	if d.OAuth != nil {
		g.GET("/oauth/google", d.OAuth.Start)
		g.GET("/oauth/google/callback", d.OAuth.Callback)
	} else {
		g.GET("/oauth/google", notConfigured)
		g.GET("/oauth/google/callback", notConfigured)
	}

	s := e.Group("/v1",
		middleware.JWTAuth(d.Cfg.JWTSecret, d.Cfg.SessionCookie),
	)
	s.GET("/session", a.Session)
	s.GET("/me", a.Me, middleware.SessionSync(d.Loader))
	e.POST("/v1/logout", a.Logout)
}
