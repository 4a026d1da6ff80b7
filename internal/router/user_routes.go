package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/account-service/internal/middleware"
)

// RegisterUser registers the caller's own profile endpoints. Any active
// signed-in user may use them.
func RegisterUser(e *echo.Echo, d Deps) {
	p := d.Profile
	g := e.Group("/v1/user",
		middleware.JWTAuth(d.Cfg.JWTSecret, d.Cfg.SessionCookie),
		middleware.SessionSync(d.Loader),
		middleware.NewTokenBucket(d.RateLimit, d.Redis),
	)
	g.GET("/profile", p.Get)
	g.PATCH("/profile", p.Update)
	g.POST("/profile-image", p.UploadImage, echomw.BodyLimit("6M"))
	g.GET("/activities", p.Activities)
}
