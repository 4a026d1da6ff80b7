package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/account-service/internal/middleware"
)

// Page renders the JSON shell of a guarded page. The route guard has
// already decided access; the shell carries the page name and claims the
// client renders from.
func Page(name string) echo.HandlerFunc {
	return func(c echo.Context) error {
		cl, _ := middleware.ClaimsFrom(c)
		return c.JSON(http.StatusOK, echo.Map{
			"page": name,
			"path": c.Request().URL.Path,
			"user": cl,
		})
	}
}
