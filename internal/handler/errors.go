package handler

import (
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/account-service/internal/imaging"
	"github.com/iliyamo/account-service/internal/oauth"
	"github.com/iliyamo/account-service/internal/service"
)

type errorMapping struct {
	err    error
	status int
	field  string
}

// errorTable maps service sentinels to a status. The sentinel text is the
// response body.
var errorTable = []errorMapping{
	{service.ErrInvalidCredentials, http.StatusUnauthorized, ""},
	{service.ErrInvalidRefresh, http.StatusUnauthorized, ""},
	{service.ErrAccountInactive, http.StatusForbidden, ""},
	{service.ErrRegistrationClosed, http.StatusForbidden, ""},
	{service.ErrUserNotFound, http.StatusNotFound, ""},
	{service.ErrInvalidOrExpiredCode, http.StatusBadRequest, ""},
	{service.ErrAlreadyVerified, http.StatusBadRequest, ""},
	{service.ErrEmailTaken, http.StatusBadRequest, "email"},
	{service.ErrUsernameTaken, http.StatusBadRequest, "username"},
	{service.ErrWeakPassword, http.StatusBadRequest, "password"},
	{service.ErrLastAdmin, http.StatusBadRequest, ""},
	{service.ErrInvalidRole, http.StatusBadRequest, "role"},
	{service.ErrInvalidActiveUntil, http.StatusBadRequest, "activeUntil"},
	{service.ErrUnknownSetting, http.StatusBadRequest, "settingName"},
	{service.ErrUnknownOperation, http.StatusBadRequest, "operation"},
	{service.ErrMailFailed, http.StatusInternalServerError, ""},
	{imaging.ErrTooLarge, http.StatusBadRequest, "profileImage"},
	{imaging.ErrUnsupportedType, http.StatusBadRequest, "profileImage"},
	{imaging.ErrCorrupt, http.StatusBadRequest, "profileImage"},
	{imaging.ErrDimensions, http.StatusBadRequest, "profileImage"},
	{oauth.ErrNoEmail, http.StatusBadRequest, ""},
}

// respondError writes the JSON error for err. Unknown errors are logged and
// reported as 500 with a generic message.
func respondError(c echo.Context, err error) error {
	var throttled *service.ThrottledError
	if errors.As(err, &throttled) {
		secs := int(math.Ceil(throttled.RetryAfter.Seconds()))
		c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
		return c.JSON(http.StatusTooManyRequests, echo.Map{
			"error":       "too_many_requests",
			"message":     "please wait before requesting another code",
			"retry_after": secs,
		})
	}
	for _, m := range errorTable {
		if errors.Is(err, m.err) {
			body := echo.Map{"error": m.err.Error()}
			if m.field != "" {
				body["fields"] = echo.Map{m.field: m.err.Error()}
			}
			return c.JSON(m.status, body)
		}
	}
	slog.ErrorContext(c.Request().Context(), "request failed",
		"method", c.Request().Method,
		"path", c.Path(),
		"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
		"err", err,
	)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
