package handler

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/account-service/internal/config"
	"github.com/iliyamo/account-service/internal/middleware"
	"github.com/iliyamo/account-service/internal/oauth"
	"github.com/iliyamo/account-service/internal/service"
	"github.com/iliyamo/account-service/internal/utils"
)

const (
	stateCookie  = "oauth_state"
	stateTTL     = 10 * time.Minute
	oauthTimeout = 10 * time.Second
)

// OAuthService turns a provider identity into a session.
type OAuthService interface {
	OAuthSignIn(ctx context.Context, id oauth.Identity) (service.Session, error)
}

// OAuthHandler runs the authorization code flow for one provider.
type OAuthHandler struct {
	Cfg      config.Config
	Svc      OAuthService
	Provider oauth.Provider
}

func NewOAuthHandler(cfg config.Config, svc OAuthService, p oauth.Provider) *OAuthHandler {
	if svc == nil || p == nil {
		panic("nil dependency passed to NewOAuthHandler")
	}
	return &OAuthHandler{Cfg: cfg, Svc: svc, Provider: p}
}

func (h *OAuthHandler) statePath() string {
	return "/v1/auth/oauth/" + h.Provider.Name()
}

// Start redirects to the provider with a random state kept in a cookie.
func (h *OAuthHandler) Start(c echo.Context) error {
	state, err := utils.RandomState()
	if err != nil {
		return respondError(c, err)
	}
	c.SetCookie(&http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     h.statePath(),
		MaxAge:   int(stateTTL / time.Second),
		HttpOnly: true,
		Secure:   secureCookies(h.Cfg),
		SameSite: http.SameSiteLaxMode,
	})
	return c.Redirect(http.StatusFound, h.Provider.AuthCodeURL(state))
}

// Callback checks the state, exchanges the code and signs the user in.
// Browsers are sent to the dashboard with session cookies set; failures
// land on the login page with an error query parameter.
func (h *OAuthHandler) Callback(c echo.Context) error {
	fail := func(code string) error {
		return c.Redirect(http.StatusFound, middleware.LoginPath+"?error="+url.QueryEscape(code))
	}
	if e := c.QueryParam("error"); e != "" {
		return fail(e)
	}
	ck, err := c.Cookie(stateCookie)
	state := c.QueryParam("state")
	if err != nil || state == "" || subtle.ConstantTimeCompare([]byte(ck.Value), []byte(state)) != 1 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid oauth state"})
	}
	c.SetCookie(&http.Cookie{Name: stateCookie, Value: "", Path: h.statePath(), MaxAge: -1, HttpOnly: true})

	code := c.QueryParam("code")
	if code == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing code"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), oauthTimeout)
	defer cancel()

	id, err := h.Provider.Exchange(ctx, code)
	if err != nil {
		if errors.Is(err, oauth.ErrNoEmail) {
			return fail("EmailRequired")
		}
		slog.WarnContext(ctx, "oauth exchange failed", "provider", h.Provider.Name(), "err", err)
		return fail("OAuthCallback")
	}
	s, err := h.Svc.OAuthSignIn(ctx, id)
	switch {
	case errors.Is(err, service.ErrAccountInactive):
		return fail(service.ErrAccountInactive.Error())
	case errors.Is(err, service.ErrRegistrationClosed):
		return fail("RegistrationClosed")
	case errors.Is(err, service.ErrAccountNotLinked):
		return fail(service.ErrAccountNotLinked.Error())
	case err != nil:
		slog.ErrorContext(ctx, "oauth sign-in failed", "provider", h.Provider.Name(), "err", err)
		return fail("OAuthSignin")
	}
	setSessionCookies(c, h.Cfg, s.Access, &s.Refresh)
	return c.Redirect(http.StatusFound, middleware.DashboardPath)
}
