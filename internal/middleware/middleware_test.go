package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/account-service/internal/config"
	"github.com/iliyamo/account-service/internal/service"
	"github.com/iliyamo/account-service/internal/utils"
)

const secret = "mw-secret"

func signed(t *testing.T, cl utils.SessionClaims) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, cl, time.Now(), 5)
	require.NoError(t, err)
	return tok.Token
}

func okHandler(c echo.Context) error {
	cl, _ := ClaimsFrom(c)
	if cl == nil {
		return c.String(http.StatusOK, "anon")
	}
	return c.String(http.StatusOK, cl.Role)
}

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuth(t *testing.T) {
	e := echo.New()
	e.GET("/p", okHandler, JWTAuth(secret, "session"))

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/p", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing bearer token")

	req := httptest.NewRequest(http.MethodGet, "/p", nil)
	req.Header.Set("Authorization", "Bearer not.a.jwt")
	rec = serve(e, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid token")

	req = httptest.NewRequest(http.MethodGet, "/p", nil)
	req.Header.Set("Authorization", "Bearer "+signed(t, utils.SessionClaims{ID: 1, Role: "USER"}))
	rec = serve(e, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "USER", rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/p", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: signed(t, utils.SessionClaims{ID: 2, Role: "ADMIN"})})
	rec = serve(e, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ADMIN", rec.Body.String())
}

func TestRequireRole(t *testing.T) {
	e := echo.New()
	e.GET("/admin-api", okHandler, JWTAuth(secret, ""), RequireRole("ADMIN"))

	req := httptest.NewRequest(http.MethodGet, "/admin-api", nil)
	req.Header.Set("Authorization", "Bearer "+signed(t, utils.SessionClaims{ID: 1, Role: "USER"}))
	rec := serve(e, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"error":"forbidden"}`, rec.Body.String())

	req.Header.Set("Authorization", "Bearer "+signed(t, utils.SessionClaims{ID: 1, Role: "ADMIN"}))
	assert.Equal(t, http.StatusOK, serve(e, req).Code)
}

func TestDecide(t *testing.T) {
	user := &utils.SessionClaims{ID: 1, Email: "u+1@x.io", Role: "USER", IsVerified: true}
	unverified := &utils.SessionClaims{ID: 2, Email: "new user@x.io", Role: "USER"}
	admin := &utils.SessionClaims{ID: 3, Email: "a@x.io", Role: "ADMIN", IsVerified: true}
	unverifiedAdmin := &utils.SessionClaims{ID: 4, Email: "b@x.io", Role: "ADMIN"}

	cases := []struct {
		name   string
		claims *utils.SessionClaims
		path   string
		want   string
	}{
		{"no session", nil, "/dashboard", "/auth/login"},
		{"no session admin", nil, "/admin/users", "/auth/login"},
		{"user on admin", user, "/admin", "/dashboard"},
		{"user on admin subpath", user, "/admin/settings", "/dashboard"},
		{"admin on dashboard", admin, "/dashboard", "/admin"},
		{"admin on dashboard subpath", admin, "/dashboard/stats", "/admin"},
		{"unverified user", unverified, "/profile", "/verify?email=new+user%40x.io"},
		{"unverified admin on admin path", unverifiedAdmin, "/admin", ""},
		{"user allowed", user, "/dashboard", ""},
		{"admin on profile", admin, "/profile", ""},
		{"administrator lookalike path", user, "/administrator", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Decide(tc.claims, tc.path, true).Redirect)
		})
	}

	assert.Empty(t, Decide(unverified, "/profile", false).Redirect, "verification not required")
	assert.Equal(t, "/dashboard", Decide(unverified, "/admin", false).Redirect)
}

type fakePolicy struct {
	on  bool
	err error
}

func (p fakePolicy) RequireVerification(context.Context) (bool, error) { return p.on, p.err }

func TestRouteGuard_VerificationSetting(t *testing.T) {
	build := func(p VerificationPolicy) *echo.Echo {
		e := echo.New()
		loader := fakeLoader{claims: utils.SessionClaims{Email: "n@x.io", Role: "USER", IsActive: true}}
		e.GET("/profile", okHandler, RouteGuard(secret, "session", loader, p))
		return e
	}
	req := func() *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/profile", nil)
		r.AddCookie(&http.Cookie{Name: "session", Value: signed(t, utils.SessionClaims{ID: 6, Role: "USER"})})
		return r
	}

	rec := serve(build(fakePolicy{on: false}), req())
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(build(fakePolicy{on: true}), req())
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/verify?email=n%40x.io", rec.Header().Get("Location"))

	rec = serve(build(fakePolicy{err: errors.New("db down")}), req())
	assert.Equal(t, http.StatusFound, rec.Code, "a failing policy keeps the check on")
}

type fakeLoader struct {
	claims utils.SessionClaims
	err    error
}

func (f fakeLoader) ReloadClaims(ctx context.Context, id uint64) (utils.SessionClaims, error) {
	if f.err != nil {
		return utils.SessionClaims{}, f.err
	}
	cl := f.claims
	cl.ID = id
	return cl, nil
}

func TestRouteGuard(t *testing.T) {
	e := echo.New()
	loader := fakeLoader{claims: utils.SessionClaims{Role: "ADMIN", IsVerified: true, IsActive: true}}
	g := e.Group("", RouteGuard(secret, "session", loader, nil))
	g.GET("/dashboard", okHandler)
	g.GET("/admin", okHandler)

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/auth/login", rec.Header().Get("Location"))

	// The token still says USER but the database says ADMIN.
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: signed(t, utils.SessionClaims{ID: 9, Role: "USER", IsVerified: true})})
	rec = serve(e, req)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/admin", rec.Header().Get("Location"))

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: signed(t, utils.SessionClaims{ID: 9, Role: "USER"})})
	rec = serve(e, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ADMIN", rec.Body.String())
}

func TestRouteGuard_DeletedUser(t *testing.T) {
	e := echo.New()
	e.GET("/profile", okHandler, RouteGuard(secret, "session", fakeLoader{err: service.ErrUserNotFound}, nil))

	req := httptest.NewRequest(http.MethodGet, "/profile", nil)
	req.Header.Set("Authorization", "Bearer "+signed(t, utils.SessionClaims{ID: 5, Role: "USER", IsVerified: true}))
	rec := serve(e, req)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/auth/login", rec.Header().Get("Location"))
}

func TestSessionSync(t *testing.T) {
	build := func(l ClaimsLoader) *echo.Echo {
		e := echo.New()
		e.GET("/me", okHandler, JWTAuth(secret, ""), SessionSync(l))
		return e
	}
	req := func() *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/me", nil)
		r.Header.Set("Authorization", "Bearer "+signed(t, utils.SessionClaims{ID: 3, Role: "USER", IsActive: true}))
		return r
	}

	rec := serve(build(fakeLoader{claims: utils.SessionClaims{Role: "ADMIN", IsActive: true}}), req())
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ADMIN", rec.Body.String())

	rec = serve(build(fakeLoader{claims: utils.SessionClaims{Role: "USER", IsActive: false}}), req())
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "AccountInactive")

	rec = serve(build(fakeLoader{err: service.ErrUserNotFound}), req())
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCachePayload(t *testing.T) {
	hdr := http.Header{"Content-Type": {"application/json"}}
	bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"total":3}`))
	require.NoError(t, err)

	status, got, body, ok := decodePayload(bs)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "application/json", got.Get("Content-Type"))
	assert.Equal(t, `{"total":3}`, string(body))

	_, _, _, ok = decodePayload(bs[:5])
	assert.False(t, ok)
}

func TestCaptureWriter_Limit(t *testing.T) {
	rec := httptest.NewRecorder()
	cw := &captureWriter{ResponseWriter: rec, status: http.StatusOK, limit: 4}
	_, err := cw.Write([]byte("abcdef"))
	require.NoError(t, err)
	assert.Equal(t, "abcd", cw.buf.String())
	assert.Equal(t, "abcdef", rec.Body.String())
}

func TestCacheKey_PerUser(t *testing.T) {
	e := echo.New()
	cfg := config.CacheConfig{Prefix: "cache", KeyStrategy: "route_query"}
	c1 := e.NewContext(httptest.NewRequest(http.MethodGet, "/v1/admin/stats?x=1", nil), httptest.NewRecorder())
	c2 := e.NewContext(httptest.NewRequest(http.MethodGet, "/v1/admin/stats?x=1", nil), httptest.NewRecorder())
	c2.Set(ctxUserID, uint64(7))

	k1, k2 := cacheKeyFrom(cfg, c1), cacheKeyFrom(cfg, c2)
	assert.NotEqual(t, k1, k2)
	assert.Regexp(t, `^cache:[0-9a-f]{40}$`, k1)
}

func TestBuildRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/auth/login")

	assert.Equal(t, "rl:auth:ip:10.0.0.1:route:POST /v1/auth/login",
		buildRateKey(config.RateLimitConfig{Prefix: "rl:auth", KeyStrategy: "ip_route"}, c))
	assert.Equal(t, "rl:user:guest", buildRateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: "user"}, c))
}

func TestTokenBucket_DisabledWithoutRedis(t *testing.T) {
	e := echo.New()
	e.GET("/x", okHandler, NewTokenBucket(config.RateLimitConfig{Enabled: true, Capacity: 1}, nil))
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, serve(e, httptest.NewRequest(http.MethodGet, "/x", nil)).Code)
	}
}

func TestPrometheus(t *testing.T) {
	e := echo.New()
	e.Use(Prometheus())
	e.GET("/metrics-probe/:id", okHandler)

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/metrics-probe/:id", "200"))
	serve(e, httptest.NewRequest(http.MethodGet, "/metrics-probe/1", nil))
	serve(e, httptest.NewRequest(http.MethodGet, "/metrics-probe/2", nil))
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/metrics-probe/:id", "200"))
	assert.Equal(t, before+2, after)
}
