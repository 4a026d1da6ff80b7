package oauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/iliyamo/account-service/internal/config"
)

func newTestGoogle(t *testing.T, userinfo http.HandlerFunc) *Google {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "the-code", r.Form.Get("code"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "at", "token_type": "Bearer", "expires_in": 3600,
		})
	})
	mux.HandleFunc("/userinfo", userinfo)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	g := NewGoogle(config.OAuthConfig{GoogleClientID: "cid", GoogleClientSecret: "cs", GoogleRedirectURL: "http://app/cb"})
	g.cfg.Endpoint = oauth2.Endpoint{AuthURL: srv.URL + "/auth", TokenURL: srv.URL + "/token", AuthStyle: oauth2.AuthStyleInParams}
	g.userInfoURL = srv.URL + "/userinfo"
	return g
}

func TestGoogle_AuthCodeURL(t *testing.T) {
	g := NewGoogle(config.OAuthConfig{GoogleClientID: "cid", GoogleRedirectURL: "http://app/cb"})
	u, err := url.Parse(g.AuthCodeURL("xyz"))
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "xyz", q.Get("state"))
	assert.Equal(t, "cid", q.Get("client_id"))
	assert.Equal(t, "http://app/cb", q.Get("redirect_uri"))
	assert.Contains(t, q.Get("scope"), "email")
}

func TestGoogle_Exchange(t *testing.T) {
	g := newTestGoogle(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer at", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"sub": "g-1", "email": "g@example.com", "email_verified": true, "name": "Gee", "picture": "https://img/g.png",
		})
	})

	id, err := g.Exchange(context.Background(), "the-code")
	require.NoError(t, err)
	assert.Equal(t, "google", id.Provider)
	assert.Equal(t, "g-1", id.Subject)
	assert.Equal(t, "g@example.com", id.Email)
	assert.True(t, id.EmailVerified)
	assert.Equal(t, "https://img/g.png", id.Picture)
	assert.Equal(t, "at", id.AccessToken)
}

func TestGoogle_Exchange_NoEmail(t *testing.T) {
	g := newTestGoogle(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"sub": "g-2"})
	})
	_, err := g.Exchange(context.Background(), "the-code")
	assert.ErrorIs(t, err, ErrNoEmail)
}

func TestGoogle_Exchange_UserinfoError(t *testing.T) {
	g := newTestGoogle(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	})
	_, err := g.Exchange(context.Background(), "the-code")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 403")
}
