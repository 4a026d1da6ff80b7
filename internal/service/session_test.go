package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/account-service/internal/model"
	"github.com/iliyamo/account-service/internal/utils"
)

func TestLogin_Failures(t *testing.T) {
	e := newEnv(t)
	s := e.accounts()
	ctx := context.Background()
	e.seedUser(t, "ok@example.com", model.RoleUser, true)

	_, err := s.Login(ctx, "missing@example.com", "Passw0rd!")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = s.Login(ctx, "ok@example.com", "wrong-pass1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// Provider-only accounts have no password to check.
	_, err = e.users.CreateWithAccount(ctx, newOAuthUser("oauth@example.com"), model.Account{Provider: "google", ProviderAccountID: "g"})
	require.NoError(t, err)
	_, err = s.Login(ctx, "oauth@example.com", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogin_UnverifiedAllowedWhenNotRequired(t *testing.T) {
	e := newEnv(t)
	e.settings.s.RequireVerification = false
	u := e.seedUser(t, "lax@example.com", model.RoleUser, false)

	sess, err := e.accounts().Login(context.Background(), u.Email, "Passw0rd!")
	require.NoError(t, err)
	assert.False(t, sess.Claims.IsVerified)

	on, err := e.accounts().RequireVerification(context.Background())
	require.NoError(t, err)
	assert.False(t, on)
}

func TestLogin_InactiveAccounts(t *testing.T) {
	e := newEnv(t)
	s := e.accounts()
	ctx := context.Background()
	off := e.seedUser(t, "off@example.com", model.RoleUser, true)
	require.NoError(t, e.users.SetActivation(ctx, off.ID, false, nil))

	_, err := s.Login(ctx, off.Email, "Passw0rd!")
	assert.ErrorIs(t, err, ErrAccountInactive)

	window := e.seedUser(t, "window@example.com", model.RoleUser, true)
	until := e.clock.Now().Add(time.Hour)
	require.NoError(t, e.users.SetActivation(ctx, window.ID, true, &until))
	_, err = s.Login(ctx, window.Email, "Passw0rd!")
	require.NoError(t, err)

	e.clock.Advance(2 * time.Hour)
	_, err = s.Login(ctx, window.Email, "Passw0rd!")
	assert.ErrorIs(t, err, ErrAccountInactive)
}

func TestLogin_IssuesSignedClaims(t *testing.T) {
	e := newEnv(t)
	u := e.seedUser(t, "claims@example.com", model.RoleAdmin, true)
	img := "/uploads/avatars/a.png"
	require.NoError(t, e.users.SetProfileImage(context.Background(), u.ID, &img))

	sess, err := e.accounts().Login(context.Background(), "CLAIMS@example.com", "Passw0rd!")
	require.NoError(t, err)

	parsed, err := utils.ParseSessionToken("test-secret", sess.Access.Token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, parsed.ID)
	assert.Equal(t, "claims@example.com", parsed.Email)
	assert.Equal(t, "ADMIN", parsed.Role)
	assert.Equal(t, img, parsed.Image)
	assert.True(t, parsed.IsVerified)
	assert.True(t, parsed.IsActive)
	assert.NotEmpty(t, sess.Refresh.Raw)
	assert.Contains(t, e.activity.actions(u.ID), model.ActivityLogin)
}

func TestRefresh_RotatesToken(t *testing.T) {
	e := newEnv(t)
	s := e.accounts()
	ctx := context.Background()
	u := e.seedUser(t, "rot@example.com", model.RoleUser, true)

	sess, err := s.Login(ctx, u.Email, "Passw0rd!")
	require.NoError(t, err)

	next, err := s.Refresh(ctx, sess.Refresh.Raw)
	require.NoError(t, err)
	assert.NotEqual(t, sess.Refresh.Raw, next.Refresh.Raw)

	_, err = s.Refresh(ctx, sess.Refresh.Raw)
	assert.ErrorIs(t, err, ErrInvalidRefresh)

	access, claims, err := s.RefreshAccess(ctx, next.Refresh.Raw)
	require.NoError(t, err)
	assert.NotEmpty(t, access.Token)
	assert.Equal(t, u.ID, claims.ID)

	require.NoError(t, s.RevokeRefresh(ctx, next.Refresh.Raw))
	assert.ErrorIs(t, s.RevokeRefresh(ctx, next.Refresh.Raw), ErrInvalidRefresh)
}

func TestRefresh_ExpiredToken(t *testing.T) {
	e := newEnv(t)
	s := e.accounts()
	u := e.seedUser(t, "exp@example.com", model.RoleUser, true)
	sess, err := s.Login(context.Background(), u.Email, "Passw0rd!")
	require.NoError(t, err)

	e.clock.Advance(8 * 24 * time.Hour)
	_, err = s.Refresh(context.Background(), sess.Refresh.Raw)
	assert.ErrorIs(t, err, ErrInvalidRefresh)
}

func TestRevokeAll(t *testing.T) {
	e := newEnv(t)
	s := e.accounts()
	ctx := context.Background()
	u := e.seedUser(t, "all@example.com", model.RoleUser, true)
	a, err := s.Login(ctx, u.Email, "Passw0rd!")
	require.NoError(t, err)
	b, err := s.Login(ctx, u.Email, "Passw0rd!")
	require.NoError(t, err)

	require.NoError(t, s.RevokeAll(ctx, u.ID))
	_, err = s.Refresh(ctx, a.Refresh.Raw)
	assert.ErrorIs(t, err, ErrInvalidRefresh)
	_, err = s.Refresh(ctx, b.Refresh.Raw)
	assert.ErrorIs(t, err, ErrInvalidRefresh)
}

func TestCurrentSession_ReflectsRoleChange(t *testing.T) {
	e := newEnv(t)
	s := e.accounts()
	ctx := context.Background()
	u := e.seedUser(t, "promo@example.com", model.RoleUser, true)
	e.seedUser(t, "boss@example.com", model.RoleAdmin, true)

	_, claims, err := s.CurrentSession(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "USER", claims.Role)

	require.NoError(t, e.users.UpdateRole(ctx, u.ID, model.RoleAdmin))
	access, claims, err := s.CurrentSession(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "ADMIN", claims.Role)

	parsed, err := utils.ParseSessionToken("test-secret", access.Token)
	require.NoError(t, err)
	assert.Equal(t, "ADMIN", parsed.Role)

	fresh, err := s.ReloadClaims(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "ADMIN", fresh.Role)

	_, _, err = s.CurrentSession(ctx, 999)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestClaimsFor_ExpiredWindow(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	name := "Ann"
	c := ClaimsFor(model.User{ID: 3, Email: "a@x.io", Name: &name, Role: model.RoleUser, IsActive: true, ActiveUntil: &past}, now)
	assert.False(t, c.IsActive)
	assert.Equal(t, "Ann", c.Name)
	assert.Empty(t, c.Image)
}
