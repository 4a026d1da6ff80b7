package service

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/account-service/internal/imaging"
	"github.com/iliyamo/account-service/internal/model"
)

func strp(s string) *string { return &s }

func TestUpdateProfile_RejectsTakenValues(t *testing.T) {
	e := newEnv(t)
	s := e.accounts()
	ctx := context.Background()
	me := e.seedUser(t, "me@example.com", model.RoleUser, true)
	e.seedUser(t, "other@example.com", model.RoleUser, true)

	_, err := s.UpdateProfile(ctx, me.ID, ProfileInput{Email: strp("OTHER@example.com")})
	assert.ErrorIs(t, err, ErrEmailTaken)
	_, err = s.UpdateProfile(ctx, me.ID, ProfileInput{Username: strp("other")})
	assert.ErrorIs(t, err, ErrUsernameTaken)

	u, err := s.UpdateProfile(ctx, me.ID, ProfileInput{Email: strp("me@example.com"), Username: strp("me")})
	require.NoError(t, err, "own values are not conflicts")
	assert.Equal(t, "me@example.com", u.Email)
}

func TestUpdateProfile_AppliesChanges(t *testing.T) {
	e := newEnv(t)
	s := e.accounts()
	me := e.seedUser(t, "change@example.com", model.RoleUser, true)

	u, err := s.UpdateProfile(context.Background(), me.ID, ProfileInput{
		Email: strp(" New@Example.com "), Username: strp("renamed"), Name: strp("New Name"),
	})
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", u.Email)
	assert.Equal(t, "renamed", model.Str(u.Username))
	assert.Equal(t, "New Name", model.Str(u.Name))
	assert.Contains(t, e.activity.actions(me.ID), model.ActivityProfileUpdate)

	_, err = s.UpdateProfile(context.Background(), 404, ProfileInput{Name: strp("x")})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func avatarPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func TestUpdateProfileImage(t *testing.T) {
	e := newEnv(t)
	s := e.accounts()
	ctx := context.Background()
	me := e.seedUser(t, "img@example.com", model.RoleUser, true)

	first, err := s.UpdateProfileImage(ctx, me.ID, avatarPNG(t, 800, 400))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(first, "/uploads/avatars/"))
	assert.True(t, strings.HasSuffix(first, ".png"))

	stored := e.storage.objects[strings.TrimPrefix(first, "/uploads/")]
	cfg, _, err := image.DecodeConfig(bytes.NewReader(stored))
	require.NoError(t, err)
	assert.Equal(t, 512, cfg.Width)

	second, err := s.UpdateProfileImage(ctx, me.ID, avatarPNG(t, 10, 10))
	require.NoError(t, err)
	assert.Equal(t, []string{strings.TrimPrefix(first, "/uploads/")}, e.storage.deleted)

	u, err := s.Profile(ctx, me.ID)
	require.NoError(t, err)
	assert.Equal(t, second, model.Str(u.ProfileImage))
}

func TestUpdateProfileImage_Rejects(t *testing.T) {
	e := newEnv(t)
	s := e.accounts()
	me := e.seedUser(t, "bad@example.com", model.RoleUser, true)

	_, err := s.UpdateProfileImage(context.Background(), me.ID, []byte("plain text, not an image"))
	assert.ErrorIs(t, err, imaging.ErrUnsupportedType)
	assert.Empty(t, e.storage.objects)
}

func TestActivities(t *testing.T) {
	e := newEnv(t)
	s := e.accounts()
	me := e.seedUser(t, "act@example.com", model.RoleUser, true)
	_, err := s.Login(context.Background(), me.Email, "Passw0rd!")
	require.NoError(t, err)

	got, err := s.Activities(context.Background(), me.ID, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.ActivityLogin, got[0].Action)
}
