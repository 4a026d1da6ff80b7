package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/iliyamo/account-service/internal/imaging"
	"github.com/iliyamo/account-service/internal/model"
	"github.com/iliyamo/account-service/internal/repository"
)

// ProfileInput is a partial profile update; nil fields are left unchanged.
type ProfileInput struct {
	Email    *string
	Username *string
	Name     *string
}

// Profile returns the user's own record.
func (s *Accounts) Profile(ctx context.Context, userID uint64) (model.User, error) {
	return s.userByID(ctx, userID)
}

// UpdateProfile applies in. An email or username that belongs to another
// user is rejected before the write; the unique keys catch any race.
func (s *Accounts) UpdateProfile(ctx context.Context, userID uint64, in ProfileInput) (model.User, error) {
	u, err := s.userByID(ctx, userID)
	if err != nil {
		return model.User{}, err
	}
	upd := repository.ProfileUpdate{Email: u.Email, Username: u.Username, Name: u.Name}
	var changed []string

	if in.Email != nil {
		email := repository.NormalizeEmail(*in.Email)
		if email != "" && email != u.Email {
			other, err := s.Users.GetByEmail(ctx, email)
			if err == nil && other.ID != userID {
				return model.User{}, ErrEmailTaken
			}
			if err != nil && !errors.Is(err, repository.ErrNotFound) {
				return model.User{}, fmt.Errorf("check email: %w", err)
			}
			upd.Email = email
			changed = append(changed, "email")
		}
	}
	if in.Username != nil {
		name := strings.TrimSpace(*in.Username)
		if name != "" && name != model.Str(u.Username) {
			other, err := s.Users.GetByUsername(ctx, name)
			if err == nil && other.ID != userID {
				return model.User{}, ErrUsernameTaken
			}
			if err != nil && !errors.Is(err, repository.ErrNotFound) {
				return model.User{}, fmt.Errorf("check username: %w", err)
			}
			upd.Username = &name
			changed = append(changed, "username")
		}
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name != model.Str(u.Name) {
			upd.Name = model.StrPtr(name)
			changed = append(changed, "name")
		}
	}
	if len(changed) == 0 {
		return u, nil
	}

	if err := s.Users.UpdateProfile(ctx, userID, upd); err != nil {
		return model.User{}, mapConflict(err)
	}
	s.logActivity(ctx, userID, model.ActivityProfileUpdate, strings.Join(changed, ","))
	return s.userByID(ctx, userID)
}

// UpdateProfileImage validates and normalises an upload, stores it and
// points the profile at it. The previous stored image is removed when it
// belongs to the same backend.
func (s *Accounts) UpdateProfileImage(ctx context.Context, userID uint64, data []byte) (string, error) {
	if s.Storage == nil {
		return "", errors.New("profile image storage is not configured")
	}
	u, err := s.userByID(ctx, userID)
	if err != nil {
		return "", err
	}
	img, err := imaging.Process(data)
	if err != nil {
		return "", err
	}

	key := "avatars/" + uuid.NewString() + "." + img.Ext
	url, err := s.Storage.Save(ctx, key, bytes.NewReader(img.Data), img.ContentType)
	if err != nil {
		return "", fmt.Errorf("store image: %w", err)
	}
	if err := s.Users.SetProfileImage(ctx, userID, &url); err != nil {
		if derr := s.Storage.Delete(ctx, key); derr != nil {
			s.Logger.WarnContext(ctx, "orphaned profile image", "key", key, "err", derr)
		}
		return "", fmt.Errorf("save profile image: %w", err)
	}

	if old := model.Str(u.ProfileImage); old != "" {
		if oldKey, ok := s.Storage.KeyFromURL(old); ok {
			if err := s.Storage.Delete(ctx, oldKey); err != nil {
				s.Logger.WarnContext(ctx, "delete previous profile image failed", "key", oldKey, "err", err)
			}
		}
	}
	s.logActivity(ctx, userID, model.ActivityImageUpdate, "")
	return url, nil
}

// Activities lists the user's own audit trail, newest first.
func (s *Accounts) Activities(ctx context.Context, userID uint64, limit int) ([]model.Activity, error) {
	return s.Activity.ListByUser(ctx, userID, clampLimit(limit, 20, 100))
}

func clampLimit(n, def, max int) int {
	if n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
