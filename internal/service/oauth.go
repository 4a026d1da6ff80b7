package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/gosimple/slug"

	"github.com/iliyamo/account-service/internal/model"
	"github.com/iliyamo/account-service/internal/oauth"
	"github.com/iliyamo/account-service/internal/repository"
	"github.com/iliyamo/account-service/internal/utils"
)

// OAuthSignIn resolves a provider identity to a user and opens a session.
//
// Resolution order: an existing provider link, then a user with the same
// email (the link is added, the email counts as verified and an empty
// profile image is filled from the provider), then a new verified USER. Matching by
// email requires the provider to have verified that email.
func (s *Accounts) OAuthSignIn(ctx context.Context, id oauth.Identity) (Session, error) {
	if id.Email == "" {
		return Session{}, oauth.ErrNoEmail
	}
	u, err := s.resolveIdentity(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if !u.ActiveAt(s.now()) {
		logins.WithLabelValues("inactive").Inc()
		return Session{}, ErrAccountInactive
	}
	sess, err := s.openSession(ctx, u)
	if err != nil {
		return Session{}, err
	}
	logins.WithLabelValues("ok").Inc()
	s.logActivity(ctx, u.ID, model.ActivityOAuthLogin, id.Provider)
	return sess, nil
}

func (s *Accounts) resolveIdentity(ctx context.Context, id oauth.Identity) (model.User, error) {
	link, err := s.Links.GetByProvider(ctx, id.Provider, id.Subject)
	switch {
	case err == nil:
		if err := s.Links.UpdateTokens(ctx, link.ID, model.StrPtr(id.AccessToken), model.StrPtr(id.RefreshToken)); err != nil {
			s.Logger.WarnContext(ctx, "update provider tokens failed", "account_id", link.ID, "err", err)
		}
		u, err := s.userByID(ctx, link.UserID)
		if err != nil {
			return model.User{}, err
		}
		return s.backfillImage(ctx, u, id.Picture), nil
	case !errors.Is(err, repository.ErrNotFound):
		return model.User{}, fmt.Errorf("load provider link: %w", err)
	}

	account := model.Account{
		Provider:          id.Provider,
		ProviderAccountID: id.Subject,
		AccessToken:       model.StrPtr(id.AccessToken),
		RefreshToken:      model.StrPtr(id.RefreshToken),
	}

	u, err := s.userByEmail(ctx, id.Email)
	switch {
	case err == nil:
		if !id.EmailVerified {
			return model.User{}, ErrAccountNotLinked
		}
		account.UserID = u.ID
		if err := s.Links.Create(ctx, account); err != nil && !errors.Is(err, repository.ErrAccountLinked) {
			return model.User{}, fmt.Errorf("link provider: %w", err)
		}
		if !u.IsVerified {
			if err := s.Users.MarkVerified(ctx, u.ID); err != nil {
				return model.User{}, fmt.Errorf("mark verified: %w", err)
			}
			u.IsVerified = true
		}
		return s.backfillImage(ctx, u, id.Picture), nil
	case !errors.Is(err, ErrUserNotFound):
		return model.User{}, err
	}

	settings, err := s.Settings.Get(ctx)
	if err != nil {
		return model.User{}, fmt.Errorf("load settings: %w", err)
	}
	if !settings.AllowRegistration {
		return model.User{}, ErrRegistrationClosed
	}
	username, err := s.uniqueUsername(ctx, id.Email)
	if err != nil {
		return model.User{}, err
	}
	newID, err := s.Users.CreateWithAccount(ctx, repository.NewUser{
		Email:        id.Email,
		Username:     &username,
		Name:         model.StrPtr(id.Name),
		ProfileImage: model.StrPtr(id.Picture),
		IsVerified:   true,
		Role:         model.RoleUser,
		IsActive:     true,
	}, account)
	if err != nil {
		return model.User{}, mapConflict(err)
	}
	s.logActivity(ctx, newID, model.ActivityRegister, id.Provider)
	return s.userByID(ctx, newID)
}

// backfillImage stores the provider picture when the user has none.
func (s *Accounts) backfillImage(ctx context.Context, u model.User, picture string) model.User {
	if picture == "" || model.Str(u.ProfileImage) != "" {
		return u
	}
	if err := s.Users.SetProfileImage(ctx, u.ID, &picture); err != nil {
		s.Logger.WarnContext(ctx, "backfill profile image failed", "user_id", u.ID, "err", err)
		return u
	}
	u.ProfileImage = &picture
	return u
}

var usernameStrip = regexp.MustCompile(`[^a-z0-9_]+`)

// uniqueUsername derives a free username from the email local part.
// Non-ASCII letters are transliterated, so "josé" becomes "jose".
func (s *Accounts) uniqueUsername(ctx context.Context, email string) (string, error) {
	base := email
	if i := strings.IndexByte(base, '@'); i >= 0 {
		base = base[:i]
	}
	base = usernameStrip.ReplaceAllString(slug.Make(base), "")
	if len(base) > 24 {
		base = base[:24]
	}
	for len(base) < 3 {
		base += "_"
	}

	candidate := base
	for i := 0; i < 5; i++ {
		_, err := s.Users.GetByUsername(ctx, candidate)
		if errors.Is(err, repository.ErrNotFound) {
			return candidate, nil
		}
		if err != nil {
			return "", fmt.Errorf("check username: %w", err)
		}
		suffix, err := utils.GenerateCode(5)
		if err != nil {
			return "", err
		}
		candidate = base + suffix
	}
	return "", ErrUsernameTaken
}
