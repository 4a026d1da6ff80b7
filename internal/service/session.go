package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/account-service/internal/model"
	"github.com/iliyamo/account-service/internal/repository"
	"github.com/iliyamo/account-service/internal/utils"
)

// Session is the outcome of a successful sign-in or refresh.
type Session struct {
	User    model.User
	Claims  utils.SessionClaims
	Access  utils.AccessToken
	Refresh utils.RefreshToken
}

// ClaimsFor derives session claims from the persisted user. IsActive
// accounts for an activation window that ended.
func ClaimsFor(u model.User, now time.Time) utils.SessionClaims {
	return utils.SessionClaims{
		ID:         u.ID,
		Email:      u.Email,
		Name:       model.Str(u.Name),
		Image:      model.Str(u.ProfileImage),
		Role:       string(u.Role),
		IsVerified: u.IsVerified,
		IsActive:   u.ActiveAt(now),
	}
}

// Login checks credentials and opens a session. Password accounts that have
// not confirmed their email get ErrUnverifiedUser while verification is
// required.
func (s *Accounts) Login(ctx context.Context, email, password string) (Session, error) {
	u, err := s.userByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		logins.WithLabelValues("invalid").Inc()
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, err
	}
	if !u.HasPassword() || !utils.VerifyPassword(u.PasswordHash, password) {
		logins.WithLabelValues("invalid").Inc()
		return Session{}, ErrInvalidCredentials
	}
	settings, err := s.Settings.Get(ctx)
	if err != nil {
		return Session{}, fmt.Errorf("load settings: %w", err)
	}
	if settings.RequireVerification && !u.IsVerified {
		logins.WithLabelValues("unverified").Inc()
		return Session{}, ErrUnverifiedUser
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
	s.logActivity(ctx, u.ID, model.ActivityLogin, "")
	return sess, nil
}

// Refresh rotates a refresh token: the presented one is revoked and a new
// pair is issued from the current state of the user row.
func (s *Accounts) Refresh(ctx context.Context, raw string) (Session, error) {
	hash := utils.HashRefreshRaw(strings.TrimSpace(raw))
	u, err := s.refreshOwner(ctx, hash)
	if err != nil {
		return Session{}, err
	}
	if err := s.Tokens.RevokeByHash(ctx, hash); err != nil {
		return Session{}, fmt.Errorf("revoke refresh: %w", err)
	}
	return s.openSession(ctx, u)
}

// RefreshAccess issues a new access token without rotating the refresh token.
func (s *Accounts) RefreshAccess(ctx context.Context, raw string) (utils.AccessToken, utils.SessionClaims, error) {
	u, err := s.refreshOwner(ctx, utils.HashRefreshRaw(strings.TrimSpace(raw)))
	if err != nil {
		return utils.AccessToken{}, utils.SessionClaims{}, err
	}
	return s.sign(u)
}

// RevokeRefresh revokes one refresh token after checking it is live.
func (s *Accounts) RevokeRefresh(ctx context.Context, raw string) error {
	hash := utils.HashRefreshRaw(strings.TrimSpace(raw))
	if _, err := s.Tokens.ValidateRefresh(ctx, hash, s.now()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidRefresh
		}
		return fmt.Errorf("validate refresh: %w", err)
	}
	return s.Tokens.RevokeByHash(ctx, hash)
}

// RevokeAll signs the user out everywhere.
func (s *Accounts) RevokeAll(ctx context.Context, userID uint64) error {
	return s.Tokens.RevokeAllForUser(ctx, userID)
}

// CurrentSession reloads the user behind a token and re-signs its claims so
// role or status changes show up without signing in again.
func (s *Accounts) CurrentSession(ctx context.Context, userID uint64) (utils.AccessToken, utils.SessionClaims, error) {
	u, err := s.userByID(ctx, userID)
	if err != nil {
		return utils.AccessToken{}, utils.SessionClaims{}, err
	}
	return s.sign(u)
}

// RequireVerification reports the requireVerification setting.
func (s *Accounts) RequireVerification(ctx context.Context) (bool, error) {
	settings, err := s.Settings.Get(ctx)
	if err != nil {
		return true, fmt.Errorf("load settings: %w", err)
	}
	return settings.RequireVerification, nil
}

// ReloadClaims returns fresh claims for userID.
func (s *Accounts) ReloadClaims(ctx context.Context, userID uint64) (utils.SessionClaims, error) {
	u, err := s.userByID(ctx, userID)
	if err != nil {
		return utils.SessionClaims{}, err
	}
	return ClaimsFor(u, s.now()), nil
}

func (s *Accounts) refreshOwner(ctx context.Context, hash string) (model.User, error) {
	userID, err := s.Tokens.ValidateRefresh(ctx, hash, s.now())
	if errors.Is(err, repository.ErrNotFound) {
		return model.User{}, ErrInvalidRefresh
	}
	if err != nil {
		return model.User{}, fmt.Errorf("validate refresh: %w", err)
	}
	u, err := s.userByID(ctx, userID)
	if errors.Is(err, ErrUserNotFound) {
		return model.User{}, ErrInvalidRefresh
	}
	if err != nil {
		return model.User{}, err
	}
	if !u.ActiveAt(s.now()) {
		return model.User{}, ErrAccountInactive
	}
	return u, nil
}

func (s *Accounts) sign(u model.User) (utils.AccessToken, utils.SessionClaims, error) {
	claims := ClaimsFor(u, s.now())
	access, err := utils.NewAccessToken(s.Opts.JWTSecret, claims, s.now(), s.Opts.AccessTTLMin)
	if err != nil {
		return utils.AccessToken{}, utils.SessionClaims{}, fmt.Errorf("issue access: %w", err)
	}
	return access, claims, nil
}

func (s *Accounts) openSession(ctx context.Context, u model.User) (Session, error) {
	access, claims, err := s.sign(u)
	if err != nil {
		return Session{}, err
	}
	refresh, err := utils.NewRefreshToken(s.now(), s.Opts.RefreshTTLDays)
	if err != nil {
		return Session{}, fmt.Errorf("issue refresh: %w", err)
	}
	if err := s.Tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return Session{}, fmt.Errorf("save refresh: %w", err)
	}
	return Session{User: u, Claims: claims, Access: access, Refresh: refresh}, nil
}
