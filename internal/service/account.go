package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/account-service/internal/mail"
	"github.com/iliyamo/account-service/internal/model"
	"github.com/iliyamo/account-service/internal/repository"
	"github.com/iliyamo/account-service/internal/utils"
)

// Accounts implements the self-service side of the application.
type Accounts struct {
	Deps
}

func NewAccounts(d Deps) *Accounts {
	d.defaults()
	if d.Links == nil {
		panic("service: nil account store")
	}
	return &Accounts{Deps: d}
}

// RegisterInput is a validated sign-up request.
type RegisterInput struct {
	Username string
	Email    string
	Password string
	Name     string
}

// RegisterResult reports the created user and whether the code mail went out.
type RegisterResult struct {
	User      model.User
	EmailSent bool
}

// Register creates an unverified USER and mails a VERIFY_EMAIL code.
// A mail failure does not undo the account; the user can ask for a resend.
func (s *Accounts) Register(ctx context.Context, in RegisterInput) (RegisterResult, error) {
	settings, err := s.Settings.Get(ctx)
	if err != nil {
		return RegisterResult{}, fmt.Errorf("load settings: %w", err)
	}
	if !settings.AllowRegistration {
		return RegisterResult{}, ErrRegistrationClosed
	}
	if err := utils.CheckPasswordPolicy(in.Password); err != nil {
		return RegisterResult{}, err
	}
	hash, err := utils.HashPassword(in.Password, s.Opts.BcryptCost)
	if err != nil {
		return RegisterResult{}, fmt.Errorf("hash password: %w", err)
	}

	id, err := s.Users.Create(ctx, repository.NewUser{
		Email:        in.Email,
		Username:     model.StrPtr(strings.TrimSpace(in.Username)),
		Name:         model.StrPtr(strings.TrimSpace(in.Name)),
		PasswordHash: &hash,
		Role:         model.RoleUser,
		IsActive:     true,
	})
	if err != nil {
		return RegisterResult{}, mapConflict(err)
	}
	u, err := s.Users.GetByID(ctx, id)
	if err != nil {
		return RegisterResult{}, fmt.Errorf("load new user: %w", err)
	}
	s.logActivity(ctx, u.ID, model.ActivityRegister, "")

	// The registration mail counts as the first issuance for the resend window.
	key := codeThrottleKey(string(model.PurposeVerifyEmail), u.ID)
	s.Throttle.Allow(ctx, key, s.Opts.ResendInterval)
	sent := true
	if err := s.issueAndSend(ctx, u, model.PurposeVerifyEmail); err != nil {
		s.Logger.ErrorContext(ctx, "verification mail failed", "user_id", u.ID, "err", err)
		s.Throttle.Release(ctx, key)
		sent = false
	}
	return RegisterResult{User: u, EmailSent: sent}, nil
}

// ResendCode replaces the user's verification code and mails the new one.
func (s *Accounts) ResendCode(ctx context.Context, email string) error {
	u, err := s.userByEmail(ctx, email)
	if err != nil {
		return err
	}
	if u.IsVerified {
		return ErrAlreadyVerified
	}
	key := codeThrottleKey(string(model.PurposeVerifyEmail), u.ID)
	if ok, wait := s.Throttle.Allow(ctx, key, s.Opts.ResendInterval); !ok {
		return &ThrottledError{RetryAfter: wait}
	}
	if err := s.issueAndSend(ctx, u, model.PurposeVerifyEmail); err != nil {
		s.Throttle.Release(ctx, key)
		return err
	}
	return nil
}

// VerifyResult distinguishes a fresh verification from a repeated one.
type VerifyResult struct {
	AlreadyVerified bool
}

// Verify redeems a VERIFY_EMAIL code.
func (s *Accounts) Verify(ctx context.Context, email, code string) (VerifyResult, error) {
	u, err := s.userByEmail(ctx, email)
	if err != nil {
		return VerifyResult{}, err
	}
	if u.IsVerified {
		return VerifyResult{AlreadyVerified: true}, nil
	}
	err = s.Codes.ConsumeEmailVerification(ctx, u.ID, strings.TrimSpace(code), s.now())
	if err := s.codeResult(model.PurposeVerifyEmail, err); err != nil {
		return VerifyResult{}, err
	}
	s.logActivity(ctx, u.ID, model.ActivityVerifyEmail, "")
	msg, err := s.Composer.Welcome(u.Email, model.Str(u.Name))
	s.sendBestEffort(ctx, msg, err)
	return VerifyResult{}, nil
}

// UserExists reports whether an account uses email.
func (s *Accounts) UserExists(ctx context.Context, email string) (bool, error) {
	_, err := s.userByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return false, nil
	}
	return err == nil, err
}

// ForgotPassword mails a RESET_PASSWORD code. Unknown addresses and
// throttled requests report success without sending, so the response never
// reveals whether an address is registered.
func (s *Accounts) ForgotPassword(ctx context.Context, email string) (bool, error) {
	u, err := s.userByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	key := codeThrottleKey(string(model.PurposeResetPassword), u.ID)
	if ok, _ := s.Throttle.Allow(ctx, key, s.Opts.ResendInterval); !ok {
		s.Logger.InfoContext(ctx, "reset code throttled", "user_id", u.ID)
		return false, nil
	}
	s.logActivity(ctx, u.ID, model.ActivityForgotPassword, "")
	if err := s.issueAndSend(ctx, u, model.PurposeResetPassword); err != nil {
		s.Throttle.Release(ctx, key)
		s.Logger.ErrorContext(ctx, "reset mail failed", "user_id", u.ID, "err", err)
		return false, nil
	}
	return true, nil
}

// ResetPassword redeems a RESET_PASSWORD code and replaces the password.
// Every refresh token of the user is revoked afterwards.
func (s *Accounts) ResetPassword(ctx context.Context, email, code, password string) error {
	if err := utils.CheckPasswordPolicy(password); err != nil {
		return err
	}
	u, err := s.userByEmail(ctx, email)
	if err != nil {
		return err
	}
	hash, err := utils.HashPassword(password, s.Opts.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	err = s.Codes.ConsumePasswordReset(ctx, u.ID, strings.TrimSpace(code), hash, s.now())
	if err := s.codeResult(model.PurposeResetPassword, err); err != nil {
		return err
	}
	if err := s.Tokens.RevokeAllForUser(ctx, u.ID); err != nil {
		s.Logger.WarnContext(ctx, "revoke refresh tokens failed", "user_id", u.ID, "err", err)
	}
	s.logActivity(ctx, u.ID, model.ActivityResetPassword, "")
	msg, err := s.Composer.PasswordChanged(u.Email, model.Str(u.Name), s.now())
	s.sendBestEffort(ctx, msg, err)
	return nil
}

// issueAndSend stores a fresh code for purpose, replacing any older one, and
// mails it after the write committed.
func (s *Accounts) issueAndSend(ctx context.Context, u model.User, purpose model.CodePurpose) error {
	code, err := utils.GenerateCode(s.Opts.CodeLength)
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}
	if err := s.Codes.Issue(ctx, u.ID, purpose, code, s.now().Add(s.Opts.CodeTTL)); err != nil {
		return fmt.Errorf("store code: %w", err)
	}
	codesIssued.WithLabelValues(string(purpose)).Inc()

	var msg mail.Message
	if purpose == model.PurposeResetPassword {
		msg, err = s.Composer.PasswordReset(u.Email, model.Str(u.Name), code, s.Opts.CodeTTL)
	} else {
		msg, err = s.Composer.Verification(u.Email, model.Str(u.Name), code, s.Opts.CodeTTL)
	}
	if err := s.send(ctx, msg, err); err != nil {
		return fmt.Errorf("%w: %v", ErrMailFailed, err)
	}
	return nil
}

func (s *Accounts) codeResult(purpose model.CodePurpose, err error) error {
	switch {
	case err == nil:
		codeAttempts.WithLabelValues(string(purpose), "ok").Inc()
		return nil
	case errors.Is(err, repository.ErrCodeInvalid):
		codeAttempts.WithLabelValues(string(purpose), "invalid").Inc()
		return ErrInvalidOrExpiredCode
	default:
		codeAttempts.WithLabelValues(string(purpose), "error").Inc()
		return fmt.Errorf("consume code: %w", err)
	}
}

func (s *Accounts) userByEmail(ctx context.Context, email string) (model.User, error) {
	u, err := s.Users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return model.User{}, ErrUserNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("load user: %w", err)
	}
	return u, nil
}

func (s *Accounts) userByID(ctx context.Context, id uint64) (model.User, error) {
	return userByID(ctx, s.Users, id)
}

func userByID(ctx context.Context, users UserStore, id uint64) (model.User, error) {
	u, err := users.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.User{}, ErrUserNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("load user: %w", err)
	}
	return u, nil
}

func mapConflict(err error) error {
	switch {
	case errors.Is(err, repository.ErrEmailExists):
		return ErrEmailTaken
	case errors.Is(err, repository.ErrUsernameExists):
		return ErrUsernameTaken
	default:
		return fmt.Errorf("write user: %w", err)
	}
}
