package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/account-service/internal/utils"
)

var (
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrUnverifiedUser       = errors.New("UnverifiedUser")
	ErrAccountInactive      = errors.New("AccountInactive")
	ErrInvalidOrExpiredCode = errors.New("InvalidOrExpiredCode")
	ErrUserNotFound         = errors.New("user not found")
	ErrAlreadyVerified      = errors.New("email already verified")
	ErrEmailTaken           = errors.New("email is already taken")
	ErrUsernameTaken        = errors.New("username is already taken")
	ErrRegistrationClosed   = errors.New("registration is disabled")
	ErrInvalidRefresh       = errors.New("invalid refresh")
	ErrLastAdmin            = errors.New("cannot demote the last admin")
	ErrInvalidRole          = errors.New("invalid role")
	ErrInvalidActiveUntil   = errors.New("activeUntil must be in the future")
	ErrUnknownSetting       = errors.New("unknown setting")
	ErrUnknownOperation     = errors.New("unknown operation")
	ErrMailFailed           = errors.New("failed to send email")
	ErrThrottled            = errors.New("too many requests")
	ErrAccountNotLinked     = errors.New("OAuthAccountNotLinked")

	// ErrWeakPassword is the password policy violation.
	ErrWeakPassword = utils.ErrWeakPassword
)

// ThrottledError carries the wait before another code may be issued.
type ThrottledError struct {
	RetryAfter time.Duration
}

func (e *ThrottledError) Error() string {
	return fmt.Sprintf("too many requests, retry after %s", e.RetryAfter.Round(time.Second))
}

func (e *ThrottledError) Unwrap() error { return ErrThrottled }
