package model

import "time"

// CodePurpose separates email verification codes from password reset codes
// so that one cannot be redeemed for the other.
type CodePurpose string

const (
	PurposeVerifyEmail   CodePurpose = "VERIFY_EMAIL"
	PurposeResetPassword CodePurpose = "RESET_PASSWORD"
)

// VerificationCode mirrors a row of `verification_codes`. At most one live
// row exists per (user_id, purpose).
type VerificationCode struct {
	ID        uint64      `db:"id"`
	UserID    uint64      `db:"user_id"`
	Purpose   CodePurpose `db:"purpose"`
	Code      string      `db:"code"`
	ExpiresAt time.Time   `db:"expires_at"`
	CreatedAt time.Time   `db:"created_at"`
}

// Expired reports whether the code can no longer be redeemed at t.
func (c VerificationCode) Expired(t time.Time) bool {
	return !c.ExpiresAt.After(t)
}
