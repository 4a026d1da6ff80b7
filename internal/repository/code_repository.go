package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/account-service/internal/database"
	"github.com/iliyamo/account-service/internal/model"
)

// CodeRepo stores verification and password reset codes. Every write path
// runs in a transaction so that a user never holds two live codes for the
// same purpose and a code can be redeemed exactly once.
type CodeRepo struct{ DB *sqlx.DB }

func NewCodeRepo(db *sqlx.DB) *CodeRepo { return &CodeRepo{DB: db} }

// Issue replaces any outstanding code for (userID, purpose) with code.
func (r *CodeRepo) Issue(ctx context.Context, userID uint64, purpose model.CodePurpose, code string, expiresAt time.Time) error {
	return database.WithTx(ctx, r.DB, nil, func(ctx context.Context, tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM verification_codes WHERE user_id=? AND purpose=?",
			userID, string(purpose)); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			"INSERT INTO verification_codes (user_id, purpose, code, expires_at) VALUES (?,?,?,?)",
			userID, string(purpose), code, expiresAt.UTC())
		return err
	})
}

// ConsumeEmailVerification redeems a VERIFY_EMAIL code and marks the user verified.
func (r *CodeRepo) ConsumeEmailVerification(ctx context.Context, userID uint64, code string, now time.Time) error {
	return r.consume(ctx, userID, model.PurposeVerifyEmail, code, now, func(ctx context.Context, tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, "UPDATE users SET is_verified=1 WHERE id=?", userID)
		return err
	})
}

// ConsumePasswordReset redeems a RESET_PASSWORD code and stores the new hash.
// Proving control of the mailbox also verifies the email.
func (r *CodeRepo) ConsumePasswordReset(ctx context.Context, userID uint64, code, passwordHash string, now time.Time) error {
	return r.consume(ctx, userID, model.PurposeResetPassword, code, now, func(ctx context.Context, tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx,
			"UPDATE users SET password_hash=?, is_verified=1 WHERE id=?", passwordHash, userID)
		return err
	})
}

// consume locks the matching live row of the purpose, deletes every code the
// user holds, then runs apply inside the same transaction.
func (r *CodeRepo) consume(ctx context.Context, userID uint64, purpose model.CodePurpose, code string, now time.Time,
	apply func(ctx context.Context, tx *sqlx.Tx) error) error {
	return database.WithTx(ctx, r.DB, nil, func(ctx context.Context, tx *sqlx.Tx) error {
		var id uint64
		err := tx.GetContext(ctx, &id,
			"SELECT id FROM verification_codes WHERE user_id=? AND purpose=? AND code=? AND expires_at > ? LIMIT 1 FOR UPDATE",
			userID, string(purpose), code, now.UTC())
		if errors.Is(err, sql.ErrNoRows) {
			return ErrCodeInvalid
		}
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM verification_codes WHERE user_id=?", userID); err != nil {
			return err
		}
		return apply(ctx, tx)
	})
}

// DeleteExpired removes codes whose expiry is at or before now.
func (r *CodeRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM verification_codes WHERE expires_at <= ?", now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
