package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/account-service/internal/database"
	"github.com/iliyamo/account-service/internal/model"
)

const userColumns = "id, email, username, name, profile_image, password_hash, is_verified, role, is_active, active_until, created_at, updated_at"

// NewUser is the insert shape for users.
type NewUser struct {
	Email        string
	Username     *string
	Name         *string
	ProfileImage *string
	PasswordHash *string
	IsVerified   bool
	Role         model.Role
	IsActive     bool
}

// ProfileUpdate carries the full set of editable profile columns.
type ProfileUpdate struct {
	Email    string
	Username *string
	Name     *string
}

type UserRepo struct{ DB *sqlx.DB }

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{DB: db} }

// NormalizeEmail lower-cases and trims an address before any lookup or write.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

const insertUser = "INSERT INTO users (email, username, name, profile_image, password_hash, is_verified, role, is_active) VALUES (?,?,?,?,?,?,?,?)"

func userArgs(u NewUser) []any {
	role := u.Role
	if role == "" {
		role = model.RoleUser
	}
	return []any{NormalizeEmail(u.Email), u.Username, u.Name, u.ProfileImage, u.PasswordHash, u.IsVerified, string(role), u.IsActive}
}

// Create inserts a user and returns its ID.
func (r *UserRepo) Create(ctx context.Context, u NewUser) (uint64, error) {
	res, err := r.DB.ExecContext(ctx, insertUser, userArgs(u)...)
	if err != nil {
		return 0, mapUserWriteErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// CreateWithAccount inserts a user and its provider link atomically.
func (r *UserRepo) CreateWithAccount(ctx context.Context, u NewUser, a model.Account) (uint64, error) {
	var id uint64
	err := database.WithTx(ctx, r.DB, nil, func(ctx context.Context, tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, insertUser, userArgs(u)...)
		if err != nil {
			return mapUserWriteErr(err)
		}
		lastID, err := res.LastInsertId()
		if err != nil {
			return err
		}
		id = uint64(lastID)
		a.UserID = id
		return insertAccount(ctx, tx, a)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	var u model.User
	err := r.DB.GetContext(ctx, &u,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", NormalizeEmail(email))
	return u, notFound(err)
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	var u model.User
	err := r.DB.GetContext(ctx, &u,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id)
	return u, notFound(err)
}

// GetByUsername fetches a user by exact username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (model.User, error) {
	var u model.User
	err := r.DB.GetContext(ctx, &u,
		"SELECT "+userColumns+" FROM users WHERE username=? LIMIT 1", strings.TrimSpace(username))
	return u, notFound(err)
}

// UpdateProfile overwrites email, username and name.
func (r *UserRepo) UpdateProfile(ctx context.Context, id uint64, p ProfileUpdate) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET email=?, username=?, name=? WHERE id=?",
		NormalizeEmail(p.Email), p.Username, p.Name, id)
	return mapUserWriteErr(err)
}

// SetProfileImage stores the avatar URL. nil clears it.
func (r *UserRepo) SetProfileImage(ctx context.Context, id uint64, url *string) error {
	_, err := r.DB.ExecContext(ctx, "UPDATE users SET profile_image=? WHERE id=?", url, id)
	return err
}

// MarkVerified flags the email as confirmed.
func (r *UserRepo) MarkVerified(ctx context.Context, id uint64) error {
	_, err := r.DB.ExecContext(ctx, "UPDATE users SET is_verified=1 WHERE id=?", id)
	return err
}

// Promote makes an existing user a verified, active ADMIN.
func (r *UserRepo) Promote(ctx context.Context, id uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET role='ADMIN', is_verified=1, is_active=1, active_until=NULL WHERE id=?", id)
	return err
}

// UpdateRole changes a user's role. Demoting the only remaining ADMIN fails
// with ErrLastAdmin; the admin rows are locked for the duration of the check
// so two concurrent demotions cannot both pass it.
func (r *UserRepo) UpdateRole(ctx context.Context, id uint64, role model.Role) error {
	return database.WithTx(ctx, r.DB, nil, func(ctx context.Context, tx *sqlx.Tx) error {
		var current string
		if err := tx.GetContext(ctx, &current, "SELECT role FROM users WHERE id=? FOR UPDATE", id); err != nil {
			return notFound(err)
		}
		if model.Role(current) == role {
			return nil
		}
		if model.Role(current) == model.RoleAdmin {
			var admins int
			if err := tx.GetContext(ctx, &admins, "SELECT COUNT(*) FROM users WHERE role='ADMIN' FOR UPDATE"); err != nil {
				return err
			}
			if admins <= 1 {
				return ErrLastAdmin
			}
		}
		_, err := tx.ExecContext(ctx, "UPDATE users SET role=? WHERE id=?", string(role), id)
		return err
	})
}

// SetActivation toggles is_active. Deactivating always clears active_until.
func (r *UserRepo) SetActivation(ctx context.Context, id uint64, active bool, until *time.Time) error {
	if !active {
		until = nil
	}
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET is_active=?, active_until=? WHERE id=?", active, until, id)
	return err
}

// List returns one page of users, newest first.
func (r *UserRepo) List(ctx context.Context, limit, offset int) ([]model.User, error) {
	users := []model.User{}
	err := r.DB.SelectContext(ctx, &users,
		"SELECT "+userColumns+" FROM users ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?", limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// Count returns the number of users.
func (r *UserRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.DB.GetContext(ctx, &n, "SELECT COUNT(*) FROM users")
	return n, err
}

// Stats aggregates dashboard counters. Active honours active_until.
func (r *UserRepo) Stats(ctx context.Context, now time.Time) (model.UserStats, error) {
	var s model.UserStats
	err := r.DB.GetContext(ctx, &s, `SELECT
		COUNT(*) AS total,
		COALESCE(SUM(is_active=1 AND (active_until IS NULL OR active_until > ?)), 0) AS active,
		COALESCE(SUM(role='ADMIN'), 0) AS admins,
		COALESCE(SUM(is_verified=1), 0) AS verified
		FROM users`, now)
	return s, err
}
