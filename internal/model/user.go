package model

import "time"

// Role is the authorization level stored in users.role.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User represents an application user record as stored in the
// `users` table. Nullable columns are pointers so that sqlx can scan
// NULL without sql.Null* wrappers.
//
// Fields:
//
//	ID           – primary key identifier of the user.
//	Email        – unique, lower-cased email address.
//	Username     – unique handle, NULL until chosen.
//	Name         – display name.
//	ProfileImage – URL of the avatar, local path or OAuth provider URL.
//	PasswordHash – bcrypt hash, NULL for accounts created through OAuth.
//	IsVerified   – email ownership confirmed.
//	Role         – USER or ADMIN.
//	IsActive     – account enabled by an administrator.
//	ActiveUntil  – optional end of the activation window.
type User struct {
	ID           uint64     `db:"id"`
	Email        string     `db:"email"`
	Username     *string    `db:"username"`
	Name         *string    `db:"name"`
	ProfileImage *string    `db:"profile_image"`
	PasswordHash *string    `db:"password_hash"`
	IsVerified   bool       `db:"is_verified"`
	Role         Role       `db:"role"`
	IsActive     bool       `db:"is_active"`
	ActiveUntil  *time.Time `db:"active_until"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
}

// ActiveAt reports whether the account may sign in at t.
func (u User) ActiveAt(t time.Time) bool {
	if !u.IsActive {
		return false
	}
	return u.ActiveUntil == nil || u.ActiveUntil.After(t)
}

// HasPassword is false for users that only ever signed in through a provider.
func (u User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// Str dereferences an optional column value.
func Str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// StrPtr returns nil for the empty string.
func StrPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// RefreshToken models an entry in the `refresh_tokens` table. The plain
// token is never stored, only its SHA‑256 hash.
type RefreshToken struct {
	ID        uint64     `db:"id"`
	UserID    uint64     `db:"user_id"`
	TokenHash string     `db:"token_hash"`
	ExpiresAt time.Time  `db:"expires_at"`
	RevokedAt *time.Time `db:"revoked_at"`
	CreatedAt time.Time  `db:"created_at"`
}
