package model

import "time"

// Account links a user to an external identity provider.
type Account struct {
	ID                uint64     `db:"id"`
	UserID            uint64     `db:"user_id"`
	Provider          string     `db:"provider"`
	ProviderAccountID string     `db:"provider_account_id"`
	AccessToken       *string    `db:"access_token"`
	RefreshToken      *string    `db:"refresh_token"`
	ExpiresAt         *time.Time `db:"expires_at"`
	CreatedAt         time.Time  `db:"created_at"`
}

// Activity is one line of the per-user audit trail.
type Activity struct {
	ID        uint64    `db:"id"`
	UserID    uint64    `db:"user_id"`
	Action    string    `db:"action"`
	Details   *string   `db:"details"`
	IPAddress *string   `db:"ip_address"`
	UserAgent *string   `db:"user_agent"`
	CreatedAt time.Time `db:"created_at"`
}

const (
	ActivityRegister       = "REGISTER"
	ActivityVerifyEmail    = "VERIFY_EMAIL"
	ActivityLogin          = "LOGIN"
	ActivityOAuthLogin     = "OAUTH_LOGIN"
	ActivityForgotPassword = "FORGOT_PASSWORD"
	ActivityResetPassword  = "RESET_PASSWORD"
	ActivityProfileUpdate  = "PROFILE_UPDATE"
	ActivityImageUpdate    = "PROFILE_IMAGE_UPDATE"
	ActivityRoleChange     = "ROLE_CHANGE"
	ActivityActivation     = "ACTIVATION_CHANGE"
)
