package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/account-service/internal/model"
)

// AccountRepo stores OAuth provider links.
type AccountRepo struct{ DB *sqlx.DB }

func NewAccountRepo(db *sqlx.DB) *AccountRepo { return &AccountRepo{DB: db} }

const accountColumns = "id, user_id, provider, provider_account_id, access_token, refresh_token, expires_at, created_at"

// GetByProvider looks up the link for a provider identity.
func (r *AccountRepo) GetByProvider(ctx context.Context, provider, providerAccountID string) (model.Account, error) {
	var a model.Account
	err := r.DB.GetContext(ctx, &a,
		"SELECT "+accountColumns+" FROM accounts WHERE provider=? AND provider_account_id=? LIMIT 1",
		provider, providerAccountID)
	return a, notFound(err)
}

// Create links a provider identity to an existing user.
func (r *AccountRepo) Create(ctx context.Context, a model.Account) error {
	return insertAccount(ctx, r.DB, a)
}

// UpdateTokens refreshes the stored provider tokens after a sign-in.
func (r *AccountRepo) UpdateTokens(ctx context.Context, id uint64, access, refresh *string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE accounts SET access_token=?, refresh_token=COALESCE(?, refresh_token) WHERE id=?",
		access, refresh, id)
	return err
}

func insertAccount(ctx context.Context, ex sqlx.ExecerContext, a model.Account) error {
	_, err := ex.ExecContext(ctx,
		"INSERT INTO accounts (user_id, provider, provider_account_id, access_token, refresh_token, expires_at) VALUES (?,?,?,?,?,?)",
		a.UserID, a.Provider, a.ProviderAccountID, a.AccessToken, a.RefreshToken, a.ExpiresAt)
	if _, dup := duplicateKey(err); dup {
		return ErrAccountLinked
	}
	return err
}
