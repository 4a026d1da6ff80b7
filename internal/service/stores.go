package service

import (
	"context"
	"time"

	"github.com/iliyamo/account-service/internal/model"
	"github.com/iliyamo/account-service/internal/repository"
)

// The store interfaces are satisfied by the repository types.

type UserStore interface {
	Create(ctx context.Context, u repository.NewUser) (uint64, error)
	CreateWithAccount(ctx context.Context, u repository.NewUser, a model.Account) (uint64, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
	GetByUsername(ctx context.Context, username string) (model.User, error)
	UpdateProfile(ctx context.Context, id uint64, p repository.ProfileUpdate) error
	SetProfileImage(ctx context.Context, id uint64, url *string) error
	MarkVerified(ctx context.Context, id uint64) error
	Promote(ctx context.Context, id uint64) error
	UpdateRole(ctx context.Context, id uint64, role model.Role) error
	SetActivation(ctx context.Context, id uint64, active bool, until *time.Time) error
	List(ctx context.Context, limit, offset int) ([]model.User, error)
	Count(ctx context.Context) (int, error)
	Stats(ctx context.Context, now time.Time) (model.UserStats, error)
}

type CodeStore interface {
	Issue(ctx context.Context, userID uint64, purpose model.CodePurpose, code string, expiresAt time.Time) error
	ConsumeEmailVerification(ctx context.Context, userID uint64, code string, now time.Time) error
	ConsumePasswordReset(ctx context.Context, userID uint64, code, passwordHash string, now time.Time) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type TokenStore interface {
	StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string, now time.Time) (uint64, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID uint64) error
	DeleteStale(ctx context.Context, cutoff time.Time) (int64, error)
}

type AccountStore interface {
	GetByProvider(ctx context.Context, provider, providerAccountID string) (model.Account, error)
	Create(ctx context.Context, a model.Account) error
	UpdateTokens(ctx context.Context, id uint64, access, refresh *string) error
}

type ActivityStore interface {
	Log(ctx context.Context, a model.Activity) error
	ListByUser(ctx context.Context, userID uint64, limit int) ([]model.Activity, error)
	ListRecent(ctx context.Context, limit int) ([]model.Activity, error)
}

type SettingsStore interface {
	Get(ctx context.Context) (model.Settings, error)
	Set(ctx context.Context, name string, value bool) error
}

var (
	_ UserStore     = (*repository.UserRepo)(nil)
	_ CodeStore     = (*repository.CodeRepo)(nil)
	_ TokenStore    = (*repository.TokenRepo)(nil)
	_ AccountStore  = (*repository.AccountRepo)(nil)
	_ ActivityStore = (*repository.ActivityRepo)(nil)
	_ SettingsStore = (*repository.SettingsRepo)(nil)
)
