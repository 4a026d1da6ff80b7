package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/account-service/internal/model"
	"github.com/iliyamo/account-service/internal/repository"
)

// staleTokenAge is how long revoked or expired refresh tokens are kept.
const staleTokenAge = 7 * 24 * time.Hour

// Admin implements the admin panel operations.
type Admin struct {
	Deps
}

func NewAdmin(d Deps) *Admin {
	d.defaults()
	return &Admin{Deps: d}
}

// UserPage is one page of the user list.
type UserPage struct {
	Users []model.User
	Total int
	Page  int
	Limit int
	Pages int
}

// ListUsers pages through users, newest first. page starts at 1.
func (a *Admin) ListUsers(ctx context.Context, page, limit int) (UserPage, error) {
	if page < 1 {
		page = 1
	}
	limit = clampLimit(limit, 10, 100)
	users, err := a.Users.List(ctx, limit, (page-1)*limit)
	if err != nil {
		return UserPage{}, err
	}
	total, err := a.Users.Count(ctx)
	if err != nil {
		return UserPage{}, fmt.Errorf("count users: %w", err)
	}
	return UserPage{
		Users: users,
		Total: total,
		Page:  page,
		Limit: limit,
		Pages: (total + limit - 1) / limit,
	}, nil
}

// ChangeRole sets a user's role. The store refuses to demote the last ADMIN.
func (a *Admin) ChangeRole(ctx context.Context, actorID, userID uint64, role model.Role) (model.User, error) {
	if !role.Valid() {
		return model.User{}, ErrInvalidRole
	}
	before, err := userByID(ctx, a.Users, userID)
	if err != nil {
		return model.User{}, err
	}
	switch err := a.Users.UpdateRole(ctx, userID, role); {
	case errors.Is(err, repository.ErrLastAdmin):
		return model.User{}, ErrLastAdmin
	case errors.Is(err, repository.ErrNotFound):
		return model.User{}, ErrUserNotFound
	case err != nil:
		return model.User{}, fmt.Errorf("update role: %w", err)
	}
	if before.Role != role {
		a.logActivity(ctx, userID, model.ActivityRoleChange,
			fmt.Sprintf("%s -> %s by user %d", before.Role, role, actorID))
	}
	return userByID(ctx, a.Users, userID)
}

// SetActivation enables or disables an account. Deactivation clears the
// activation window; activation may set one that must end in the future.
// The user is told by mail.
func (a *Admin) SetActivation(ctx context.Context, actorID, userID uint64, active bool, until *time.Time) (model.User, error) {
	if !active {
		until = nil
	}
	if until != nil && !until.After(a.now()) {
		return model.User{}, ErrInvalidActiveUntil
	}
	u, err := userByID(ctx, a.Users, userID)
	if err != nil {
		return model.User{}, err
	}
	if err := a.Users.SetActivation(ctx, userID, active, until); err != nil {
		return model.User{}, fmt.Errorf("set activation: %w", err)
	}
	details := fmt.Sprintf("active=%t by user %d", active, actorID)
	if until != nil {
		details += " until " + until.UTC().Format(time.RFC3339)
	}
	a.logActivity(ctx, userID, model.ActivityActivation, details)

	msg, err := a.Composer.AccountStatus(u.Email, model.Str(u.Name), active, until)
	a.sendBestEffort(ctx, msg, err)
	return userByID(ctx, a.Users, userID)
}

// Stats returns the dashboard counters.
func (a *Admin) Stats(ctx context.Context) (model.UserStats, error) {
	return a.Users.Stats(ctx, a.now())
}

// RecentActivities lists activity across all users.
func (a *Admin) RecentActivities(ctx context.Context, limit int) ([]model.Activity, error) {
	return a.Activity.ListRecent(ctx, clampLimit(limit, 50, 200))
}

// CurrentSettings returns the resolved application settings.
func (a *Admin) CurrentSettings(ctx context.Context) (model.Settings, error) {
	return a.Settings.Get(ctx)
}

// UpdateSetting persists one named flag and returns the resulting settings.
func (a *Admin) UpdateSetting(ctx context.Context, name string, value bool) (model.Settings, error) {
	if !model.KnownSetting(name) {
		return model.Settings{}, ErrUnknownSetting
	}
	if err := a.Settings.Set(ctx, name, value); err != nil {
		return model.Settings{}, fmt.Errorf("save setting: %w", err)
	}
	return a.Settings.Get(ctx)
}

// Maintenance operations.
const (
	OpBackupDatabase = "backupDatabase"
	OpCleanSessions  = "cleanSessions"
)

// MaintenanceResult reports what an operation did.
type MaintenanceResult struct {
	Operation       string
	Message         string
	RecordsCaptured int64
	CleanedCount    int64
}

// Maintenance runs an admin housekeeping operation. backupDatabase only
// reports the number of user records a backup would capture.
func (a *Admin) Maintenance(ctx context.Context, op string) (MaintenanceResult, error) {
	switch op {
	case OpBackupDatabase:
		n, err := a.Users.Count(ctx)
		if err != nil {
			return MaintenanceResult{}, fmt.Errorf("count users: %w", err)
		}
		return MaintenanceResult{Operation: op, Message: "Database backup initiated", RecordsCaptured: int64(n)}, nil
	case OpCleanSessions:
		now := a.now()
		tokens, err := a.Tokens.DeleteStale(ctx, now.Add(-staleTokenAge))
		if err != nil {
			return MaintenanceResult{}, fmt.Errorf("clean refresh tokens: %w", err)
		}
		codes, err := a.Codes.DeleteExpired(ctx, now)
		if err != nil {
			return MaintenanceResult{}, fmt.Errorf("clean codes: %w", err)
		}
		return MaintenanceResult{Operation: op, Message: "Expired sessions cleaned", CleanedCount: tokens + codes}, nil
	default:
		return MaintenanceResult{}, ErrUnknownOperation
	}
}
