package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/account-service/internal/model"
)

// ActivityRepo appends to and reads the audit trail.
type ActivityRepo struct{ DB *sqlx.DB }

func NewActivityRepo(db *sqlx.DB) *ActivityRepo { return &ActivityRepo{DB: db} }

const activityColumns = "id, user_id, action, details, ip_address, user_agent, created_at"

// Log inserts one activity row.
func (r *ActivityRepo) Log(ctx context.Context, a model.Activity) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO activities (user_id, action, details, ip_address, user_agent) VALUES (?,?,?,?,?)",
		a.UserID, a.Action, a.Details, a.IPAddress, a.UserAgent)
	return err
}

// ListByUser returns the latest activities of one user.
func (r *ActivityRepo) ListByUser(ctx context.Context, userID uint64, limit int) ([]model.Activity, error) {
	out := []model.Activity{}
	err := r.DB.SelectContext(ctx, &out,
		"SELECT "+activityColumns+" FROM activities WHERE user_id=? ORDER BY created_at DESC, id DESC LIMIT ?",
		userID, limit)
	return out, err
}

// ListRecent returns the latest activities across all users.
func (r *ActivityRepo) ListRecent(ctx context.Context, limit int) ([]model.Activity, error) {
	out := []model.Activity{}
	err := r.DB.SelectContext(ctx, &out,
		"SELECT "+activityColumns+" FROM activities ORDER BY created_at DESC, id DESC LIMIT ?", limit)
	return out, err
}
