package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/account-service/internal/model"
)

// SettingsRepo reads and writes app_settings.
type SettingsRepo struct{ DB *sqlx.DB }

func NewSettingsRepo(db *sqlx.DB) *SettingsRepo { return &SettingsRepo{DB: db} }

// Get resolves all settings, defaulting missing rows.
func (r *SettingsRepo) Get(ctx context.Context) (model.Settings, error) {
	var rows []struct {
		Name  string `db:"name"`
		Value bool   `db:"value"`
	}
	s := model.DefaultSettings()
	if err := r.DB.SelectContext(ctx, &rows, "SELECT name, value FROM app_settings"); err != nil {
		return s, err
	}
	for _, row := range rows {
		switch row.Name {
		case model.SettingAllowRegistration:
			s.AllowRegistration = row.Value
		case model.SettingRequireVerification:
			s.RequireVerification = row.Value
		}
	}
	return s, nil
}

// Set upserts one setting.
func (r *SettingsRepo) Set(ctx context.Context, name string, value bool) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO app_settings (name, value) VALUES (?,?) ON DUPLICATE KEY UPDATE value=VALUES(value)",
		name, value)
	return err
}
