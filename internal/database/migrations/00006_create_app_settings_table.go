package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upCreateAppSettingsTable, downCreateAppSettingsTable)
}

func upCreateAppSettingsTable(ctx context.Context, tx *sql.Tx) error {
	query := `
	CREATE TABLE IF NOT EXISTS app_settings (
	  name       VARCHAR(64) NOT NULL PRIMARY KEY,
	  value      TINYINT(1) NOT NULL,
	  updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;
	`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx,
		`INSERT IGNORE INTO app_settings (name, value) VALUES ('allowRegistration', 1), ('requireVerification', 1);`)
	return err
}

func downCreateAppSettingsTable(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS app_settings;`)
	return err
}
