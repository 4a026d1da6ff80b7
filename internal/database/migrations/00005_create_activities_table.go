package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upCreateActivitiesTable, downCreateActivitiesTable)
}

func upCreateActivitiesTable(ctx context.Context, tx *sql.Tx) error {
	query := `
	CREATE TABLE IF NOT EXISTS activities (
	  id         BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
	  user_id    BIGINT UNSIGNED NOT NULL,
	  action     VARCHAR(64) NOT NULL,
	  details    TEXT NULL,
	  ip_address VARCHAR(64) NULL,
	  user_agent VARCHAR(512) NULL,
	  created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	  KEY idx_activities_user_created (user_id, created_at),
	  CONSTRAINT fk_activities_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;
	`
	_, err := tx.ExecContext(ctx, query)
	return err
}

func downCreateActivitiesTable(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS activities;`)
	return err
}
