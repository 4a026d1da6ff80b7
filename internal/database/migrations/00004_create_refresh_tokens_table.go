package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upCreateRefreshTokensTable, downCreateRefreshTokensTable)
}

func upCreateRefreshTokensTable(ctx context.Context, tx *sql.Tx) error {
	query := `
	CREATE TABLE IF NOT EXISTS refresh_tokens (
	  id         BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
	  user_id    BIGINT UNSIGNED NOT NULL,
	  token_hash CHAR(64) NOT NULL,
	  expires_at DATETIME NOT NULL,
	  revoked_at DATETIME NULL,
	  created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	  UNIQUE KEY uq_refresh_hash (token_hash),
	  KEY idx_refresh_user (user_id),
	  CONSTRAINT fk_refresh_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;
	`
	_, err := tx.ExecContext(ctx, query)
	return err
}

func downCreateRefreshTokensTable(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS refresh_tokens;`)
	return err
}
