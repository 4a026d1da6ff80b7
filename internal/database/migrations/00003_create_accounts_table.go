package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upCreateAccountsTable, downCreateAccountsTable)
}

func upCreateAccountsTable(ctx context.Context, tx *sql.Tx) error {
	query := `
	CREATE TABLE IF NOT EXISTS accounts (
	  id                  BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
	  user_id             BIGINT UNSIGNED NOT NULL,
	  provider            VARCHAR(32) NOT NULL,
	  provider_account_id VARCHAR(255) NOT NULL,
	  access_token        TEXT NULL,
	  refresh_token       TEXT NULL,
	  expires_at          DATETIME NULL,
	  created_at          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	  UNIQUE KEY uq_accounts_provider (provider, provider_account_id),
	  KEY idx_accounts_user (user_id),
	  CONSTRAINT fk_accounts_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;
	`
	_, err := tx.ExecContext(ctx, query)
	return err
}

func downCreateAccountsTable(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS accounts;`)
	return err
}
