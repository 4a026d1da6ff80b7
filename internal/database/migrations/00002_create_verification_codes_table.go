package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upCreateVerificationCodesTable, downCreateVerificationCodesTable)
}

func upCreateVerificationCodesTable(ctx context.Context, tx *sql.Tx) error {
	query := `
	CREATE TABLE IF NOT EXISTS verification_codes (
	  id         BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
	  user_id    BIGINT UNSIGNED NOT NULL,
	  purpose    ENUM('VERIFY_EMAIL','RESET_PASSWORD') NOT NULL,
	  code       VARCHAR(10) NOT NULL,
	  expires_at DATETIME NOT NULL,
	  created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	  KEY idx_codes_user_purpose (user_id, purpose),
	  KEY idx_codes_expires_at (expires_at),
	  CONSTRAINT fk_codes_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;
	`
	_, err := tx.ExecContext(ctx, query)
	return err
}

func downCreateVerificationCodesTable(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS verification_codes;`)
	return err
}
