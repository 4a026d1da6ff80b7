package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upCreateUsersTable, downCreateUsersTable)
}

func upCreateUsersTable(ctx context.Context, tx *sql.Tx) error {
	query := `
	CREATE TABLE IF NOT EXISTS users (
	  id            BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
	  email         VARCHAR(255) NOT NULL,
	  username      VARCHAR(64) NULL,
	  name          VARCHAR(100) NULL,
	  profile_image VARCHAR(512) NULL,
	  password_hash VARCHAR(255) NULL,
	  is_verified   TINYINT(1) NOT NULL DEFAULT 0,
	  role          ENUM('USER','ADMIN') NOT NULL DEFAULT 'USER',
	  is_active     TINYINT(1) NOT NULL DEFAULT 1,
	  active_until  DATETIME NULL,
	  created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	  updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
	  UNIQUE KEY uq_users_email (email),
	  UNIQUE KEY uq_users_username (username),
	  KEY idx_users_role (role),
	  KEY idx_users_created_at (created_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;
	`
	_, err := tx.ExecContext(ctx, query)
	return err
}

func downCreateUsersTable(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS users;`)
	return err
}
