// Package repository holds the MySQL data access layer. Sentinel errors
// let the service layer distinguish failure cases without inspecting driver
// errors.
package repository

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

var (
	// ErrNotFound replaces sql.ErrNoRows at the package boundary.
	ErrNotFound = errors.New("not found")

	ErrEmailExists    = errors.New("email already exists")
	ErrUsernameExists = errors.New("username already exists")
	ErrAccountLinked  = errors.New("provider account already linked")

	// ErrLastAdmin is returned when a role change would leave no ADMIN.
	ErrLastAdmin = errors.New("cannot demote the last admin")

	// ErrCodeInvalid covers unknown, mismatched, expired and already used codes.
	ErrCodeInvalid = errors.New("invalid or expired code")
)

const mysqlDuplicateEntry = 1062

// duplicateKey returns the violated unique key name for MySQL error 1062.
func duplicateKey(err error) (string, bool) {
	var me *mysql.MySQLError
	if !errors.As(err, &me) || me.Number != mysqlDuplicateEntry {
		return "", false
	}
	// "Duplicate entry 'x' for key 'users.uq_users_email'"
	msg := me.Message
	if i := strings.LastIndex(msg, "for key '"); i >= 0 {
		key := strings.TrimSuffix(msg[i+len("for key '"):], "'")
		if j := strings.LastIndex(key, "."); j >= 0 {
			key = key[j+1:]
		}
		return key, true
	}
	return "", true
}

// mapUserWriteErr translates unique violations on the users table.
func mapUserWriteErr(err error) error {
	key, ok := duplicateKey(err)
	if !ok {
		return err
	}
	switch key {
	case "uq_users_username":
		return ErrUsernameExists
	default:
		return ErrEmailExists
	}
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
