// Package database opens the SQL connection pool and hides the few places
// where MySQL, PostgreSQL and SQLite disagree: driver names, isolation
// levels, insert-if-absent syntax, generated ids and error codes.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Supported dialect names.
const (
	MySQL    = "mysql"
	Postgres = "postgres"
	SQLite   = "sqlite"
)

// Dialect captures per-database behaviour.
type Dialect struct {
	Name      string
	Driver    string             // database/sql driver name
	Isolation sql.IsolationLevel // isolation used for write transactions
}

// DialectFor resolves a configured driver name.
func DialectFor(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "mysql", "":
		return Dialect{Name: MySQL, Driver: "mysql", Isolation: sql.LevelSerializable}, nil
	case "postgres", "postgresql", "pg":
		return Dialect{Name: Postgres, Driver: "postgres", Isolation: sql.LevelSerializable}, nil
	case "sqlite", "sqlite3":
		// SQLite transactions are serializable already; the DSN makes them
		// take the write lock up front (BEGIN IMMEDIATE).
		return Dialect{Name: SQLite, Driver: "sqlite", Isolation: sql.LevelDefault}, nil
	}
	return Dialect{}, fmt.Errorf("unsupported driver %q", name)
}

// InsertIgnore turns "INSERT INTO t (cols) VALUES (...)" into a statement
// that silently does nothing when the row would violate the conflict key.
func (d Dialect) InsertIgnore(insert, conflictCols string) string {
	switch d.Name {
	case MySQL:
		// a no-op update keeps RowsAffected at 0 for existing rows, unlike
		// INSERT IGNORE which would also swallow unrelated errors
		return insert + " ON DUPLICATE KEY UPDATE id = id"
	default:
		return insert + " ON CONFLICT (" + conflictCols + ") DO NOTHING"
	}
}

// InsertReturningID executes an INSERT inside tx and returns the generated
// id.  Postgres has no LastInsertId so the statement is extended with
// RETURNING id.
func (d Dialect) InsertReturningID(ctx context.Context, tx *sqlx.Tx, insert string, args ...interface{}) (uint64, error) {
	if d.Name == Postgres {
		var id uint64
		if err := tx.QueryRowxContext(ctx, tx.Rebind(insert+" RETURNING id"), args...).Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	}
	res, err := tx.ExecContext(ctx, tx.Rebind(insert), args...)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// IsUniqueViolation reports whether err is a duplicate-key error.
func IsUniqueViolation(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		if code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY {
			return true
		}
		return code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(liteErr.Error(), "UNIQUE")
	}
	return false
}

// IsRetryable reports whether err is a transient write-write conflict:
// deadlock, serialization failure, lock timeout or a busy SQLite file.
func IsRetryable(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1213 || myErr.Number == 1205
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "40001" || pqErr.Code == "40P01"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		base := liteErr.Code() & 0xff
		return base == sqlite3.SQLITE_BUSY || base == sqlite3.SQLITE_LOCKED
	}
	return false
}
