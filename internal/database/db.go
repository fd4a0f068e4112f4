package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

func init() {
	// sqlx only knows "sqlite3" out of the box; modernc registers "sqlite".
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// DB bundles the connection pool with the dialect it speaks so that
// repositories and services can issue portable statements.
type DB struct {
	*sqlx.DB
	Dialect Dialect
}

// Options describes how to reach the database.  DSN wins over the
// individual fields when set.
type Options struct {
	Driver string
	DSN    string
	User   string
	Pass   string
	Host   string
	Port   string
	Name   string
	Path   string // sqlite file
}

// Open connects to the configured database and verifies the connection.
func Open(opts Options) (*DB, error) {
	dialect, err := DialectFor(opts.Driver)
	if err != nil {
		return nil, err
	}
	dsn := opts.DSN
	if dsn == "" {
		dsn, err = buildDSN(dialect, opts)
		if err != nil {
			return nil, err
		}
	}

	db, err := sqlx.Open(dialect.Driver, dsn)
	if err != nil {
		return nil, err
	}

	// Pool settings
	if dialect.Name == SQLite {
		// one writer at a time; extra connections only queue on the file lock
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	// Ping with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &DB{DB: db, Dialect: dialect}, nil
}

func buildDSN(d Dialect, o Options) (string, error) {
	switch d.Name {
	case MySQL:
		auth := o.User
		if o.Pass != "" {
			auth = fmt.Sprintf("%s:%s", o.User, o.Pass)
		}
		// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
		return fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
			auth, o.Host, o.Port, o.Name), nil
	case Postgres:
		u := url.URL{
			Scheme: "postgres",
			Host:   o.Host + ":" + o.Port,
			Path:   "/" + o.Name,
		}
		if o.Pass != "" {
			u.User = url.UserPassword(o.User, o.Pass)
		} else {
			u.User = url.User(o.User)
		}
		q := u.Query()
		sslMode := "require"
		if o.Host == "localhost" || o.Host == "127.0.0.1" {
			sslMode = "disable"
		}
		q.Set("sslmode", sslMode)
		u.RawQuery = q.Encode()
		return u.String(), nil
	case SQLite:
		if o.Path == "" {
			return "", fmt.Errorf("sqlite requires DB_PATH")
		}
		if dir := filepath.Dir(o.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return "", fmt.Errorf("create sqlite dir: %w", err)
			}
		}
		return SQLiteDSN(o.Path), nil
	}
	return "", fmt.Errorf("unsupported driver %q", d.Name)
}

// SQLiteDSN returns a modernc DSN for path with immediate write
// transactions, a busy timeout and foreign keys on.
func SQLiteDSN(path string) string {
	return path + "?_txlock=immediate&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)"
}

// WithTx runs fn inside a transaction using the dialect's isolation level.
// The transaction is committed when fn returns nil and rolled back
// otherwise, including on panic.
func (d *DB) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := d.BeginTxx(ctx, &sql.TxOptions{Isolation: d.Dialect.Isolation})
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
