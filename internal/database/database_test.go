package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

func openTemp(t *testing.T) *DB {
	t.Helper()
	db, err := Open(Options{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "nested", "t.db")})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if _, err := db.Exec(`CREATE TABLE kv (k TEXT PRIMARY KEY, v TEXT NOT NULL)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	return db
}

func TestDialectFor(t *testing.T) {
	tests := []struct {
		in        string
		name      string
		isolation sql.IsolationLevel
	}{
		{"", MySQL, sql.LevelSerializable},
		{"MySQL", MySQL, sql.LevelSerializable},
		{"postgresql", Postgres, sql.LevelSerializable},
		{"pg", Postgres, sql.LevelSerializable},
		{"sqlite3", SQLite, sql.LevelDefault},
	}
	for _, tt := range tests {
		d, err := DialectFor(tt.in)
		if err != nil {
			t.Fatalf("DialectFor(%q): %v", tt.in, err)
		}
		if d.Name != tt.name || d.Isolation != tt.isolation {
			t.Errorf("DialectFor(%q) = %+v", tt.in, d)
		}
	}
	if _, err := DialectFor("oracle"); err == nil {
		t.Error("DialectFor accepted oracle")
	}
}

func TestInsertIgnore(t *testing.T) {
	const ins = "INSERT INTO t (a, b) VALUES (?, ?)"
	my, _ := DialectFor("mysql")
	if got := my.InsertIgnore(ins, "a, b"); got != ins+" ON DUPLICATE KEY UPDATE id = id" {
		t.Errorf("mysql = %q", got)
	}
	pg, _ := DialectFor("postgres")
	if got := pg.InsertIgnore(ins, "a, b"); got != ins+" ON CONFLICT (a, b) DO NOTHING" {
		t.Errorf("postgres = %q", got)
	}
}

func TestClassifyDriverErrors(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		unique    bool
		retryable bool
	}{
		{"mysql duplicate", &mysql.MySQLError{Number: 1062}, true, false},
		{"mysql deadlock", &mysql.MySQLError{Number: 1213}, false, true},
		{"mysql lock wait", fmt.Errorf("exec: %w", &mysql.MySQLError{Number: 1205}), false, true},
		{"postgres unique", &pq.Error{Code: "23505"}, true, false},
		{"postgres serialization", &pq.Error{Code: "40001"}, false, true},
		{"postgres deadlock", &pq.Error{Code: "40P01"}, false, true},
		{"plain", errors.New("boom"), false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUniqueViolation(tt.err); got != tt.unique {
				t.Errorf("IsUniqueViolation = %v, want %v", got, tt.unique)
			}
			if got := IsRetryable(tt.err); got != tt.retryable {
				t.Errorf("IsRetryable = %v, want %v", got, tt.retryable)
			}
		})
	}
}

func TestSQLiteUniqueViolation(t *testing.T) {
	db := openTemp(t)
	if _, err := db.Exec(`INSERT INTO kv (k, v) VALUES ('a', '1')`); err != nil {
		t.Fatal(err)
	}
	_, err := db.Exec(`INSERT INTO kv (k, v) VALUES ('a', '2')`)
	if !IsUniqueViolation(err) {
		t.Fatalf("IsUniqueViolation(%v) = false", err)
	}
	if IsRetryable(err) {
		t.Error("unique violation reported as retryable")
	}
}

func TestWithTxCommitsAndRollsBack(t *testing.T) {
	db := openTemp(t)
	ctx := context.Background()

	err := db.WithTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.Exec(`INSERT INTO kv (k, v) VALUES ('kept', 'x')`)
		return err
	})
	if err != nil {
		t.Fatalf("WithTx commit: %v", err)
	}

	boom := errors.New("boom")
	err = db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.Exec(`INSERT INTO kv (k, v) VALUES ('dropped', 'x')`); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithTx error = %v, want boom", err)
	}

	func() {
		defer func() {
			if recover() == nil {
				t.Error("WithTx swallowed a panic")
			}
		}()
		_ = db.WithTx(ctx, func(tx *sqlx.Tx) error {
			_, _ = tx.Exec(`INSERT INTO kv (k, v) VALUES ('panicked', 'x')`)
			panic("kaboom")
		})
	}()

	var keys []string
	if err := db.Select(&keys, `SELECT k FROM kv ORDER BY k`); err != nil {
		t.Fatal(err)
	}
	if len(keys) != 1 || keys[0] != "kept" {
		t.Errorf("rows after WithTx = %v, want [kept]", keys)
	}
}

func TestInsertReturningID(t *testing.T) {
	db := openTemp(t)
	if _, err := db.Exec(`CREATE TABLE seq (id INTEGER PRIMARY KEY AUTOINCREMENT, v TEXT)`); err != nil {
		t.Fatal(err)
	}
	var ids []uint64
	for i := 0; i < 2; i++ {
		err := db.WithTx(context.Background(), func(tx *sqlx.Tx) error {
			id, err := db.Dialect.InsertReturningID(context.Background(), tx, `INSERT INTO seq (v) VALUES (?)`, "x")
			ids = append(ids, id)
			return err
		})
		if err != nil {
			t.Fatalf("InsertReturningID: %v", err)
		}
	}
	if ids[0] == 0 || ids[1] != ids[0]+1 {
		t.Errorf("ids = %v", ids)
	}
}

func TestOpenRequiresSQLitePath(t *testing.T) {
	if _, err := Open(Options{Driver: "sqlite"}); err == nil {
		t.Error("Open accepted sqlite without a path")
	}
}
