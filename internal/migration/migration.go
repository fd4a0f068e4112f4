// Package migration applies the embedded schema files for the configured
// dialect and records the applied version in schema_version.
package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/turf-reservation/internal/database"
	"github.com/iliyamo/turf-reservation/migrations"
)

// Migration is a single NNN_name.sql file.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// Runner applies migrations from an fs.FS to a database.
type Runner struct {
	db *sqlx.DB
	fs fs.FS
}

// NewRunner returns a Runner over an explicit migrations filesystem.
func NewRunner(db *sqlx.DB, migrationFS fs.FS) *Runner {
	return &Runner{db: db, fs: migrationFS}
}

// ForDialect returns a Runner over the embedded files for db's dialect.
func ForDialect(db *database.DB) (*Runner, error) {
	sub, err := fs.Sub(migrations.FS, db.Dialect.Name)
	if err != nil {
		return nil, fmt.Errorf("access %s migrations: %w", db.Dialect.Name, err)
	}
	return NewRunner(db.DB, sub), nil
}

func (r *Runner) ensureVersionTable(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)`)
	return err
}

// CurrentVersion returns the applied schema version, 0 for a fresh database.
func (r *Runner) CurrentVersion(ctx context.Context) (int, error) {
	if err := r.ensureVersionTable(ctx); err != nil {
		return 0, fmt.Errorf("ensure schema_version table: %w", err)
	}
	var version int
	err := r.db.QueryRowxContext(ctx, "SELECT version FROM schema_version").Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}

// Files reads and sorts the migration files.
func (r *Runner) Files() ([]Migration, error) {
	entries, err := fs.ReadDir(r.fs, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations directory: %w", err)
	}
	var out []Migration
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		parts := strings.SplitN(e.Name(), "_", 2)
		if len(parts) < 2 {
			return nil, fmt.Errorf("invalid migration filename %s (expected NNN_name.sql)", e.Name())
		}
		version, err := strconv.Atoi(parts[0])
		if err != nil || version < 1 {
			return nil, fmt.Errorf("invalid version in migration filename %s", e.Name())
		}
		content, err := fs.ReadFile(r.fs, e.Name())
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", e.Name(), err)
		}
		out = append(out, Migration{Version: version, Name: strings.TrimSuffix(parts[1], ".sql"), SQL: string(content)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	for i := 1; i < len(out); i++ {
		if out[i].Version == out[i-1].Version {
			return nil, fmt.Errorf("duplicate migration version %d", out[i].Version)
		}
	}
	return out, nil
}

// Apply runs every pending migration and returns how many were applied.
// logFn receives progress lines and may be nil.
func (r *Runner) Apply(ctx context.Context, logFn func(msg string, keyvals ...interface{})) (int, error) {
	if logFn == nil {
		logFn = func(string, ...interface{}) {}
	}
	current, err := r.CurrentVersion(ctx)
	if err != nil {
		return 0, err
	}
	files, err := r.Files()
	if err != nil {
		return 0, err
	}
	if len(files) == 0 {
		return 0, nil
	}
	latest := files[len(files)-1].Version
	if current > latest {
		return 0, fmt.Errorf("database schema version %d is newer than supported version %d", current, latest)
	}

	applied := 0
	for _, m := range files {
		if m.Version <= current {
			continue
		}
		logFn("applying migration", "version", m.Version, "name", m.Name)
		if err := r.applyOne(ctx, m); err != nil {
			return applied, err
		}
		applied++
	}
	if applied == 0 {
		logFn("schema up to date", "version", current)
	}
	return applied, nil
}

func (r *Runner) applyOne(ctx context.Context, m Migration) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %d: %w", m.Version, err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range Statements(m.SQL) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Name, err)
		}
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM schema_version"); err != nil {
		return fmt.Errorf("clear schema version: %w", err)
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind("INSERT INTO schema_version (version) VALUES (?)"), m.Version); err != nil {
		return fmt.Errorf("set schema version %d: %w", m.Version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %d: %w", m.Version, err)
	}
	return nil
}

// Statements splits a migration file into individual statements.  The
// MySQL driver runs one statement per Exec unless multiStatements is
// enabled, so files are split on semicolons that end a line.
func Statements(script string) []string {
	var (
		out []string
		cur strings.Builder
	)
	for _, line := range strings.Split(script, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		cur.WriteString(line)
		cur.WriteByte('\n')
		if strings.HasSuffix(trimmed, ";") {
			stmt := strings.TrimSuffix(strings.TrimSpace(cur.String()), ";")
			out = append(out, stmt)
			cur.Reset()
		}
	}
	if rest := strings.TrimSpace(cur.String()); rest != "" {
		out = append(out, rest)
	}
	return out
}
