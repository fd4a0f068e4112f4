// Package testfixtures provides shared helpers for integration-style tests
// that run the real repositories against a migrated SQLite file.
package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/iliyamo/turf-reservation/internal/database"
	"github.com/iliyamo/turf-reservation/internal/migration"
	"github.com/iliyamo/turf-reservation/internal/repository"
)

// SQLiteHarness bundles a temporary database with every repository.
type SQLiteHarness struct {
	DB           *database.DB
	Slots        *repository.SlotRepo
	Reservations *repository.ReservationRepo
	Users        *repository.UserRepo
	Admins       *repository.AdminRepo
	Reports      *repository.ReportRepo
}

// NewSQLiteHarness opens a fresh database file under tb.TempDir, applies
// the embedded migrations and registers cleanup with tb.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "turf.db")
	db, err := database.Open(database.Options{Driver: database.SQLite, Path: path})
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}
	tb.Cleanup(func() { _ = db.Close() })

	runner, err := migration.ForDialect(db)
	if err != nil {
		tb.Fatalf("failed to load migrations: %v", err)
	}
	if _, err := runner.Apply(context.Background(), nil); err != nil {
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	return &SQLiteHarness{
		DB:           db,
		Slots:        repository.NewSlotRepo(db),
		Reservations: repository.NewReservationRepo(db),
		Users:        repository.NewUserRepo(db),
		Admins:       repository.NewAdminRepo(db),
		Reports:      repository.NewReportRepo(db),
	}
}

// SeedUser registers a user and returns its id.
func (h *SQLiteHarness) SeedUser(tb testing.TB, name, phone string) uint64 {
	tb.Helper()
	id, err := h.Users.Create(context.Background(), name, phone)
	if err != nil {
		tb.Fatalf("seed user %s: %v", phone, err)
	}
	return id
}

// CountRows returns SELECT COUNT(*) for table.
func (h *SQLiteHarness) CountRows(tb testing.TB, table string) int {
	tb.Helper()
	var n int
	if err := h.DB.Get(&n, "SELECT COUNT(*) FROM "+table); err != nil {
		tb.Fatalf("count %s: %v", table, err)
	}
	return n
}
