package repository

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/turf-reservation/internal/database"
	"github.com/iliyamo/turf-reservation/internal/model"
	"github.com/iliyamo/turf-reservation/internal/utils"
)

// AdminRepo stores back-office accounts.
type AdminRepo struct{ db *database.DB }

func NewAdminRepo(db *database.DB) *AdminRepo { return &AdminRepo{db: db} }

// NormalizeUsername lowercases and trims a username.
func NormalizeUsername(username string) string { return strings.ToLower(strings.TrimSpace(username)) }

// Create hashes password and inserts the admin, returning its ID.
func (r *AdminRepo) Create(ctx context.Context, username, password string, cost int) (uint64, error) {
	username = NormalizeUsername(username)
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	now := time.Now().UTC()
	var id uint64
	err = r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		id, err = r.db.Dialect.InsertReturningID(ctx, tx,
			`INSERT INTO admins (username, password_hash, created_at, updated_at) VALUES (?, ?, ?, ?)`,
			username, hash, now, now)
		return err
	})
	if err != nil {
		if database.IsUniqueViolation(err) {
			return 0, ErrUsernameExists
		}
		return 0, classify(err)
	}
	return id, nil
}

// GetByUsername fetches an admin by normalized username.
func (r *AdminRepo) GetByUsername(ctx context.Context, username string) (*model.Admin, error) {
	var a model.Admin
	err := r.db.GetContext(ctx, &a, r.db.Rebind(
		`SELECT id, username, password_hash, created_at, updated_at FROM admins WHERE username = ?`),
		NormalizeUsername(username))
	if err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

// Count returns how many admins exist.  Zero means the first registration
// is open.
func (r *AdminRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM admins`); err != nil {
		return 0, classify(err)
	}
	return n, nil
}

// UpdatePassword replaces the stored hash for id.
func (r *AdminRepo) UpdatePassword(ctx context.Context, id uint64, password string, cost int) error {
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, r.db.Rebind(
		`UPDATE admins SET password_hash = ?, updated_at = ? WHERE id = ?`), hash, time.Now().UTC(), id)
	if err != nil {
		return classify(err)
	}
	// updated_at always changes, so zero rows means the admin is gone
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
