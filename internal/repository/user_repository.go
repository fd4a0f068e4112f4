package repository

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/turf-reservation/internal/database"
	"github.com/iliyamo/turf-reservation/internal/lattice"
	"github.com/iliyamo/turf-reservation/internal/model"
)

type UserRepo struct{ db *database.DB }

func NewUserRepo(db *database.DB) *UserRepo { return &UserRepo{db: db} }

const userColumns = `id, name, phone_number, last_booking_date, created_at`

// NormalizePhone trims surrounding whitespace from a phone number.
func NormalizePhone(phone string) string { return strings.TrimSpace(phone) }

// Create inserts a user and returns its ID.  An empty name is stored as NULL.
func (r *UserRepo) Create(ctx context.Context, name, phone string) (uint64, error) {
	phone = NormalizePhone(phone)
	var n *string
	if trimmed := strings.TrimSpace(name); trimmed != "" {
		n = &trimmed
	}
	var id uint64
	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		id, err = r.db.Dialect.InsertReturningID(ctx, tx,
			`INSERT INTO users (name, phone_number, created_at) VALUES (?, ?, ?)`,
			n, phone, time.Now().UTC())
		return err
	})
	if err != nil {
		if database.IsUniqueViolation(err) {
			return 0, ErrPhoneExists
		}
		return 0, classify(err)
	}
	return id, nil
}

// GetByPhone fetches a user by phone number.
func (r *UserRepo) GetByPhone(ctx context.Context, phone string) (*model.User, error) {
	var u model.User
	err := r.db.GetContext(ctx, &u, r.db.Rebind(
		`SELECT `+userColumns+` FROM users WHERE phone_number = ?`), NormalizePhone(phone))
	if err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	var u model.User
	err := r.db.GetContext(ctx, &u, r.db.Rebind(`SELECT `+userColumns+` FROM users WHERE id = ?`), id)
	if err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// Rename updates the display name of the user owning phone.
// MySQL reports zero affected rows when the name is unchanged, so existence
// is checked by reading the row rather than from RowsAffected.
func (r *UserRepo) Rename(ctx context.Context, phone, name string) error {
	phone = NormalizePhone(phone)
	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		var n int
		if err := tx.GetContext(ctx, &n, tx.Rebind(`SELECT COUNT(*) FROM users WHERE phone_number = ?`), phone); err != nil {
			return classify(err)
		}
		if n == 0 {
			return ErrNotFound
		}
		_, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE users SET name = ? WHERE phone_number = ?`),
			strings.TrimSpace(name), phone)
		return classify(err)
	})
}

// ExistsTx reports whether a user with id exists, reading through tx so
// the check shares the booking transaction's snapshot.
func (r *UserRepo) ExistsTx(ctx context.Context, tx *sqlx.Tx, id uint64) (bool, error) {
	var n int
	if err := tx.GetContext(ctx, &n, tx.Rebind(`SELECT COUNT(*) FROM users WHERE id = ?`), id); err != nil {
		return false, classify(err)
	}
	return n > 0, nil
}

// TouchLastBookingTx overwrites last_booking_date.  The column is a
// convenience cache; the most recent write wins.
func (r *UserRepo) TouchLastBookingTx(ctx context.Context, tx *sqlx.Tx, id uint64, date time.Time) error {
	_, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE users SET last_booking_date = ? WHERE id = ?`),
		lattice.FormatDate(date), id)
	return classify(err)
}
