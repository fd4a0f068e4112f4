package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/turf-reservation/internal/database"
	"github.com/iliyamo/turf-reservation/internal/model"
)

// ReservationRepo writes reservations.  Rows are immutable once created;
// there is deliberately no update or delete path.
type ReservationRepo struct {
	db *database.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *database.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// CreateTx inserts a new reservation within the scope of an existing
// transaction and populates the generated ID on res.  CreatedAt must be
// set by the caller.  The caller must commit or rollback the transaction.
func (r *ReservationRepo) CreateTx(ctx context.Context, tx *sqlx.Tx, res *model.Reservation) error {
	const q = `INSERT INTO reservations (user_id, reservation_date, start_time, end_time, amount, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	id, err := r.db.Dialect.InsertReturningID(ctx, tx, q,
		res.UserID, res.ReservationDate, res.StartTime, res.EndTime, res.Amount, res.CreatedAt)
	if err != nil {
		return classify(err)
	}
	res.ID = id
	return nil
}

// GetByID loads a single reservation.
func (r *ReservationRepo) GetByID(ctx context.Context, id uint64) (*model.Reservation, error) {
	var res model.Reservation
	err := r.db.GetContext(ctx, &res, r.db.Rebind(
		`SELECT id, user_id, reservation_date, start_time, end_time, amount, created_at FROM reservations WHERE id = ?`), id)
	if err != nil {
		return nil, notFound(err)
	}
	return &res, nil
}

// Count returns the number of reservation rows.  Mostly useful to tests
// asserting that a failed booking left nothing behind.
func (r *ReservationRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM reservations`); err != nil {
		return 0, err
	}
	return n, nil
}
