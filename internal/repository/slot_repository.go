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

// SlotRepo is the durable store of unit status keyed by
// (slot_date, slot_time).  Only units that are not available have a row.
// Every write happens inside a caller-supplied transaction so that the
// booking and maintenance flows decide their own atomic scope; the schema's
// unique key is what finally arbitrates concurrent claims.
type SlotRepo struct {
	db *database.DB
}

func NewSlotRepo(db *database.DB) *SlotRepo { return &SlotRepo{db: db} }

// SlotWrite is one row of a batch written by SetManyTx.
type SlotWrite struct {
	Unit          lattice.Unit
	Status        model.SlotStatus
	ReservationID *uint64
}

const slotColumns = `id, slot_date, slot_time, status, reservation_id, created_at`

// GetTx returns the row for a unit, or ErrNotFound when the unit is
// available.
func (r *SlotRepo) GetTx(ctx context.Context, tx *sqlx.Tx, u lattice.Unit) (*model.SlotUnit, error) {
	var s model.SlotUnit
	err := tx.GetContext(ctx, &s, tx.Rebind(
		`SELECT `+slotColumns+` FROM slot_units WHERE slot_date = ? AND slot_time = ?`),
		u.DateString(), u.Start.String())
	if err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

// StatusesTx loads the rows present for the given units, keyed by
// lattice.Unit.Key.  Units without a row are absent from the map.
func (r *SlotRepo) StatusesTx(ctx context.Context, tx *sqlx.Tx, units []lattice.Unit) (map[string]model.SlotUnit, error) {
	out := make(map[string]model.SlotUnit, len(units))
	if len(units) == 0 {
		return out, nil
	}
	// (slot_date = ? AND slot_time = ?) OR ... ; at most 24 terms for a day
	var sb strings.Builder
	args := make([]interface{}, 0, len(units)*2)
	sb.WriteString(`SELECT ` + slotColumns + ` FROM slot_units WHERE `)
	for i, u := range units {
		if i > 0 {
			sb.WriteString(" OR ")
		}
		sb.WriteString("(slot_date = ? AND slot_time = ?)")
		args = append(args, u.DateString(), u.Start.String())
	}
	if r.db.Dialect.Name != database.SQLite {
		// lock the rows we read so a concurrent writer waits on us
		sb.WriteString(" FOR UPDATE")
	}
	var rows []model.SlotUnit
	if err := tx.SelectContext(ctx, &rows, tx.Rebind(sb.String()), args...); err != nil {
		return nil, classify(err)
	}
	for _, s := range rows {
		out[s.Key()] = s
	}
	return out, nil
}

// SetManyTx inserts one row per write.  Rows are inserted, never updated:
// a unit that already has a row fails with *UnitTakenError naming it.
// On error the caller must roll back; earlier rows of the batch are only
// visible inside the transaction.
func (r *SlotRepo) SetManyTx(ctx context.Context, tx *sqlx.Tx, writes []SlotWrite) error {
	q := tx.Rebind(`INSERT INTO slot_units (slot_date, slot_time, status, reservation_id, created_at) VALUES (?, ?, ?, ?, ?)`)
	now := time.Now().UTC()
	for _, w := range writes {
		_, err := tx.ExecContext(ctx, q, w.Unit.DateString(), w.Unit.Start.String(), string(w.Status), w.ReservationID, now)
		if err != nil {
			if database.IsUniqueViolation(err) {
				return &UnitTakenError{Date: w.Unit.DateString(), Time: w.Unit.Start.String(), Err: err}
			}
			return classify(err)
		}
	}
	return nil
}

// MarkMaintenanceTx inserts a Maintenance row for u unless a row already
// exists, in which case nothing changes.  It reports whether a row was
// created.
func (r *SlotRepo) MarkMaintenanceTx(ctx context.Context, tx *sqlx.Tx, u lattice.Unit) (bool, error) {
	q := r.db.Dialect.InsertIgnore(
		`INSERT INTO slot_units (slot_date, slot_time, status, reservation_id, created_at) VALUES (?, ?, ?, NULL, ?)`,
		"slot_date, slot_time")
	res, err := tx.ExecContext(ctx, tx.Rebind(q), u.DateString(), u.Start.String(), string(model.SlotMaintenance), time.Now().UTC())
	if err != nil {
		return false, classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ClearMaintenanceTx removes the Maintenance row for u.  Rows held by a
// reservation are never deleted.  It reports whether a row was removed.
func (r *SlotRepo) ClearMaintenanceTx(ctx context.Context, tx *sqlx.Tx, u lattice.Unit) (bool, error) {
	res, err := tx.ExecContext(ctx, tx.Rebind(
		`DELETE FROM slot_units WHERE slot_date = ? AND slot_time = ? AND status = ?`),
		u.DateString(), u.Start.String(), string(model.SlotMaintenance))
	if err != nil {
		return false, classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListFrom returns every non-available unit dated on or after from,
// ordered by date and time.  Dates are stored as YYYY-MM-DD so the
// string comparison is chronological.
func (r *SlotRepo) ListFrom(ctx context.Context, from time.Time) ([]model.SlotUnit, error) {
	rows := []model.SlotUnit{}
	err := r.db.SelectContext(ctx, &rows, r.db.Rebind(
		`SELECT `+slotColumns+` FROM slot_units WHERE slot_date >= ? ORDER BY slot_date, slot_time`),
		lattice.FormatDate(from))
	if err != nil {
		return nil, classify(err)
	}
	return rows, nil
}

// ListByReservation returns the units owned by a reservation in order.
func (r *SlotRepo) ListByReservation(ctx context.Context, reservationID uint64) ([]model.SlotUnit, error) {
	rows := []model.SlotUnit{}
	err := r.db.SelectContext(ctx, &rows, r.db.Rebind(
		`SELECT `+slotColumns+` FROM slot_units WHERE reservation_id = ? ORDER BY slot_date, slot_time`),
		reservationID)
	if err != nil {
		return nil, classify(err)
	}
	return rows, nil
}
