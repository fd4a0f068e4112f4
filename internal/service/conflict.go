package service

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/turf-reservation/internal/lattice"
)

// ConflictDetector decides whether a set of units is free.  A unit with no
// row is available; any row, reservation-held or maintenance, blocks it.
type ConflictDetector struct {
	slots SlotStore
}

func NewConflictDetector(slots SlotStore) *ConflictDetector {
	return &ConflictDetector{slots: slots}
}

// FirstConflictTx returns the first unit, in the order given, that is not
// available, or nil when every unit is free.  It reads through tx so the
// answer holds for the rest of the transaction.
func (d *ConflictDetector) FirstConflictTx(ctx context.Context, tx *sqlx.Tx, units []lattice.Unit) (*SlotUnavailableError, error) {
	rows, err := d.slots.StatusesTx(ctx, tx, units)
	if err != nil {
		return nil, err
	}
	for _, u := range units {
		if row, taken := rows[u.Key()]; taken {
			return &SlotUnavailableError{Date: u.DateString(), Time: u.Start.String(), Status: string(row.Status)}, nil
		}
	}
	return nil, nil
}
