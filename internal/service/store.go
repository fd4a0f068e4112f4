// Package service implements the booking engine: conflict detection, the
// atomic booking transaction and maintenance overrides.  It depends on
// narrow store interfaces so storage can be swapped or instrumented in
// tests; the repository package provides the SQL implementations.
package service

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/turf-reservation/internal/lattice"
	"github.com/iliyamo/turf-reservation/internal/model"
	"github.com/iliyamo/turf-reservation/internal/repository"
)

// TxRunner runs fn in one transaction, committing on nil and rolling back
// otherwise.  *database.DB implements it.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error
}

// SlotStore is the unit status store.
type SlotStore interface {
	StatusesTx(ctx context.Context, tx *sqlx.Tx, units []lattice.Unit) (map[string]model.SlotUnit, error)
	SetManyTx(ctx context.Context, tx *sqlx.Tx, writes []repository.SlotWrite) error
	MarkMaintenanceTx(ctx context.Context, tx *sqlx.Tx, u lattice.Unit) (bool, error)
	ClearMaintenanceTx(ctx context.Context, tx *sqlx.Tx, u lattice.Unit) (bool, error)
}

// ReservationStore creates reservation rows.
type ReservationStore interface {
	CreateTx(ctx context.Context, tx *sqlx.Tx, res *model.Reservation) error
}

// UserStore is the part of the user collaborator the engine needs.
type UserStore interface {
	ExistsTx(ctx context.Context, tx *sqlx.Tx, id uint64) (bool, error)
	TouchLastBookingTx(ctx context.Context, tx *sqlx.Tx, id uint64, date time.Time) error
}

// Invalidator is told when committed writes make cached reports stale.
type Invalidator interface {
	Invalidate(ctx context.Context)
}
