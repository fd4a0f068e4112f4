package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/turf-reservation/internal/lattice"
	"github.com/iliyamo/turf-reservation/internal/logger"
	"github.com/iliyamo/turf-reservation/internal/metrics"
	"github.com/iliyamo/turf-reservation/internal/model"
	"github.com/iliyamo/turf-reservation/internal/queue"
)

// MaintenanceResult reports what a mark or clear did, per unit start time
// (HH:MM) on Date.
type MaintenanceResult struct {
	Date               string   `json:"date"`
	Marked             []string `json:"marked"`
	AlreadyMaintenance []string `json:"already_maintenance"`
	HeldByReservation  []string `json:"held_by_reservation"`
	Cleared            []string `json:"cleared"`
	NotInMaintenance   []string `json:"not_in_maintenance"`
}

// MaintenanceOptions tunes a MaintenanceManager.  Zero values pick defaults.
type MaintenanceOptions struct {
	MaxAttempts int
	Backoff     time.Duration
	Notifier    Notifier
	Invalidator Invalidator
	Now         func() time.Time
}

// MaintenanceManager places and lifts administrative holds on units.
// Holds go through the same unique (date, time) key as bookings, so a
// hold and a booking racing for one unit serialize in the database and
// exactly one of them owns the row.  A unit held by a reservation is never
// touched.
type MaintenanceManager struct {
	db    TxRunner
	slots SlotStore
	opts  MaintenanceOptions
}

func NewMaintenanceManager(db TxRunner, slots SlotStore, opts MaintenanceOptions) *MaintenanceManager {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 3
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 25 * time.Millisecond
	}
	if opts.Notifier == nil {
		opts.Notifier = nopNotifier{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &MaintenanceManager{db: db, slots: slots, opts: opts}
}

// MarkMaintenance holds the listed units on date.  Repeating a call is a
// no-op: units already in maintenance are reported, not rewritten.
func (m *MaintenanceManager) MarkMaintenance(ctx context.Context, date time.Time, times []lattice.TimeOfDay) (*MaintenanceResult, error) {
	units, err := lattice.Units(date, times)
	if err != nil {
		return nil, wrap(ErrInvalidRange, err.Error(), err)
	}
	var res *MaintenanceResult
	err = m.retry(ctx, func() error {
		res = newMaintenanceResult(date)
		return m.db.WithTx(ctx, func(tx *sqlx.Tx) error {
			var existing []lattice.Unit
			for _, u := range units {
				created, err := m.slots.MarkMaintenanceTx(ctx, tx, u)
				if err != nil {
					return err
				}
				if created {
					res.Marked = append(res.Marked, u.Start.String())
				} else {
					existing = append(existing, u)
				}
			}
			if len(existing) == 0 {
				return nil
			}
			rows, err := m.slots.StatusesTx(ctx, tx, existing)
			if err != nil {
				return err
			}
			for _, u := range existing {
				if rows[u.Key()].Status == model.SlotUnavailable {
					res.HeldByReservation = append(res.HeldByReservation, u.Start.String())
				} else {
					res.AlreadyMaintenance = append(res.AlreadyMaintenance, u.Start.String())
				}
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordMaintenance("marked", len(res.Marked))
	metrics.RecordMaintenance("already_maintenance", len(res.AlreadyMaintenance))
	metrics.RecordMaintenance("held_by_reservation", len(res.HeldByReservation))
	logger.Info("maintenance marked", "date", res.Date, "marked", res.Marked,
		"already", res.AlreadyMaintenance, "held", res.HeldByReservation)
	if len(res.Marked) > 0 {
		m.afterCommit(ctx, queue.MaintenanceEvent{Date: res.Date, Marked: unitKeys(res.Date, res.Marked)})
	}
	return res, nil
}

// ClearMaintenance lifts holds on the listed units.  Units held by a
// reservation or already available are reported in NotInMaintenance.
func (m *MaintenanceManager) ClearMaintenance(ctx context.Context, date time.Time, times []lattice.TimeOfDay) (*MaintenanceResult, error) {
	units, err := lattice.Units(date, times)
	if err != nil {
		return nil, wrap(ErrInvalidRange, err.Error(), err)
	}
	var res *MaintenanceResult
	err = m.retry(ctx, func() error {
		res = newMaintenanceResult(date)
		return m.db.WithTx(ctx, func(tx *sqlx.Tx) error {
			for _, u := range units {
				removed, err := m.slots.ClearMaintenanceTx(ctx, tx, u)
				if err != nil {
					return err
				}
				if removed {
					res.Cleared = append(res.Cleared, u.Start.String())
				} else {
					res.NotInMaintenance = append(res.NotInMaintenance, u.Start.String())
				}
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordMaintenance("cleared", len(res.Cleared))
	logger.Info("maintenance cleared", "date", res.Date, "cleared", res.Cleared)
	if len(res.Cleared) > 0 {
		m.afterCommit(ctx, queue.MaintenanceEvent{Date: res.Date, Cleared: unitKeys(res.Date, res.Cleared)})
	}
	return res, nil
}

// retry runs fn until it succeeds, fails with something other than a
// storage conflict, or runs out of attempts.
func (m *MaintenanceManager) retry(ctx context.Context, fn func() error) error {
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if !isStorageConflict(err) {
			logger.Error("maintenance failed", "err", err)
			return wrap(ErrStorageUnavailable, "", err)
		}
		if attempt >= m.opts.MaxAttempts {
			return wrap(ErrStorageConflict, "concurrent update, retry the maintenance request", err)
		}
		if !sleep(ctx, time.Duration(attempt)*m.opts.Backoff) {
			return wrap(ErrStorageUnavailable, "", ctx.Err())
		}
	}
}

func (m *MaintenanceManager) afterCommit(ctx context.Context, ev queue.MaintenanceEvent) {
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if m.opts.Invalidator != nil {
		m.opts.Invalidator.Invalidate(pctx)
	}
	ev.EventID = uuid.NewString()
	ev.At = m.opts.Now().UTC().Format(time.RFC3339)
	if err := m.opts.Notifier.MaintenanceChanged(pctx, ev); err != nil {
		logger.Warn("publish slot.maintenance failed", "date", ev.Date, "err", err)
	}
}

func newMaintenanceResult(date time.Time) *MaintenanceResult {
	return &MaintenanceResult{
		Date:               lattice.FormatDate(date),
		Marked:             []string{},
		AlreadyMaintenance: []string{},
		HeldByReservation:  []string{},
		Cleared:            []string{},
		NotInMaintenance:   []string{},
	}
}

func unitKeys(date string, times []string) []string {
	out := make([]string, len(times))
	for i, t := range times {
		out[i] = date + " " + t
	}
	return out
}
