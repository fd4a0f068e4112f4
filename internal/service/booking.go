package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/turf-reservation/internal/database"
	"github.com/iliyamo/turf-reservation/internal/lattice"
	"github.com/iliyamo/turf-reservation/internal/logger"
	"github.com/iliyamo/turf-reservation/internal/metrics"
	"github.com/iliyamo/turf-reservation/internal/model"
	"github.com/iliyamo/turf-reservation/internal/queue"
	"github.com/iliyamo/turf-reservation/internal/repository"
)

// MaxAmount is the largest value the DECIMAL(12,2) amount column holds.
var MaxAmount = decimal.New(999999999999, -2)

// BookRequest is one booking attempt.  Start and End are times of day on
// Date; an End earlier than Start runs past midnight.
type BookRequest struct {
	UserID uint64
	Date   time.Time
	Start  lattice.TimeOfDay
	End    lattice.TimeOfDay
	Amount decimal.Decimal
}

// Booking is a committed reservation with the units it claimed.
type Booking struct {
	Reservation model.Reservation
	Units       []lattice.Unit
}

// BookingOptions tunes a BookingManager.  Zero values pick defaults.
type BookingOptions struct {
	MaxAttempts int           // transaction attempts on storage conflicts, default 3
	Backoff     time.Duration // base delay between attempts, default 25ms
	Notifier    Notifier      // receives booking.confirmed events
	Invalidator Invalidator   // told after every committed booking
	Now         func() time.Time
}

// BookingManager runs the booking unit of work: check the user, detect
// conflicts, insert the reservation, claim every unit and refresh the
// user's last booking date, all in one transaction.
type BookingManager struct {
	db           TxRunner
	slots        SlotStore
	reservations ReservationStore
	users        UserStore
	detector     *ConflictDetector
	opts         BookingOptions
}

func NewBookingManager(db TxRunner, slots SlotStore, reservations ReservationStore, users UserStore, opts BookingOptions) *BookingManager {
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
	return &BookingManager{
		db:           db,
		slots:        slots,
		reservations: reservations,
		users:        users,
		detector:     NewConflictDetector(slots),
		opts:         opts,
	}
}

// Book reserves [Start, End) on Date for the user.  It either commits the
// reservation together with every unit it covers or leaves no trace.
//
// Errors: ErrInvalidRequest, ErrInvalidRange, ErrUserNotFound,
// ErrSlotUnavailable (as *SlotUnavailableError naming the first blocked
// unit), ErrStorageConflict when concurrent writers kept winning after all
// attempts, ErrStorageUnavailable for anything else.
func (m *BookingManager) Book(ctx context.Context, req BookRequest) (*Booking, error) {
	start := time.Now()
	b, err := m.book(ctx, req)
	metrics.BookingDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RecordBooking(AsError(err).Code)
		return nil, err
	}
	metrics.RecordBooking("confirmed")
	metrics.UnitsReserved.Add(float64(len(b.Units)))
	logger.Info("booking confirmed",
		"reservation_id", b.Reservation.ID,
		"user_id", b.Reservation.UserID,
		"date", b.Reservation.ReservationDate,
		"start", b.Reservation.StartTime,
		"end", b.Reservation.EndTime,
		"units", len(b.Units))
	m.afterCommit(ctx, b)
	return b, nil
}

func (m *BookingManager) book(ctx context.Context, req BookRequest) (*Booking, error) {
	if req.UserID == 0 {
		return nil, wrap(ErrInvalidRequest, "user_id must be positive", nil)
	}
	if !req.Amount.IsPositive() {
		return nil, wrap(ErrInvalidRequest, "amount must be greater than zero", nil)
	}
	if !req.Amount.Equal(req.Amount.Round(2)) {
		return nil, wrap(ErrInvalidRequest, "amount must have at most two decimal places", nil)
	}
	if req.Amount.GreaterThan(MaxAmount) {
		return nil, wrap(ErrInvalidRequest, "amount must not exceed "+MaxAmount.StringFixed(2), nil)
	}
	units, err := lattice.Expand(req.Date, req.Start, req.End)
	if err != nil {
		return nil, wrap(ErrInvalidRange, err.Error(), err)
	}

	for attempt := 1; ; attempt++ {
		b, err := m.attempt(ctx, req, units)
		if err == nil {
			return b, nil
		}
		if !isStorageConflict(err) {
			return nil, m.classify(err)
		}
		if attempt >= m.opts.MaxAttempts {
			logger.Warn("booking conflict persisted", "attempts", attempt, "err", err)
			return nil, wrap(ErrStorageConflict, "", err)
		}
		metrics.BookingRetries.Inc()
		logger.Debug("booking conflict, retrying", "attempt", attempt, "err", err)
		if !sleep(ctx, time.Duration(attempt)*m.opts.Backoff) {
			return nil, wrap(ErrStorageUnavailable, "", ctx.Err())
		}
	}
}

func (m *BookingManager) attempt(ctx context.Context, req BookRequest, units []lattice.Unit) (*Booking, error) {
	res := model.Reservation{
		UserID:          req.UserID,
		ReservationDate: lattice.FormatDate(units[0].Date),
		StartTime:       req.Start.String(),
		EndTime:         req.End.String(),
		Amount:          req.Amount,
		CreatedAt:       m.opts.Now().UTC(),
	}
	err := m.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		ok, err := m.users.ExistsTx(ctx, tx, req.UserID)
		if err != nil {
			return err
		}
		if !ok {
			return wrap(ErrUserNotFound, fmt.Sprintf("user %d not found", req.UserID), nil)
		}

		conflict, err := m.detector.FirstConflictTx(ctx, tx, units)
		if err != nil {
			return err
		}
		if conflict != nil {
			return conflict
		}

		if err := m.reservations.CreateTx(ctx, tx, &res); err != nil {
			return err
		}

		owner := res.ID
		writes := make([]repository.SlotWrite, len(units))
		for i, u := range units {
			writes[i] = repository.SlotWrite{Unit: u, Status: model.SlotUnavailable, ReservationID: &owner}
		}
		if err := m.slots.SetManyTx(ctx, tx, writes); err != nil {
			return err
		}

		return m.users.TouchLastBookingTx(ctx, tx, req.UserID, units[0].Date)
	})
	if err != nil {
		return nil, err
	}
	return &Booking{Reservation: res, Units: units}, nil
}

// isStorageConflict reports a lost race: a unique-key hit on a unit, a
// deadlock or serialization failure, or a busy SQLite file.  Commit errors
// arrive unclassified, hence the driver checks.
func isStorageConflict(err error) bool {
	return errors.Is(err, repository.ErrConflict) || database.IsRetryable(err) || database.IsUniqueViolation(err)
}

// classify keeps engine errors and hides everything else behind
// ErrStorageUnavailable.
func (m *BookingManager) classify(err error) error {
	var se *SlotUnavailableError
	if errors.As(err, &se) {
		return se
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	logger.Error("booking failed", "err", err)
	return wrap(ErrStorageUnavailable, "", err)
}

func (m *BookingManager) afterCommit(ctx context.Context, b *Booking) {
	// the booking is committed; a slow or cancelled caller must not stop
	// the cache flush or the event
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if m.opts.Invalidator != nil {
		m.opts.Invalidator.Invalidate(pctx)
	}
	keys := make([]string, len(b.Units))
	for i, u := range b.Units {
		keys[i] = u.Key()
	}
	ev := queue.BookingConfirmedEvent{
		EventID:       uuid.NewString(),
		ReservationID: b.Reservation.ID,
		UserID:        b.Reservation.UserID,
		Date:          b.Reservation.ReservationDate,
		StartTime:     b.Reservation.StartTime,
		EndTime:       b.Reservation.EndTime,
		Units:         keys,
		Amount:        b.Reservation.Amount.StringFixed(2),
		ConfirmedAt:   b.Reservation.CreatedAt.Format(time.RFC3339),
	}
	if err := m.opts.Notifier.BookingConfirmed(pctx, ev); err != nil {
		logger.Warn("publish booking.confirmed failed", "reservation_id", b.Reservation.ID, "err", err)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
