package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/turf-reservation/internal/database"
	"github.com/iliyamo/turf-reservation/internal/lattice"
	"github.com/iliyamo/turf-reservation/internal/model"
)

// ReportRepo serves the read-only admin reports.  Every query is plain
// SQL that MySQL, PostgreSQL and SQLite all accept; dates are compared as
// YYYY-MM-DD strings.
type ReportRepo struct{ db *database.DB }

func NewReportRepo(db *database.DB) *ReportRepo { return &ReportRepo{db: db} }

// BookingRow is a reservation joined with its user.
type BookingRow struct {
	ReservationID uint64          `db:"reservation_id" json:"reservation_id"`
	UserID        uint64          `db:"user_id" json:"user_id"`
	Name          *string         `db:"name" json:"name"`
	PhoneNumber   string          `db:"phone_number" json:"phone_number"`
	Date          string          `db:"reservation_date" json:"date"`
	StartTime     string          `db:"start_time" json:"start_time"`
	EndTime       string          `db:"end_time" json:"end_time"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

const bookingRowSelect = `SELECT r.id AS reservation_id, r.user_id, u.name, u.phone_number,
       r.reservation_date, r.start_time, r.end_time, r.amount, r.created_at
FROM reservations r
JOIN users u ON u.id = r.user_id`

// BookingsOn lists the reservations starting on date, in start order.
func (r *ReportRepo) BookingsOn(ctx context.Context, date time.Time) ([]BookingRow, error) {
	rows := []BookingRow{}
	err := r.db.SelectContext(ctx, &rows, r.db.Rebind(bookingRowSelect+`
WHERE r.reservation_date = ?
ORDER BY r.start_time, r.id`), lattice.FormatDate(date))
	if err != nil {
		return nil, classify(err)
	}
	return rows, nil
}

// MonthCount is the number of reservations in a YYYY-MM month.
type MonthCount struct {
	Month string `db:"month" json:"month"`
	Count int    `db:"count" json:"count"`
}

// Dashboard summarises reservations relative to today.
type Dashboard struct {
	Today      string       `json:"today"`
	TodayCount int          `json:"today_count"`
	Upcoming   int          `json:"upcoming_count"`
	Past       int          `json:"past_count"`
	Users      int          `json:"users"`
	ByMonth    []MonthCount `json:"by_month"`
}

// Dashboard counts today's, upcoming and past reservations and groups all
// reservations by month.
func (r *ReportRepo) Dashboard(ctx context.Context, today time.Time) (*Dashboard, error) {
	day := lattice.FormatDate(today)
	d := Dashboard{Today: day, ByMonth: []MonthCount{}}
	err := r.db.QueryRowxContext(ctx, r.db.Rebind(`SELECT
    COALESCE(SUM(CASE WHEN reservation_date = ? THEN 1 ELSE 0 END), 0),
    COALESCE(SUM(CASE WHEN reservation_date > ? THEN 1 ELSE 0 END), 0),
    COALESCE(SUM(CASE WHEN reservation_date < ? THEN 1 ELSE 0 END), 0)
FROM reservations`), day, day, day).Scan(&d.TodayCount, &d.Upcoming, &d.Past)
	if err != nil {
		return nil, classify(err)
	}
	if err := r.db.GetContext(ctx, &d.Users, `SELECT COUNT(*) FROM users`); err != nil {
		return nil, classify(err)
	}
	err = r.db.SelectContext(ctx, &d.ByMonth, `SELECT SUBSTR(reservation_date, 1, 7) AS month, COUNT(*) AS count
FROM reservations
GROUP BY SUBSTR(reservation_date, 1, 7)
ORDER BY month`)
	if err != nil {
		return nil, classify(err)
	}
	return &d, nil
}

// UserSummary is one line of the admin user list.
type UserSummary struct {
	ID              uint64  `db:"id" json:"id"`
	Name            *string `db:"name" json:"name"`
	PhoneNumber     string  `db:"phone_number" json:"phone_number"`
	LastBookingDate *string `db:"last_booking_date" json:"last_booking_date"`
	LastPast        *string `db:"last_past" json:"last_past_booking"`
	NextUpcoming    *string `db:"next_upcoming" json:"next_upcoming_booking"`
	TotalBookings   int     `db:"total_bookings" json:"total_bookings"`
}

// Users lists every user with their most recent past and next upcoming
// booking dates relative to today.
func (r *ReportRepo) Users(ctx context.Context, today time.Time) ([]UserSummary, error) {
	day := lattice.FormatDate(today)
	rows := []UserSummary{}
	err := r.db.SelectContext(ctx, &rows, r.db.Rebind(`SELECT u.id, u.name, u.phone_number, u.last_booking_date,
    (SELECT MAX(r.reservation_date) FROM reservations r WHERE r.user_id = u.id AND r.reservation_date < ?) AS last_past,
    (SELECT MIN(r.reservation_date) FROM reservations r WHERE r.user_id = u.id AND r.reservation_date >= ?) AS next_upcoming,
    (SELECT COUNT(*) FROM reservations r WHERE r.user_id = u.id) AS total_bookings
FROM users u
ORDER BY u.id`), day, day)
	if err != nil {
		return nil, classify(err)
	}
	return rows, nil
}

// UserDetail is the admin view of one user.
type UserDetail struct {
	User          model.User   `json:"user"`
	TotalBookings int          `json:"total_bookings"`
	TotalHours    int          `json:"total_hours"`
	Upcoming      []BookingRow `json:"upcoming"`
	Past          []BookingRow `json:"past"`
}

// UserDetail loads a user by phone with booking totals and their upcoming
// and past bookings.  Hours are counted from claimed units, so a booking
// across midnight counts every hour it holds.
func (r *ReportRepo) UserDetail(ctx context.Context, phone string, today time.Time) (*UserDetail, error) {
	var u model.User
	err := r.db.GetContext(ctx, &u, r.db.Rebind(`SELECT `+userColumns+` FROM users WHERE phone_number = ?`), NormalizePhone(phone))
	if err != nil {
		return nil, notFound(err)
	}
	day := lattice.FormatDate(today)
	d := UserDetail{User: u, Upcoming: []BookingRow{}, Past: []BookingRow{}}

	if err := r.db.GetContext(ctx, &d.TotalBookings, r.db.Rebind(
		`SELECT COUNT(*) FROM reservations WHERE user_id = ?`), u.ID); err != nil {
		return nil, classify(err)
	}
	if err := r.db.GetContext(ctx, &d.TotalHours, r.db.Rebind(`SELECT COUNT(*)
FROM slot_units s
JOIN reservations r ON r.id = s.reservation_id
WHERE r.user_id = ?`), u.ID); err != nil {
		return nil, classify(err)
	}
	if err := r.db.SelectContext(ctx, &d.Upcoming, r.db.Rebind(bookingRowSelect+`
WHERE r.user_id = ? AND r.reservation_date >= ?
ORDER BY r.reservation_date, r.start_time`), u.ID, day); err != nil {
		return nil, classify(err)
	}
	if err := r.db.SelectContext(ctx, &d.Past, r.db.Rebind(bookingRowSelect+`
WHERE r.user_id = ? AND r.reservation_date < ?
ORDER BY r.reservation_date DESC, r.start_time DESC`), u.ID, day); err != nil {
		return nil, classify(err)
	}
	return &d, nil
}
