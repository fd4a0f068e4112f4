package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Reservation records a user's confirmed claim over a contiguous run of
// hourly units.  Rows are written once by the booking transaction and
// never updated.
//
// Fields:
//  ID              – primary key identifier.
//  UserID          – user who made the reservation.
//  ReservationDate – date the booking starts on (YYYY-MM-DD).
//  StartTime       – first unit start (HH:MM).
//  EndTime         – exclusive end (HH:MM); earlier than StartTime when
//                    the booking runs past midnight.
//  Amount          – price charged, always positive.
//  CreatedAt       – creation timestamp (UTC).
type Reservation struct {
	ID              uint64          `db:"id" json:"id"`
	UserID          uint64          `db:"user_id" json:"user_id"`
	ReservationDate string          `db:"reservation_date" json:"reservation_date"`
	StartTime       string          `db:"start_time" json:"start_time"`
	EndTime         string          `db:"end_time" json:"end_time"`
	Amount          decimal.Decimal `db:"amount" json:"amount"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}
