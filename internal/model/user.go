package model

import "time"

// User is a turf customer.  PhoneNumber is the natural key; the
// LastBookingDate column is a denormalized convenience value refreshed by
// every successful booking and may be recomputed from reservations.
type User struct {
	ID              uint64    `db:"id" json:"id"`
	Name            *string   `db:"name" json:"name,omitempty"`
	PhoneNumber     string    `db:"phone_number" json:"phone_number"`
	LastBookingDate *string   `db:"last_booking_date" json:"last_booking_date,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// Admin is a back-office account allowed to manage maintenance holds and
// read reports.  Only the bcrypt hash of the password is stored.
type Admin struct {
	ID           uint64    `db:"id"`
	Username     string    `db:"username"`
	PasswordHash string    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}
