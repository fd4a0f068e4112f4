// Package repository defines error types that are reused across multiple
// repositories.  These sentinel values allow the service layer to
// distinguish a legitimate "someone got there first" outcome from an
// infrastructure fault without inspecting driver-specific error codes.
package repository

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a lookup by key matches no row.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write loses against a concurrent writer
// (deadlock, serialization failure, busy database).  Retrying the whole
// unit of work is safe.
var ErrConflict = errors.New("conflict")

// ErrPhoneExists is returned when registering a phone number that already
// belongs to a user.
var ErrPhoneExists = errors.New("phone number already exists")

// ErrUsernameExists is returned when an admin username is taken.
var ErrUsernameExists = errors.New("username already exists")

// UnitTakenError reports that inserting a slot row hit the
// (slot_date, slot_time) unique key: another transaction claimed the unit
// between our read and our write.  It matches ErrConflict.
type UnitTakenError struct {
	Date string
	Time string
	Err  error
}

func (e *UnitTakenError) Error() string {
	return fmt.Sprintf("slot %s %s already taken", e.Date, e.Time)
}

func (e *UnitTakenError) Unwrap() error { return e.Err }

func (e *UnitTakenError) Is(target error) bool { return target == ErrConflict }
