package service

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is the typed failure returned by the engine.  Code is stable and
// machine-readable; Status is the HTTP status the API layer responds with.
// Two Errors match under errors.Is when their codes are equal, so callers
// compare against the sentinels below.
type Error struct {
	Code      string
	Status    int
	Message   string
	Retryable bool
	Err       error // underlying cause, never shown to clients
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Error sentinels.
var (
	ErrInvalidRange       = &Error{Code: "invalid_range", Status: http.StatusBadRequest, Message: "invalid time range"}
	ErrInvalidRequest     = &Error{Code: "invalid_request", Status: http.StatusBadRequest, Message: "invalid request"}
	ErrUserNotFound       = &Error{Code: "user_not_found", Status: http.StatusNotFound, Message: "user not found"}
	ErrSlotUnavailable    = &Error{Code: "slot_unavailable", Status: http.StatusConflict, Message: "slot unavailable"}
	ErrStorageConflict    = &Error{Code: "storage_conflict", Status: http.StatusConflict, Message: "concurrent update, retry the booking", Retryable: true}
	ErrStorageUnavailable = &Error{Code: "storage_unavailable", Status: http.StatusServiceUnavailable, Message: "service temporarily unavailable"}
)

// wrap derives a new Error from a sentinel with a specific message and cause.
func wrap(sentinel *Error, msg string, cause error) *Error {
	e := *sentinel
	if msg != "" {
		e.Message = msg
	}
	e.Err = cause
	return &e
}

// SlotUnavailableError names the first unit that blocked a booking.
type SlotUnavailableError struct {
	Date   string // YYYY-MM-DD
	Time   string // HH:MM
	Status string // Unavailable or Maintenance
}

func (e *SlotUnavailableError) Error() string {
	return fmt.Sprintf("slot %s %s is %s", e.Date, e.Time, e.Status)
}

func (e *SlotUnavailableError) Is(target error) bool { return target == ErrSlotUnavailable }

// AsError extracts the engine error from err.  Anything that is not an
// engine error is reported as ErrStorageUnavailable so driver text never
// reaches a client.
func AsError(err error) *Error {
	var se *SlotUnavailableError
	if errors.As(err, &se) {
		return wrap(ErrSlotUnavailable, se.Error(), err)
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return wrap(ErrStorageUnavailable, "", err)
}
