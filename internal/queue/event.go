// Package queue defines message payloads exchanged over the message broker
// and the consumer that writes them to the audit log.
package queue

// Queue names.  Both are durable.
const (
	BookingConfirmedQueue = "booking.confirmed"
	SlotMaintenanceQueue  = "slot.maintenance"
)

// BookingConfirmedEvent is published after a booking transaction commits.
// It carries enough to audit the booking without querying the database.
type BookingConfirmedEvent struct {
	EventID       string   `json:"event_id"`
	ReservationID uint64   `json:"reservation_id"`
	UserID        uint64   `json:"user_id"`
	Date          string   `json:"date"`       // YYYY-MM-DD
	StartTime     string   `json:"start_time"` // HH:MM
	EndTime       string   `json:"end_time"`   // HH:MM, exclusive
	Units         []string `json:"units"`      // "YYYY-MM-DD HH:MM" per claimed unit
	Amount        string   `json:"amount"`     // decimal string
	ConfirmedAt   string   `json:"confirmed_at"`
}

// MaintenanceEvent is published after a maintenance mark or clear commits.
// Marked and Cleared list only the units whose row actually changed.
type MaintenanceEvent struct {
	EventID string   `json:"event_id"`
	Date    string   `json:"date"`
	Marked  []string `json:"marked,omitempty"`
	Cleared []string `json:"cleared,omitempty"`
	At      string   `json:"at"`
}
