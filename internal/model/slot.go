package model

import "time"

// SlotStatus is the persisted state of an hourly unit.  Available is
// never stored: a missing row means the unit is free.
type SlotStatus string

const (
	SlotAvailable   SlotStatus = "Available"
	SlotUnavailable SlotStatus = "Unavailable"
	SlotMaintenance SlotStatus = "Maintenance"
)

// SlotUnit is a row of the slot_units table.  (SlotDate, SlotTime) is
// unique; ReservationID is set only for Unavailable rows.
type SlotUnit struct {
	ID            uint64     `db:"id" json:"id"`
	SlotDate      string     `db:"slot_date" json:"slot_date"`
	SlotTime      string     `db:"slot_time" json:"slot_time"`
	Status        SlotStatus `db:"status" json:"status"`
	ReservationID *uint64    `db:"reservation_id" json:"reservation_id,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}

// Key matches lattice.Unit.Key.
func (s SlotUnit) Key() string { return s.SlotDate + " " + s.SlotTime }
