// Package lattice discretizes a requested booking range into the fixed
// one-hour units the turf is sold in.  Everything here is pure: no
// storage, no clock.  A unit is identified by the calendar date it falls
// on and its start time of day; that pair is the conflict key used by the
// slot store.
package lattice

import (
	"errors"
	"fmt"
	"time"
)

// UnitWidth is the width of one bookable unit in minutes.
const UnitWidth = 60

// minutesPerDay bounds a TimeOfDay.
const minutesPerDay = 24 * 60

// DateLayout is the canonical textual form of a unit date.
const DateLayout = "2006-01-02"

// ErrInvalidRange is matched (errors.Is) by every RangeError.
var ErrInvalidRange = errors.New("invalid range")

// RangeError describes why a range could not be expanded.
type RangeError struct {
	Start  TimeOfDay
	End    TimeOfDay
	Reason string
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("invalid range %s-%s: %s", e.Start, e.End, e.Reason)
}

// Is lets callers test with errors.Is(err, ErrInvalidRange).
func (e *RangeError) Is(target error) bool { return target == ErrInvalidRange }

// Unit is a single bookable hour.
type Unit struct {
	Date  time.Time // midnight UTC of the day the unit belongs to
	Start TimeOfDay
}

// DateString returns the unit date as YYYY-MM-DD.
func (u Unit) DateString() string { return FormatDate(u.Date) }

// Key returns "YYYY-MM-DD HH:MM", unique per unit.
func (u Unit) Key() string { return u.DateString() + " " + u.Start.String() }

func (u Unit) String() string { return u.Key() }

// Expand returns the ordered units covering [start, end) on date.  When
// end is earlier than start the range runs past midnight and the units
// from 00:00 onwards belong to the following date.  The range must start
// on a unit boundary and last a positive whole number of units; anything
// else is rejected rather than rounded.
func Expand(date time.Time, start, end TimeOfDay) ([]Unit, error) {
	if !start.Valid() || !end.Valid() {
		return nil, &RangeError{Start: start, End: end, Reason: "time of day out of range"}
	}
	if start == end {
		return nil, &RangeError{Start: start, End: end, Reason: "empty range"}
	}
	if !start.Aligned() || !end.Aligned() {
		return nil, &RangeError{Start: start, End: end, Reason: "not aligned to the hourly unit"}
	}
	duration := int(end) - int(start)
	if duration < 0 {
		duration += minutesPerDay
	}
	if duration%UnitWidth != 0 {
		return nil, &RangeError{Start: start, End: end, Reason: "duration is not a whole number of units"}
	}

	day := NormalizeDate(date)
	next := day.AddDate(0, 0, 1)
	units := make([]Unit, 0, duration/UnitWidth)
	for offset := 0; offset < duration; offset += UnitWidth {
		m := int(start) + offset
		d := day
		if m >= minutesPerDay {
			m -= minutesPerDay
			d = next
		}
		units = append(units, Unit{Date: d, Start: TimeOfDay(m)})
	}
	return units, nil
}

// Units builds the units for individually listed start times on date,
// dropping duplicates and keeping the first-seen order.  Every time must
// sit on a unit boundary.
func Units(date time.Time, times []TimeOfDay) ([]Unit, error) {
	if len(times) == 0 {
		return nil, &RangeError{Reason: "no unit times given"}
	}
	day := NormalizeDate(date)
	seen := make(map[TimeOfDay]struct{}, len(times))
	units := make([]Unit, 0, len(times))
	for _, t := range times {
		if !t.Valid() || !t.Aligned() {
			return nil, &RangeError{Start: t, End: t, Reason: "unit time must be a whole hour"}
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		units = append(units, Unit{Date: day, Start: t})
	}
	return units, nil
}

// NormalizeDate drops the clock part of t and pins it to UTC, keeping the
// calendar date t shows in its own location.
func NormalizeDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses YYYY-MM-DD.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

// FormatDate renders a date as YYYY-MM-DD.
func FormatDate(t time.Time) string { return t.Format(DateLayout) }
