package lattice

import (
	"fmt"
	"strings"
	"time"
)

// TimeOfDay is a wall-clock time without a date, stored as minutes since
// midnight.  Valid values are 0 through 1439.
type TimeOfDay int

// accepted input layouts; the 12-hour forms are what older clients send
// ("02:00 PM").
var timeLayouts = []string{"15:04", "15:04:05", "03:04 PM", "3:04 PM", "03:04PM", "3:04PM"}

// NewTimeOfDay builds a TimeOfDay from an hour and minute.
func NewTimeOfDay(hour, minute int) (TimeOfDay, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid time of day %02d:%02d", hour, minute)
	}
	return TimeOfDay(hour*60 + minute), nil
}

// MustTimeOfDay is NewTimeOfDay for constants; it panics on bad input.
func MustTimeOfDay(hour, minute int) TimeOfDay {
	t, err := NewTimeOfDay(hour, minute)
	if err != nil {
		panic(err)
	}
	return t
}

// ParseTimeOfDay accepts "15:04", "15:04:05" and "03:04 PM" style input.
// Seconds, when present, must be zero.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	for _, layout := range timeLayouts {
		t, err := time.Parse(layout, v)
		if err != nil {
			continue
		}
		if t.Second() != 0 {
			return 0, fmt.Errorf("invalid time of day %q: seconds not allowed", s)
		}
		return TimeOfDay(t.Hour()*60 + t.Minute()), nil
	}
	return 0, fmt.Errorf("invalid time of day %q", s)
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

// Valid reports whether t lies within a single day.
func (t TimeOfDay) Valid() bool { return t >= 0 && t < minutesPerDay }

// Aligned reports whether t is a unit boundary.
func (t TimeOfDay) Aligned() bool { return int(t)%UnitWidth == 0 }

// String renders t as HH:MM (24-hour clock).
func (t TimeOfDay) String() string { return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute()) }

// MarshalText implements encoding.TextMarshaler.
func (t TimeOfDay) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *TimeOfDay) UnmarshalText(b []byte) error {
	v, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}
