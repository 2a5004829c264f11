package model

import (
	"fmt"
	"time"
)

// DateLayout is the wire format for collection units.
const DateLayout = "2006-01-02"

// DateUnit is the atomic item of collection work: one calendar date,
// normalized to UTC midnight. Units are totally ordered by date.
type DateUnit struct {
	t time.Time
}

// NewDateUnit truncates t to a UTC calendar date.
func NewDateUnit(t time.Time) DateUnit {
	u := t.UTC()
	return DateUnit{t: time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)}
}

// ParseDateUnit parses a YYYY-MM-DD string.
func ParseDateUnit(s string) (DateUnit, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return DateUnit{}, fmt.Errorf("parse date unit %q: %w", s, err)
	}
	return NewDateUnit(t), nil
}

// Time returns the unit as UTC midnight.
func (u DateUnit) Time() time.Time { return u.t }

func (u DateUnit) String() string { return u.t.Format(DateLayout) }

// IsZero reports whether the unit is the zero value.
func (u DateUnit) IsZero() bool { return u.t.IsZero() }

func (u DateUnit) Before(other DateUnit) bool { return u.t.Before(other.t) }

func (u DateUnit) After(other DateUnit) bool { return u.t.After(other.t) }

func (u DateUnit) Equal(other DateUnit) bool { return u.t.Equal(other.t) }

// AddDays returns the unit n days later (n may be negative).
func (u DateUnit) AddDays(n int) DateUnit { return DateUnit{t: u.t.AddDate(0, 0, n)} }

// Next returns the following calendar date.
func (u DateUnit) Next() DateUnit { return u.AddDays(1) }

// DaysUntil returns the whole number of days from u to other.
// Negative when other precedes u.
func (u DateUnit) DaysUntil(other DateUnit) int {
	return int(other.t.Sub(u.t) / (24 * time.Hour))
}

// MarshalJSON encodes the unit as a YYYY-MM-DD string.
func (u DateUnit) MarshalJSON() ([]byte, error) {
	return []byte(`"` + u.String() + `"`), nil
}

// UnmarshalJSON decodes a YYYY-MM-DD string.
func (u *DateUnit) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("date unit must be a JSON string, got %s", s)
	}
	parsed, err := ParseDateUnit(s[1 : len(s)-1])
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

// DateRange is an inclusive interval of calendar dates.
type DateRange struct {
	Start DateUnit `json:"start"`
	End   DateUnit `json:"end"`
}

// Validate checks that both bounds are set and ordered.
func (r DateRange) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() {
		return fmt.Errorf("date range requires both bounds, got %s..%s", r.Start, r.End)
	}
	if r.End.Before(r.Start) {
		return fmt.Errorf("date range end %s precedes start %s", r.End, r.Start)
	}
	return nil
}

// Days returns the number of units covered by the range (inclusive).
func (r DateRange) Days() int { return r.Start.DaysUntil(r.End) + 1 }

// Contains reports whether u falls within the range.
func (r DateRange) Contains(u DateUnit) bool {
	return !u.Before(r.Start) && !u.After(r.End)
}

// Units expands the range into its ordered units, ascending.
func (r DateRange) Units() []DateUnit {
	if r.Start.IsZero() || r.End.Before(r.Start) {
		return nil
	}
	units := make([]DateUnit, 0, r.Days())
	for u := r.Start; !u.After(r.End); u = u.Next() {
		units = append(units, u)
	}
	return units
}

func (r DateRange) String() string {
	return r.Start.String() + ".." + r.End.String()
}
