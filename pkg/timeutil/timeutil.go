// Package timeutil provides calendar helpers for the halaqa program.
// All students of one deployment share a single program location, configured at startup.
// No external dependencies - uses only standard library.
package timeutil

import (
	"fmt"
	"sync"
	"time"
)

var (
	locMu    sync.RWMutex
	location = time.UTC
)

// SetLocation sets the program location used by In and Now.
func SetLocation(loc *time.Location) {
	if loc == nil {
		return
	}
	locMu.Lock()
	location = loc
	locMu.Unlock()
}

// Location returns the program location.
func Location() *time.Location {
	locMu.RLock()
	defer locMu.RUnlock()
	return location
}

// LoadLocation resolves an IANA name, falling back to UTC.
func LoadLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// StartOfDay returns 00:00:00 of t's day, keeping t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// StartOfMonth returns midnight of the first day of t's month, keeping t's location.
func StartOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// StartOfYear returns midnight of January 1st of t's year, keeping t's location.
func StartOfYear(t time.Time) time.Time {
	return time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, t.Location())
}

// Range is a half-open time interval [From, To).
type Range struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t lies in [From, To).
func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.From) && t.Before(r.To)
}

// String implements fmt.Stringer.
func (r Range) String() string {
	return fmt.Sprintf("[%s, %s)", FormatDateStr(r.From), FormatDateStr(r.To))
}

// DaysFrom returns [start, start+days).
func DaysFrom(start time.Time, days int) Range {
	return Range{From: start, To: start.AddDate(0, 0, days)}
}

// MonthOf returns the calendar month containing t.
func MonthOf(t time.Time) Range {
	start := StartOfMonth(t)
	return Range{From: start, To: start.AddDate(0, 1, 0)}
}

// YearOf returns the calendar year containing t.
func YearOf(t time.Time) Range {
	start := StartOfYear(t)
	return Range{From: start, To: start.AddDate(1, 0, 0)}
}

// FormatDate is the standard date format (YYYY-MM-DD).
const FormatDate = "2006-01-02"

// FormatDateStr formats t as YYYY-MM-DD in its own location.
func FormatDateStr(t time.Time) string {
	return t.Format(FormatDate)
}

// ParseDate parses YYYY-MM-DD as midnight in the program location.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(FormatDate, s, Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("timeutil: invalid date %q: %w", s, err)
	}
	return t, nil
}
