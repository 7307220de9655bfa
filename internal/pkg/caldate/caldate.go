// Package caldate provides day-granularity date arithmetic. Every value it
// returns is a UTC midnight so that comparisons and day counts are unaffected
// by time of day, location or daylight saving transitions.
package caldate

import (
	"fmt"
	"strings"
	"time"
)

// Layout is the ISO calendar date layout used on the wire.
const Layout = "2006-01-02"

// Date discards the time-of-day of t, keeping the calendar day as seen in t's location.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AddDays returns the date n calendar days after t.
func AddDays(t time.Time, n int) time.Time {
	return Date(t).AddDate(0, 0, n)
}

// AddMonths adds n calendar months using Go's normalization rules, so
// Jan 31 + 1 month is Mar 2 (or Mar 3 in a non-leap year).
func AddMonths(t time.Time, n int) time.Time {
	return Date(t).AddDate(0, n, 0)
}

// DaysBetween counts whole calendar days from a to b. It is negative when b is before a.
func DaysBetween(a, b time.Time) int {
	return int(Date(b).Sub(Date(a)).Hours() / 24)
}

// Before reports whether the calendar day of a is strictly before that of b.
func Before(a, b time.Time) bool {
	return Date(a).Before(Date(b))
}

// Parse accepts a calendar date or an RFC 3339 timestamp.
func Parse(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(Layout, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return Date(t), nil
	}
	return time.Time{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD)", s)
}

// Format renders the calendar day of t.
func Format(t time.Time) string {
	return Date(t).Format(Layout)
}
