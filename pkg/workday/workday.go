// Package workday implements working-day calendar arithmetic.
//
// A working day is any day that is not a Saturday or Sunday; holidays are not
// considered. Dates are civil dates represented as time.Time values at 00:00 UTC
// and every function normalises its input to that form before doing arithmetic,
// so a weekend boundary is always evaluated in the same zone.
package workday

import (
	"errors"
	"fmt"
	"time"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// ErrInvalidArgument is returned for negative day counts and invalid dates.
var ErrInvalidArgument = errors.New("invalid argument")

// Normalize returns the UTC calendar day containing t, at midnight.
func Normalize(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// IsWorkingDay reports whether t falls on Monday through Friday (UTC).
func IsWorkingDay(t time.Time) bool {
	switch t.UTC().Weekday() {
	case time.Saturday, time.Sunday:
		return false
	default:
		return true
	}
}

// AddWorkingDays returns the date n working days after start. The start day
// itself is never counted, so AddWorkingDays(d, 0) is d and a weekend start
// only begins counting from the following Monday.
func AddWorkingDays(start time.Time, n int) (time.Time, error) {
	if start.IsZero() {
		return time.Time{}, fmt.Errorf("%w: start date is required", ErrInvalidArgument)
	}
	if n < 0 {
		return time.Time{}, fmt.Errorf("%w: working day count %d is negative", ErrInvalidArgument, n)
	}

	date := Normalize(start)
	for remaining := n; remaining > 0; {
		date = date.AddDate(0, 0, 1)
		if IsWorkingDay(date) {
			remaining--
		}
	}
	return date, nil
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(raw string) (time.Time, error) {
	t, err := time.Parse(DateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q is not a calendar date", ErrInvalidArgument, raw)
	}
	return t, nil
}

// FormatDate renders t as YYYY-MM-DD in UTC.
func FormatDate(t time.Time) string {
	return Normalize(t).Format(DateLayout)
}
