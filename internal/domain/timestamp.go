package domain

import (
	"fmt"
	"time"
)

// TimestampLayout is the shared on-disk timestamp format (yyyy/MM/dd HH:mm).
const TimestampLayout = "2006/01/02 15:04"

// ParseTimestamp parses s with TimestampLayout. The result is a wall-clock
// time expressed in UTC. Every field must be zero-padded: s has to be exactly
// what FormatTimestamp would print.
func ParseTimestamp(s string) (time.Time, error) {
	t, err := time.ParseInLocation(TimestampLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: %v", ErrInvalidTimestamp, s, err)
	}
	if FormatTimestamp(t) != s {
		return time.Time{}, fmt.Errorf("%w: %q: not in %s form", ErrInvalidTimestamp, s, TimestampLayout)
	}
	return t, nil
}

// FormatTimestamp renders the wall clock of t with TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// WallClock drops the location of t, keeping its wall-clock reading, so that
// bounds built in any zone compare against parsed timestamps consistently.
func WallClock(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// DateLayout is accepted wherever a query bound is read from user input.
const DateLayout = "2006-01-02"

// ParseBound reads a query bound given either with TimestampLayout or as a
// bare date. A bare date used as an end bound covers the whole day, up to
// 23:59.
func ParseBound(s string, endOfDay bool) (time.Time, error) {
	if t, err := ParseTimestamp(s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, s)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Minute)
	}
	return t, nil
}
