package util

import (
	"fmt"
	"strconv"
	"time"
)

// DayStart truncates t to midnight UTC of its calendar day.
func DayStart(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AddDays shifts a day by n calendar days.
func AddDays(day time.Time, n int) time.Time {
	return DayStart(day).AddDate(0, 0, n)
}

// Tomorrow returns the day after now.
func Tomorrow(now time.Time) time.Time {
	return AddDays(now, 1)
}

// Window returns the inclusive range of n days ending the day before end.
func Window(end time.Time, n int) (from, to time.Time) {
	return AddDays(end, -n), AddDays(end, -1)
}

// ParseDate accepts YYYY-MM-DD, RFC3339 or unix seconds and returns the UTC day.
func ParseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return DayStart(t), nil
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return DayStart(time.Unix(ts, 0)), nil
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

// ParseDateDefault parses s or returns def when s is empty.
func ParseDateDefault(s string, def time.Time) (time.Time, error) {
	if s == "" {
		return DayStart(def), nil
	}
	return ParseDate(s)
}
