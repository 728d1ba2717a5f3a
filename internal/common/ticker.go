// Package common provides shared utilities across the application.
package common

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar-day format used across cache keys and APIs.
const DateLayout = "2006-01-02"

// NormalizeSymbol validates and uppercases a ticker symbol.
// Accepts letters, digits, dot and hyphen (e.g. "BRK.B", "RDS-A").
func NormalizeSymbol(symbol string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if s == "" {
		return "", fmt.Errorf("ticker symbol is required")
	}
	if len(s) > 12 {
		return "", fmt.Errorf("ticker symbol too long: %q", symbol)
	}
	for _, r := range s {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '.' || r == '-' {
			continue
		}
		return "", fmt.Errorf("invalid ticker symbol: %q", symbol)
	}
	if s[0] < 'A' || s[0] > 'Z' {
		return "", fmt.Errorf("invalid ticker symbol: %q", symbol)
	}
	return s, nil
}

// ParseBaselineDate parses a YYYY-MM-DD baseline date. Dates after today
// are rejected; the analysis baseline is always today or in the past.
func ParseBaselineDate(value string, now time.Time) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("baseline date is required")
	}
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid baseline date %q (expected YYYY-MM-DD): %w", value, err)
	}
	if t.After(DayStart(now)) {
		return time.Time{}, fmt.Errorf("baseline date %s is in the future", value)
	}
	return t, nil
}

// DayStart truncates a time to midnight UTC.
func DayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DayKey formats a time as a calendar-day cache key component.
func DayKey(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// IsHistorical reports whether the baseline date is before today.
// This drives the real-time vs historical pricing decision.
func IsHistorical(baseline, now time.Time) bool {
	return DayStart(baseline).Before(DayStart(now))
}

// IsTradingDay reports whether a date falls on a weekday. Exchange holidays
// are handled by walking further back rather than by a holiday table.
func IsTradingDay(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// PrevTradingDay returns the most recent weekday strictly before t.
func PrevTradingDay(t time.Time) time.Time {
	current := DayStart(t).AddDate(0, 0, -1)
	for !IsTradingDay(current) {
		current = current.AddDate(0, 0, -1)
	}
	return current
}

// LastTradingDayOnOrBefore returns t when it is a weekday, else the nearest
// earlier weekday.
func LastTradingDayOnOrBefore(t time.Time) time.Time {
	current := DayStart(t)
	for !IsTradingDay(current) {
		current = current.AddDate(0, 0, -1)
	}
	return current
}

// QuarterOf returns the calendar quarter (1-4) and year for a date.
func QuarterOf(t time.Time) (quarter, year int) {
	return (int(t.Month())-1)/3 + 1, t.Year()
}

// PrevQuarter returns the quarter preceding (quarter, year).
func PrevQuarter(quarter, year int) (int, int) {
	if quarter <= 1 {
		return 4, year - 1
	}
	return quarter - 1, year
}

// DaysBetween returns the absolute whole-day distance between two dates.
func DaysBetween(a, b time.Time) int {
	d := DayStart(a).Sub(DayStart(b))
	if d < 0 {
		d = -d
	}
	return int(d / (24 * time.Hour))
}
