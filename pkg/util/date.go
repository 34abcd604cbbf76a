package util

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the canonical trading date format.
const DateLayout = "2006-01-02"

// rocOffset converts a Republic of China (Minguo) year to a Gregorian year.
const rocOffset = 1911

// ParseDate parses YYYY-MM-DD into a UTC midnight time.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

// ParseDateDefault parses a date or returns def if empty/invalid.
func ParseDateDefault(s string, def time.Time) time.Time {
	if t, err := ParseDate(s); err == nil {
		return t
	}
	return def
}

// FormatDate renders t as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// TruncateDay returns UTC midnight of the calendar day of t.
func TruncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// NormalizeTradingDate accepts ISO dates, compact ROC dates ("1150210") and
// slashed ROC dates ("115/02/10"). Returns (t, true) if any form matched.
func NormalizeTradingDate(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := ParseDate(s); err == nil {
		return t, true
	}
	if len(s) == 7 && isDigits(s) {
		return rocDate(s[:3], s[3:5], s[5:7])
	}
	if parts := strings.Split(s, "/"); len(parts) == 3 {
		if len(parts[0]) >= 2 && len(parts[0]) <= 3 && len(parts[1]) == 2 && len(parts[2]) == 2 {
			return rocDate(parts[0], parts[1], parts[2])
		}
	}
	return time.Time{}, false
}

func rocDate(y, m, d string) (time.Time, bool) {
	year, err1 := strconv.Atoi(y)
	month, err2 := strconv.Atoi(m)
	day, err3 := strconv.Atoi(d)
	if err1 != nil || err2 != nil || err3 != nil {
		return time.Time{}, false
	}
	t := time.Date(year+rocOffset, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// reject overflowed dates like 02/30
	if t.Month() != time.Month(month) || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
