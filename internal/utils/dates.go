package utils

import (
	"time"
)

// DayLayout is the key format used by the NEO feed and by the asteroid table.
const DayLayout = "2006-01-02"

// FormatDay renders t as a UTC calendar day key.
func FormatDay(t time.Time) string {
	return t.UTC().Format(DayLayout)
}

// DateWindow returns days+1 consecutive day keys starting at now.
func DateWindow(now time.Time, days int) []string {
	if days < 0 {
		days = 0
	}

	start := StartOfDay(now)
	window := make([]string, 0, days+1)
	for i := 0; i <= days; i++ {
		window = append(window, start.AddDate(0, 0, i).Format(DayLayout))
	}
	return window
}

// StartOfDay truncates t to UTC midnight.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a day key as UTC midnight.
func ParseDay(day string) (time.Time, error) {
	return time.ParseInLocation(DayLayout, day, time.UTC)
}
