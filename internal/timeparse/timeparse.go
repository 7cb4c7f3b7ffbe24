// Package timeparse turns the loose date/time text that reaches the planner
// into timezone-aware instants anchored to a reference date.
package timeparse

import (
	"regexp"
	"strings"
	"time"
)

const (
	// LayoutDateTime is the canonical stored form for task times.
	LayoutDateTime = "2006-01-02 15:04"
	// LayoutDate is the canonical plan date form.
	LayoutDate = "2006-01-02"
)

var dateInText = regexp.MustCompile(`(\d{4}-\d{2}-\d{2})`)

// Normalize parses raw into an instant in the local timezone. Bare times
// ("HH:MM", "HH:MM:SS") are combined with ref's calendar date. The bool is
// false when raw is not parseable; callers treat that as a validation
// failure, never a crash.
func Normalize(raw string, ref time.Time) (time.Time, bool) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return time.Time{}, false
	}
	loc := ref.Location()
	value = strings.Replace(value, "T", " ", 1)

	for _, layout := range []string{"2006-01-02 15:04:05", LayoutDateTime} {
		if dt, err := time.ParseInLocation(layout, value, loc); err == nil {
			return dt, true
		}
	}

	for _, layout := range []string{"15:04:05", "15:04"} {
		if clock, err := time.Parse(layout, value); err == nil {
			return time.Date(
				ref.Year(), ref.Month(), ref.Day(),
				clock.Hour(), clock.Minute(), clock.Second(), 0, loc,
			), true
		}
	}

	return time.Time{}, false
}

// ParsePlanDate resolves a plan-date reference. Empty input means today;
// the keywords today/tomorrow/yesterday are supported alongside YYYY-MM-DD.
func ParsePlanDate(raw string, today time.Time) (time.Time, bool) {
	text := strings.ToLower(strings.TrimSpace(raw))
	day := truncateToDay(today)
	switch text {
	case "", "today":
		return day, true
	case "tomorrow":
		return day.AddDate(0, 0, 1), true
	case "yesterday":
		return day.AddDate(0, 0, -1), true
	}
	if dt, err := time.ParseInLocation(LayoutDate, text, today.Location()); err == nil {
		return dt, true
	}
	return time.Time{}, false
}

// ExtractDate pulls an explicit calendar date out of a datetime string, if
// one is present. Bare times carry no date and return false.
func ExtractDate(raw string, loc *time.Location) (time.Time, bool) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return time.Time{}, false
	}
	m := dateInText.FindString(text)
	if m == "" {
		return time.Time{}, false
	}
	dt, err := time.ParseInLocation(LayoutDate, m, loc)
	if err != nil {
		return time.Time{}, false
	}
	return dt, true
}

// SameDate reports whether two instants fall on the same calendar date.
func SameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
