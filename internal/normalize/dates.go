package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var relativeAgo = regexp.MustCompile(`^(\d+)\s+(minute|min|hour|hr|day|week|month)s?\s+ago$`)

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"01/02/2006",
	"Jan 2, 2006",
	"January 2, 2006",
}

// ParseDate turns a posting date in any of the shapes job boards use into a
// UTC calendar date. Relative phrases ("yesterday", "3 days ago") resolve
// against now. Anything unrecognized yields nil rather than an error.
func ParseDate(v any, now time.Time) *time.Time {
	switch x := v.(type) {
	case time.Time:
		if x.IsZero() {
			return nil
		}
		return dateOf(x)
	case *time.Time:
		if x == nil || x.IsZero() {
			return nil
		}
		return dateOf(*x)
	case string:
		return parseDateString(x, now)
	}
	return nil
}

func parseDateString(raw string, now time.Time) *time.Time {
	raw = strings.TrimSpace(raw)
	s := strings.ToLower(raw)
	if s == "" {
		return nil
	}

	switch s {
	case "today", "just now", "just posted":
		return dateOf(now)
	case "yesterday":
		return dateOf(now.AddDate(0, 0, -1))
	case "tomorrow":
		return dateOf(now.AddDate(0, 0, 1))
	}

	if m := relativeAgo.FindStringSubmatch(s); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return nil
		}
		switch m[2] {
		case "minute", "min":
			return dateOf(now.Add(-time.Duration(n) * time.Minute))
		case "hour", "hr":
			return dateOf(now.Add(-time.Duration(n) * time.Hour))
		case "day":
			return dateOf(now.AddDate(0, 0, -n))
		case "week":
			return dateOf(now.AddDate(0, 0, -7*n))
		case "month":
			return dateOf(now.AddDate(0, -n, 0))
		}
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return dateOf(t)
		}
	}
	return nil
}

// dateOf keeps the calendar date as written in t's own zone.
func dateOf(t time.Time) *time.Time {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &d
}
