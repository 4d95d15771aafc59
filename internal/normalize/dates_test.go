package normalize_test

import (
	"testing"
	"time"

	"jobmate/jobfeed-service/internal/normalize"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseDate_Valid(t *testing.T) {
	cases := []struct {
		in   any
		want time.Time
	}{
		{"2023-10-26", day(2023, 10, 26)},
		{"10/26/2023", day(2023, 10, 26)},
		{"2023-10-26T22:30:00+02:00", day(2023, 10, 26)},
		{"Oct 26, 2023", day(2023, 10, 26)},
		{"today", day(2024, 3, 15)},
		{"Today", day(2024, 3, 15)},
		{"yesterday", day(2024, 3, 14)},
		{"Tomorrow", day(2024, 3, 16)},
		{"2 days ago", day(2024, 3, 13)},
		{"2 weeks ago", day(2024, 3, 1)},
		{"1 month ago", day(2024, 2, 15)},
		{"30 minutes ago", day(2024, 3, 15)},
		{"13 hours ago", day(2024, 3, 14)},
		{time.Date(2022, 12, 25, 18, 0, 0, 0, time.UTC), day(2022, 12, 25)},
	}
	for _, c := range cases {
		got := normalize.ParseDate(c.in, fixedNow)
		if got == nil {
			t.Errorf("ParseDate(%v) = nil, want %s", c.in, c.want.Format("2006-01-02"))
			continue
		}
		if !got.Equal(c.want) {
			t.Errorf("ParseDate(%v) = %s, want %s", c.in, got.Format("2006-01-02"), c.want.Format("2006-01-02"))
		}
	}
}

// Unparseable dates degrade to nil; they never fail normalization.
func TestParseDate_InvalidAndEdgeCases(t *testing.T) {
	invalid := []any{
		"",
		nil,
		"invalid date string",
		"posted 2 days ago",
		"1 day hence",
		42,
		time.Time{},
	}
	for _, in := range invalid {
		if got := normalize.ParseDate(in, fixedNow); got != nil {
			t.Errorf("ParseDate(%#v) = %s, want nil", in, got)
		}
	}
}
