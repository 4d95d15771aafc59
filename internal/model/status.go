package model

import "fmt"

// Status is the consumer-owned lifecycle of a listing. Ingestion only ever
// writes StatusNew, and only when it creates the row.
type Status string

const (
	StatusNew      Status = "new"
	StatusViewed   Status = "viewed"
	StatusApplied  Status = "applied"
	StatusRejected Status = "rejected"
	StatusArchived Status = "archived"
)

// AllStatuses lists every valid status in display order.
var AllStatuses = []Status{StatusNew, StatusViewed, StatusApplied, StatusRejected, StatusArchived}

// ParseStatus converts a raw string to a Status, returning an error for
// unknown values. Matching is exact: "New" and " new" are rejected.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	switch st {
	case StatusNew, StatusViewed, StatusApplied, StatusRejected, StatusArchived:
		return st, nil
	}
	return "", fmt.Errorf("unknown listing status %q", s)
}
