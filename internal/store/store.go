// Package store persists canonical job listings.
//
// Every backend enforces the same contract: one row per IdentityKey,
// NumericID assigned in insertion order and never reused, batches that never
// leave a partial row behind, and reads that only ever see committed rows.
package store

import (
	"context"
	"errors"
	"fmt"

	"jobmate/jobfeed-service/internal/model"
)

// Sentinel errors. Backend failures are wrapped so callers can match them
// with errors.Is.
var (
	ErrNotFound    = errors.New("listing not found")
	ErrUnavailable = errors.New("listing store unavailable")
)

// Filter narrows a query. Empty fields match everything.
type Filter struct {
	Title    string       // case-insensitive substring
	Location string       // case-insensitive substring
	Source   string       // exact
	Status   model.Status // exact
}

// Pagination is offset based; rows are ordered by NumericID ascending.
type Pagination struct {
	Offset int
	Limit  int
}

// InsertResult reports what happened to one listing of a batch.
type InsertResult struct {
	NumericID uint64
	Inserted  bool // false: a row with the same IdentityKey already existed
}

// Reader is the read side used by the query service.
type Reader interface {
	Query(ctx context.Context, f Filter, p Pagination) ([]model.JobListing, error)
	Count(ctx context.Context, f Filter) (int, error)
	Get(ctx context.Context, id uint64) (model.JobListing, error)
}

// Store is a durable listing store.
type Store interface {
	Reader

	// InsertBatch inserts every listing whose IdentityKey is absent and
	// skips the rest. Results are positional. Postgres commits the whole
	// batch or nothing; Badger may commit an oversized batch in chunks of
	// whole rows, and a retry inserts only the rows still missing.
	InsertBatch(ctx context.Context, listings []model.JobListing) ([]InsertResult, error)

	// UpdateStatus sets the consumer-owned status of one listing.
	UpdateStatus(ctx context.Context, id uint64, status model.Status) (model.JobListing, error)

	Close() error
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
}
