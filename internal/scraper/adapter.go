package scraper

import (
	"context"
	"fmt"

	"jobmate/jobfeed-service/internal/model"
)

// Adapter fetches raw postings from one job board. Fetch must honour ctx and
// be safe to call concurrently with other adapters.
type Adapter interface {
	Name() string
	Fetch(ctx context.Context, p model.AdapterParams) ([]model.RawPosting, error)
}

// AdapterFunc turns a plain function into an Adapter.
type AdapterFunc struct {
	name string
	fn   func(ctx context.Context, p model.AdapterParams) ([]model.RawPosting, error)
}

// NewAdapterFunc returns an Adapter named name that calls fn.
func NewAdapterFunc(name string, fn func(ctx context.Context, p model.AdapterParams) ([]model.RawPosting, error)) AdapterFunc {
	return AdapterFunc{name: name, fn: fn}
}

// Name implements Adapter.
func (a AdapterFunc) Name() string { return a.name }

// Fetch implements Adapter.
func (a AdapterFunc) Fetch(ctx context.Context, p model.AdapterParams) ([]model.RawPosting, error) {
	return a.fn(ctx, p)
}

// AdapterError is a per-source failure. It is recorded in the run stats and
// never aborts sibling adapters.
type AdapterError struct {
	Source string
	Err    error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("adapter %s: %v", e.Source, e.Err)
}

func (e *AdapterError) Unwrap() error { return e.Err }
