// Package ingest turns a batch of raw postings into stored listings.
package ingest

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"jobmate/jobfeed-service/internal/logger"
	"jobmate/jobfeed-service/internal/model"
	"jobmate/jobfeed-service/internal/normalize"
	"jobmate/jobfeed-service/internal/store"
)

// Orchestrator normalizes, dedups and persists one batch at a time.
type Orchestrator struct {
	store   store.Store
	norm    *normalize.Normalizer
	log     *logger.Logger
	now     func() time.Time
	workers int
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock sets the clock used for ScrapedAt.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithWorkers bounds parallel normalization.
func WithWorkers(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.workers = n
		}
	}
}

// New returns an Orchestrator writing to s.
func New(s store.Store, n *normalize.Normalizer, log *logger.Logger, opts ...Option) *Orchestrator {
	if log == nil {
		log = logger.Nop()
	}
	o := &Orchestrator{
		store:   s,
		norm:    n,
		log:     log,
		now:     time.Now,
		workers: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Exclude reports a normalized listing that must not be stored, such as one
// matching a red-flag term.
type Exclude func(model.JobListing) bool

type normalized struct {
	listing model.JobListing
	err     error
}

// Ingest processes raws as one batch. Normalization failures are counted
// and skipped, as are listings any exclude func rejects. The first posting
// with a given identity key wins over later ones in the same batch, and the
// survivors reach the store in a single InsertBatch call. The store write
// ignores ctx cancellation so a batch is never abandoned half way. On a store
// error the returned stats hold only what was decided before the write.
func (o *Orchestrator) Ingest(ctx context.Context, raws []model.RawPosting, exclude ...Exclude) (model.IngestStats, error) {
	stats := model.IngestStats{Total: len(raws)}
	if len(raws) == 0 {
		return stats, nil
	}

	results := make([]normalized, len(raws))
	var g errgroup.Group
	g.SetLimit(o.workers)
	for i := range raws {
		g.Go(func() error {
			l, err := o.norm.Normalize(raws[i])
			results[i] = normalized{listing: l, err: err}
			return nil
		})
	}
	_ = g.Wait()

	scrapedAt := o.now().UTC()
	batch := make([]model.JobListing, 0, len(raws))
	seen := make(map[string]struct{}, len(raws))
	for i, r := range results {
		if r.err != nil {
			stats.Invalid++
			stats.Errors = append(stats.Errors, fmt.Sprintf("posting %d: %v", i, r.err))
			continue
		}
		if excluded(r.listing, exclude) {
			stats.Filtered++
			continue
		}
		if _, dup := seen[r.listing.IdentityKey]; dup {
			stats.Duplicates++
			continue
		}
		seen[r.listing.IdentityKey] = struct{}{}
		r.listing.ScrapedAt = scrapedAt
		batch = append(batch, r.listing)
	}

	if stats.Invalid > 0 {
		o.log.Warn().Int("invalid", stats.Invalid).Int("total", stats.Total).Msg("Skipped postings that failed normalization")
	}
	if len(batch) == 0 {
		return stats, nil
	}

	inserted, err := o.store.InsertBatch(context.WithoutCancel(ctx), batch)
	if err != nil {
		o.log.Error().Err(err).Int("batch", len(batch)).Msg("Batch insert failed")
		return stats, fmt.Errorf("ingest batch: %w", err)
	}
	for _, r := range inserted {
		if r.Inserted {
			stats.Inserted++
		} else {
			stats.Duplicates++
		}
	}

	o.log.Info().
		Int("total", stats.Total).
		Int("inserted", stats.Inserted).
		Int("duplicates", stats.Duplicates).
		Int("invalid", stats.Invalid).
		Int("filtered", stats.Filtered).
		Msg("Batch ingested")
	return stats, nil
}

func excluded(l model.JobListing, exclude []Exclude) bool {
	for _, ex := range exclude {
		if ex != nil && ex(l) {
			return true
		}
	}
	return false
}
