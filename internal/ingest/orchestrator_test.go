package ingest_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobmate/jobfeed-service/internal/ingest"
	"jobmate/jobfeed-service/internal/model"
	"jobmate/jobfeed-service/internal/normalize"
	"jobmate/jobfeed-service/internal/store"
)

var fixedNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

func newOrchestrator(t *testing.T) (*ingest.Orchestrator, *store.Badger) {
	t.Helper()
	s, err := store.OpenBadger(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	clock := func() time.Time { return fixedNow }
	o := ingest.New(s, normalize.New(normalize.WithClock(clock)), nil,
		ingest.WithClock(clock), ingest.WithWorkers(4))
	return o, s
}

func posting(source, url, title string) model.RawPosting {
	return model.RawPosting{Source: source, Fields: map[string]any{"job_url": url, "title": title}}
}

func TestIngest_EndToEndFirstSeenWins(t *testing.T) {
	o, s := newOrchestrator(t)
	ctx := context.Background()

	stats, err := o.Ingest(ctx, []model.RawPosting{
		posting("a", "http://x/1", "Engineer"),
		posting("a", "http://x/1", "Engineer (dup)"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Inserted)
	assert.Equal(t, 1, stats.Duplicates)

	rows, err := s.Query(ctx, store.Filter{Source: "a"}, store.Pagination{Offset: 0, Limit: 10})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Engineer", rows[0].Title)
	assert.True(t, rows[0].ScrapedAt.Equal(fixedNow))
	assert.Equal(t, model.StatusNew, rows[0].Status)
}

func TestIngest_Idempotent(t *testing.T) {
	o, s := newOrchestrator(t)
	ctx := context.Background()

	batch := make([]model.RawPosting, 0, 6)
	for i := 0; i < 6; i++ {
		batch = append(batch, posting("a", fmt.Sprintf("http://x/%d", i), "Engineer"))
	}

	first, err := o.Ingest(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, 6, first.Inserted)

	second, err := o.Ingest(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Inserted)
	assert.Equal(t, second.Total, second.Duplicates)

	n, err := s.Count(ctx, store.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 6, n)
}

func TestIngest_PreservesInputOrder(t *testing.T) {
	o, s := newOrchestrator(t)
	ctx := context.Background()

	batch := make([]model.RawPosting, 0, 20)
	for i := 0; i < 20; i++ {
		batch = append(batch, posting("a", fmt.Sprintf("http://x/%d", i), fmt.Sprintf("Job %d", i)))
	}
	_, err := o.Ingest(ctx, batch)
	require.NoError(t, err)

	rows, err := s.Query(ctx, store.Filter{}, store.Pagination{})
	require.NoError(t, err)
	require.Len(t, rows, 20)
	for i, l := range rows {
		assert.Equal(t, fmt.Sprintf("Job %d", i), l.Title)
	}
}

func TestIngest_MissingCompanyIsStillInserted(t *testing.T) {
	o, s := newOrchestrator(t)
	ctx := context.Background()

	stats, err := o.Ingest(ctx, []model.RawPosting{posting("a", "http://x/1", "Engineer")})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Inserted)

	l, err := s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, model.NotAvailable, l.Company)
}

func TestIngest_InvalidPostingsAreCountedNotFatal(t *testing.T) {
	o, _ := newOrchestrator(t)

	stats, err := o.Ingest(context.Background(), []model.RawPosting{
		{Fields: map[string]any{"title": "No source"}},
		posting("a", "http://x/1", "Engineer"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Invalid)
	assert.Equal(t, 1, stats.Inserted)
	assert.Len(t, stats.Errors, 1)
}

func TestIngest_ExcludedListingsAreFiltered(t *testing.T) {
	o, s := newOrchestrator(t)
	noInterns := func(l model.JobListing) bool { return l.Title == "Intern" }

	stats, err := o.Ingest(context.Background(), []model.RawPosting{
		posting("a", "http://x/1", "Intern"),
		posting("a", "http://x/2", "Engineer"),
	}, noInterns)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Filtered)
	assert.Equal(t, 1, stats.Inserted)

	n, err := s.Count(context.Background(), store.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestIngest_EmptyBatch(t *testing.T) {
	o := ingest.New(failingStore{}, normalize.New(), nil)
	stats, err := o.Ingest(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, model.IngestStats{}, stats)
}

func TestIngest_CancelledContextStillWrites(t *testing.T) {
	o, s := newOrchestrator(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stats, err := o.Ingest(ctx, []model.RawPosting{posting("a", "http://x/1", "Engineer")})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Inserted)

	n, err := s.Count(context.Background(), store.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestIngest_StoreUnavailable(t *testing.T) {
	o := ingest.New(failingStore{}, normalize.New(), nil)

	stats, err := o.Ingest(context.Background(), []model.RawPosting{
		{Fields: map[string]any{"title": "No source"}},
		posting("a", "http://x/1", "Engineer"),
		posting("a", "http://x/2", "Scam recruiter"),
		posting("a", "http://x/1", "Engineer again"),
	}, func(l model.JobListing) bool { return l.Title == "Scam recruiter" })
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrUnavailable))

	// Skips decided before the write stay visible.
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 0, stats.Inserted)
	assert.Equal(t, 1, stats.Invalid)
	assert.Equal(t, 1, stats.Filtered)
	assert.Equal(t, 1, stats.Duplicates)
	assert.Len(t, stats.Errors, 1)
}

// failingStore fails every write as an unreachable database would.
type failingStore struct{ store.Store }

func (failingStore) InsertBatch(context.Context, []model.JobListing) ([]store.InsertResult, error) {
	return nil, fmt.Errorf("%w: connection refused", store.ErrUnavailable)
}
