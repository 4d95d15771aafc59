package query_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobmate/jobfeed-service/internal/model"
	"jobmate/jobfeed-service/internal/query"
	"jobmate/jobfeed-service/internal/store"
)

func newService(t *testing.T, rows int, maxLimit int) *query.Service {
	t.Helper()
	s, err := store.OpenBadger(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	if rows > 0 {
		batch := make([]model.JobListing, rows)
		for i := range batch {
			source := "indeed"
			if i%2 == 1 {
				source = "linkedin"
			}
			batch[i] = model.JobListing{
				IdentityKey: fmt.Sprintf("k%d", i),
				Source:      source,
				Title:       fmt.Sprintf("Engineer %d", i),
				Company:     "Acme",
				Location:    "Paris",
				ScrapedAt:   time.Now().UTC(),
				Status:      model.StatusNew,
			}
		}
		_, err = s.InsertBatch(context.Background(), batch)
		require.NoError(t, err)
	}
	return query.NewService(s, maxLimit)
}

func TestListJobs_PagesOfTwo(t *testing.T) {
	svc := newService(t, 5, 0)
	ctx := context.Background()

	var (
		seen  []uint64
		sizes []int
		more  []bool
	)
	for offset := 0; offset < 5; offset += 2 {
		page, err := svc.ListJobs(ctx, query.ListRequest{Offset: offset, Limit: 2})
		require.NoError(t, err)
		sizes = append(sizes, len(page.Items))
		more = append(more, page.HasMore)
		assert.Equal(t, 5, page.Total)
		for _, l := range page.Items {
			seen = append(seen, l.NumericID)
		}
	}
	assert.Equal(t, []int{2, 2, 1}, sizes)
	assert.Equal(t, []bool{true, true, false}, more)
	assert.Equal(t, []uint64{1, 2, 3, 4, 5}, seen)
}

func TestListJobs_LimitDefaultsAndClamp(t *testing.T) {
	svc := newService(t, 30, 25)
	ctx := context.Background()

	page, err := svc.ListJobs(ctx, query.ListRequest{})
	require.NoError(t, err)
	assert.Equal(t, query.DefaultLimit, page.Limit)
	assert.Len(t, page.Items, query.DefaultLimit)

	page, err = svc.ListJobs(ctx, query.ListRequest{Limit: 1000})
	require.NoError(t, err)
	assert.Equal(t, 25, page.Limit)
	assert.Len(t, page.Items, 25)
}

func TestListJobs_Validation(t *testing.T) {
	svc := newService(t, 0, 0)
	ctx := context.Background()

	var verr *query.ValidationError
	_, err := svc.ListJobs(ctx, query.ListRequest{Offset: -1})
	assert.ErrorAs(t, err, &verr)

	_, err = svc.ListJobs(ctx, query.ListRequest{Status: "hired"})
	assert.ErrorAs(t, err, &verr)
}

func TestListJobs_FiltersMapToStore(t *testing.T) {
	svc := newService(t, 4, 0)
	ctx := context.Background()

	page, err := svc.ListJobs(ctx, query.ListRequest{Source: "linkedin", Title: "engineer"})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	for _, l := range page.Items {
		assert.Equal(t, "linkedin", l.Source)
	}

	_, err = svc.UpdateStatus(ctx, 1, "viewed")
	require.NoError(t, err)
	page, err = svc.ListJobs(ctx, query.ListRequest{Status: "viewed"})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, uint64(1), page.Items[0].NumericID)
}

func TestListJobs_EmptyStore(t *testing.T) {
	svc := newService(t, 0, 0)
	page, err := svc.ListJobs(context.Background(), query.ListRequest{Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.False(t, page.HasMore)
	assert.Equal(t, 0, page.Total)
}

func TestGetJobAndUpdateStatus(t *testing.T) {
	svc := newService(t, 1, 0)
	ctx := context.Background()

	l, err := svc.GetJob(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Engineer 0", l.Title)

	_, err = svc.GetJob(ctx, 99)
	assert.ErrorIs(t, err, store.ErrNotFound)

	var verr *query.ValidationError
	_, err = svc.UpdateStatus(ctx, 1, "HIRED")
	assert.ErrorAs(t, err, &verr)

	l, err = svc.UpdateStatus(ctx, 1, "applied")
	require.NoError(t, err)
	assert.Equal(t, model.StatusApplied, l.Status)
}
