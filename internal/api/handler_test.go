package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobmate/jobfeed-service/internal/api"
	"jobmate/jobfeed-service/internal/ingest"
	"jobmate/jobfeed-service/internal/model"
	"jobmate/jobfeed-service/internal/normalize"
	"jobmate/jobfeed-service/internal/query"
	"jobmate/jobfeed-service/internal/scraper"
	"jobmate/jobfeed-service/internal/store"
)

type fixture struct {
	srv     *httptest.Server
	coord   *scraper.Coordinator
	release chan struct{}
}

// newFixture wires the real services over a temporary Badger store. The
// "slow" adapter blocks until release is closed.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	s, err := store.OpenBadger(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	release := make(chan struct{})
	adapters := []scraper.Adapter{
		scraper.NewAdapterFunc("a", func(context.Context, model.AdapterParams) ([]model.RawPosting, error) {
			return []model.RawPosting{
				{Fields: map[string]any{"job_url": "http://x/1", "title": "Engineer"}},
				{Fields: map[string]any{"job_url": "http://x/1", "title": "Engineer (dup)"}},
				{Fields: map[string]any{"job_url": "http://x/2", "title": "Analyst"}},
			}, nil
		}),
		scraper.NewAdapterFunc("slow", func(context.Context, model.AdapterParams) ([]model.RawPosting, error) {
			<-release
			return nil, nil
		}),
	}
	coord := scraper.NewCoordinator(ingest.New(s, normalize.New(), nil), adapters, nil,
		scraper.WithDefaults(model.RunParams{Sources: []string{"a"}, ResultsWanted: 10}))

	mux := http.NewServeMux()
	api.NewHandler(query.NewService(s, 0), coord, nil, "test").RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	t.Cleanup(func() {
		select {
		case <-release:
		default:
			close(release)
		}
	})
	return &fixture{srv: srv, coord: coord, release: release}
}

func (f *fixture) do(t *testing.T, method, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, f.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func (f *fixture) runToCompletion(t *testing.T, body string) string {
	t.Helper()
	resp, out := f.do(t, http.MethodPost, "/runs", body)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	id, _ := out["runId"].(string)
	require.NotEmpty(t, id)

	require.Eventually(t, func() bool {
		run, err := f.coord.RunStatus(id)
		return err == nil && run.State.Terminal()
	}, 5*time.Second, 10*time.Millisecond)
	return id
}

func TestAPI_RunThenList(t *testing.T) {
	f := newFixture(t)
	id := f.runToCompletion(t, "")

	resp, run := f.do(t, http.MethodGet, "/runs/"+id, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "succeeded", run["state"])
	stats := run["stats"].(map[string]any)
	assert.Equal(t, float64(2), stats["newAdded"])
	assert.Equal(t, float64(1), stats["duplicatesSkipped"])

	resp, page := f.do(t, http.MethodGet, "/jobs?source=a&skip=0&limit=10", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	items := page["items"].([]any)
	require.Len(t, items, 2)
	assert.Equal(t, "Engineer", items[0].(map[string]any)["title"])
	assert.Equal(t, float64(2), page["total"])
	assert.Equal(t, false, page["hasMore"])
}

func TestAPI_RunInProgressIsConflict(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.do(t, http.MethodPost, "/runs", `{"sources":["slow"]}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/runs", `{"sources":["a"]}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, cur := f.do(t, http.MethodGet, "/runs/current", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "running", cur["state"])

	_, health := f.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, "running", health["runState"])

	close(f.release)
	require.Eventually(t, func() bool { return f.coord.State() == model.RunIdle }, 5*time.Second, 10*time.Millisecond)

	_, cur = f.do(t, http.MethodGet, "/runs/current", "")
	assert.Equal(t, "idle", cur["state"])
}

func TestAPI_StatusUpdate(t *testing.T) {
	f := newFixture(t)
	f.runToCompletion(t, "")

	resp, l := f.do(t, http.MethodPost, "/jobs/1/status", `{"status":"applied"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "applied", l["status"])

	resp, l = f.do(t, http.MethodGet, "/jobs/1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "applied", l["status"])

	// Re-ingesting the same postings leaves the consumer-owned status alone.
	f.runToCompletion(t, "")
	_, l = f.do(t, http.MethodGet, "/jobs/1", "")
	assert.Equal(t, "applied", l["status"])
}

func TestAPI_ErrorMapping(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		method, path, body string
		want               int
	}{
		{http.MethodGet, "/jobs/99", "", http.StatusNotFound},
		{http.MethodGet, "/jobs/abc", "", http.StatusBadRequest},
		{http.MethodGet, "/jobs?skip=-1", "", http.StatusBadRequest},
		{http.MethodGet, "/jobs?limit=ten", "", http.StatusBadRequest},
		{http.MethodGet, "/jobs?status=hired", "", http.StatusBadRequest},
		{http.MethodPost, "/jobs/1/status", `{}`, http.StatusBadRequest},
		{http.MethodPost, "/jobs/99/status", `{"status":"viewed"}`, http.StatusNotFound},
		{http.MethodGet, "/runs/unknown", "", http.StatusNotFound},
		{http.MethodPost, "/runs", `{"resultsWanted":-5}`, http.StatusBadRequest},
		{http.MethodPost, "/runs", `not json`, http.StatusBadRequest},
		{http.MethodDelete, "/jobs/1", "", http.StatusMethodNotAllowed},
	}
	for _, c := range cases {
		resp, _ := f.do(t, c.method, c.path, c.body)
		assert.Equal(t, c.want, resp.StatusCode, fmt.Sprintf("%s %s", c.method, c.path))
	}
}

func TestAPI_RecentRuns(t *testing.T) {
	f := newFixture(t)
	first := f.runToCompletion(t, "")
	second := f.runToCompletion(t, "")

	resp, err := http.Get(f.srv.URL + "/runs?limit=5")
	require.NoError(t, err)
	defer resp.Body.Close()

	var runs []model.ScrapeRun
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&runs))
	require.Len(t, runs, 2)
	assert.Equal(t, second, runs[0].ID)
	assert.Equal(t, first, runs[1].ID)
}
