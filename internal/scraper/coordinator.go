package scraper

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"jobmate/jobfeed-service/internal/events"
	"jobmate/jobfeed-service/internal/ingest"
	"jobmate/jobfeed-service/internal/logger"
	"jobmate/jobfeed-service/internal/model"
)

var (
	// ErrRunInProgress rejects a run request while another run is active.
	// It is not a failure: the caller should retry later.
	ErrRunInProgress = errors.New("a scrape run is already in progress")
	ErrRunNotFound   = errors.New("scrape run not found")
)

// ValidationError wraps a user-facing message about bad run parameters.
type ValidationError struct{ Msg string }

func (e *ValidationError) Error() string { return e.Msg }

// Ingester is the part of ingest.Orchestrator the coordinator needs.
type Ingester interface {
	Ingest(ctx context.Context, raws []model.RawPosting, exclude ...ingest.Exclude) (model.IngestStats, error)
}

// RunHandle identifies a started run. Done is closed once the run is
// terminal and the coordinator is idle again.
type RunHandle struct {
	ID   string
	Done <-chan struct{}
}

type activeRun struct {
	run  *model.ScrapeRun
	done chan struct{}
}

// Coordinator runs at most one scrape at a time: it fans out to the
// requested adapters, tolerates per-adapter failures and ingests the
// combined postings as one batch.
type Coordinator struct {
	adapters  map[string]Adapter
	ingester  Ingester
	publisher events.Publisher
	log       *logger.Logger
	validate  *validator.Validate

	defaults       model.RunParams
	adapterTimeout time.Duration
	runTimeout     time.Duration
	historySize    int
	now            func() time.Time

	active atomic.Pointer[activeRun]

	mu      sync.RWMutex // guards every *ScrapeRun reachable from runs
	runs    map[string]*model.ScrapeRun
	history []string // run ids, oldest first
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithDefaults fills zero fields of every requested RunParams.
func WithDefaults(p model.RunParams) Option {
	return func(c *Coordinator) { c.defaults = p }
}

// WithTimeouts sets the per-adapter and the overall run timeout.
func WithTimeouts(adapter, run time.Duration) Option {
	return func(c *Coordinator) {
		if adapter > 0 {
			c.adapterTimeout = adapter
		}
		if run > 0 {
			c.runTimeout = run
		}
	}
}

// WithPublisher sets where run events go.
func WithPublisher(p events.Publisher) Option {
	return func(c *Coordinator) { c.publisher = p }
}

// WithHistory bounds how many finished runs stay queryable.
func WithHistory(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.historySize = n
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// NewCoordinator returns an idle coordinator over adapters, keyed by Name().
func NewCoordinator(ing Ingester, adapters []Adapter, log *logger.Logger, opts ...Option) *Coordinator {
	if log == nil {
		log = logger.Nop()
	}
	c := &Coordinator{
		adapters:       make(map[string]Adapter, len(adapters)),
		ingester:       ing,
		publisher:      events.Nop{},
		log:            log,
		validate:       validator.New(),
		adapterTimeout: 2 * time.Minute,
		runTimeout:     10 * time.Minute,
		historySize:    20,
		now:            time.Now,
		runs:           make(map[string]*model.ScrapeRun),
	}
	for _, a := range adapters {
		c.adapters[strings.ToLower(a.Name())] = a
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Sources lists the registered adapter names, sorted.
func (c *Coordinator) Sources() []string {
	out := make([]string, 0, len(c.adapters))
	for name := range c.adapters {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// StartRun validates p and starts a run in the background. It returns
// ErrRunInProgress when a run is already active. The run is detached from
// ctx: once started it completes even if the caller goes away.
func (c *Coordinator) StartRun(ctx context.Context, p model.RunParams) (RunHandle, error) {
	p = c.withDefaults(p)
	if err := c.validate.Struct(p); err != nil {
		return RunHandle{}, &ValidationError{Msg: fmt.Sprintf("invalid run params: %v", err)}
	}

	ar := &activeRun{
		run: &model.ScrapeRun{
			ID:        uuid.NewString(),
			State:     model.RunRunning,
			StartedAt: c.now().UTC(),
			Params:    p,
			Stats: model.RunStats{
				AdapterErrors: map[string]string{},
				Adapters:      map[string]model.AdapterStats{},
			},
		},
		done: make(chan struct{}),
	}
	if !c.active.CompareAndSwap(nil, ar) {
		return RunHandle{}, ErrRunInProgress
	}

	c.mu.Lock()
	c.remember(ar.run)
	c.mu.Unlock()

	c.log.Info().Str("run_id", ar.run.ID).Strs("sources", p.Sources).Msg("Scrape run started")
	c.publish(ctx, events.Event{Type: events.RunStarted, RunID: ar.run.ID, State: model.RunRunning})

	go c.execute(context.WithoutCancel(ctx), ar)
	return RunHandle{ID: ar.run.ID, Done: ar.done}, nil
}

func (c *Coordinator) withDefaults(p model.RunParams) model.RunParams {
	d := c.defaults
	if len(p.Sources) == 0 {
		p.Sources = d.Sources
	}
	if p.SearchTerm == "" {
		p.SearchTerm = d.SearchTerm
	}
	if p.Location == "" {
		p.Location = d.Location
	}
	if p.ResultsWanted == 0 {
		p.ResultsWanted = d.ResultsWanted
	}
	if p.HoursOld == 0 {
		p.HoursOld = d.HoursOld
	}
	if p.Country == "" {
		p.Country = d.Country
	}
	if p.RedFlags == nil {
		p.RedFlags = d.RedFlags
	}

	seen := make(map[string]struct{}, len(p.Sources))
	sources := make([]string, 0, len(p.Sources))
	for _, s := range p.Sources {
		s = strings.ToLower(strings.TrimSpace(s))
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		sources = append(sources, s)
	}
	p.Sources = sources
	p.RedFlags = append([]string(nil), p.RedFlags...)
	return p
}

// remember registers run and evicts the oldest finished runs beyond the
// history bound. Caller holds c.mu.
func (c *Coordinator) remember(run *model.ScrapeRun) {
	c.runs[run.ID] = run
	c.history = append(c.history, run.ID)
	for len(c.history) > c.historySize {
		oldest := c.runs[c.history[0]]
		if oldest != nil && !oldest.State.Terminal() {
			break
		}
		delete(c.runs, c.history[0])
		c.history = c.history[1:]
	}
}

type adapterResult struct {
	postings []model.RawPosting
	stats    model.AdapterStats
}

func (c *Coordinator) execute(ctx context.Context, ar *activeRun) {
	run := ar.run
	runCtx, cancel := context.WithTimeout(ctx, c.runTimeout)
	defer cancel()

	results := c.fanOut(runCtx, run)

	var batch []model.RawPosting
	for i, src := range run.Params.Sources {
		batch = append(batch, results[i].postings...)
		c.log.Debug().Str("run_id", run.ID).Str("source", src).Int("fetched", results[i].stats.Fetched).Msg("Adapter finished")
	}

	// Ingest runs on the detached context: a batch is never abandoned mid-way.
	stats, err := c.ingester.Ingest(ctx, batch, RedFlagFilter(run.Params.RedFlags))

	c.mu.Lock()
	finished := c.now().UTC()
	run.FinishedAt = &finished
	run.Stats.TotalFetched = len(batch)
	run.Stats.NewAdded = stats.Inserted
	run.Stats.DuplicatesSkipped = stats.Duplicates
	run.Stats.Invalid = stats.Invalid
	run.Stats.Filtered = stats.Filtered
	run.Stats.IngestErrors = stats.Errors
	if err != nil {
		run.State = model.RunFailed
		run.Error = err.Error()
	} else {
		run.State = model.RunSucceeded
	}
	snapshot := run.Clone()
	c.mu.Unlock()

	ev := c.log.Info()
	if err != nil {
		ev = c.log.Error().Err(err)
	}
	ev.Str("run_id", run.ID).
		Str("state", string(snapshot.State)).
		Int("fetched", snapshot.Stats.TotalFetched).
		Int("new", snapshot.Stats.NewAdded).
		Int("duplicates", snapshot.Stats.DuplicatesSkipped).
		Int("adapter_errors", len(snapshot.Stats.AdapterErrors)).
		Msg("Scrape run finished")

	c.publish(ctx, events.Event{
		Type:  events.RunFinished,
		RunID: run.ID,
		State: snapshot.State,
		Stats: &snapshot.Stats,
		Error: snapshot.Error,
	})

	c.active.CompareAndSwap(ar, nil)
	close(ar.done)
}

// fanOut calls every requested adapter concurrently and returns their
// results positionally. Failed adapters contribute no postings.
func (c *Coordinator) fanOut(ctx context.Context, run *model.ScrapeRun) []adapterResult {
	sources := run.Params.Sources
	params := run.Params.AdapterParams()
	results := make([]adapterResult, len(sources))

	var wg sync.WaitGroup
	for i, src := range sources {
		adapter, ok := c.adapters[src]
		if !ok {
			results[i].stats.Error = "unknown source"
			c.recordAdapter(run, src, results[i].stats)
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := c.now()
			postings, err := c.callAdapter(ctx, adapter, params)
			res := adapterResult{stats: model.AdapterStats{Duration: c.now().Sub(start)}}
			if err != nil {
				aerr := &AdapterError{Source: src, Err: err}
				res.stats.Error = err.Error()
				c.log.Warn().Err(aerr).Str("run_id", run.ID).Msg("Adapter failed, continuing with the others")
			} else {
				for _, p := range postings {
					if p.Source == "" {
						p.Source = src
					}
					res.postings = append(res.postings, p)
				}
				res.stats.Fetched = len(res.postings)
			}
			results[i] = res
			c.recordAdapter(run, src, res.stats)
		}()
	}
	wg.Wait()
	return results
}

// callAdapter bounds one Fetch by the adapter timeout, even for adapters
// that ignore ctx, and turns panics into errors.
func (c *Coordinator) callAdapter(ctx context.Context, a Adapter, p model.AdapterParams) ([]model.RawPosting, error) {
	ctx, cancel := context.WithTimeout(ctx, c.adapterTimeout)
	defer cancel()

	type fetchResult struct {
		postings []model.RawPosting
		err      error
	}
	ch := make(chan fetchResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- fetchResult{err: fmt.Errorf("adapter panicked: %v", r)}
			}
		}()
		postings, err := a.Fetch(ctx, p)
		ch <- fetchResult{postings: postings, err: err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return nil, r.err
		}
		if len(r.postings) == 0 {
			return nil, errors.New("adapter returned no postings")
		}
		return r.postings, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("adapter did not finish: %w", ctx.Err())
	}
}

func (c *Coordinator) recordAdapter(run *model.ScrapeRun, src string, s model.AdapterStats) {
	c.mu.Lock()
	defer c.mu.Unlock()
	run.Stats.Adapters[src] = s
	if s.Error != "" {
		run.Stats.AdapterErrors[src] = s.Error
	}
}

func (c *Coordinator) publish(ctx context.Context, e events.Event) {
	e.At = c.now().UTC()
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := c.publisher.Publish(ctx, e); err != nil {
		c.log.Warn().Err(err).Str("run_id", e.RunID).Msg("Publish run event failed")
	}
}

// RunStatus returns a snapshot of the run with the given id.
func (c *Coordinator) RunStatus(id string) (model.ScrapeRun, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	run, ok := c.runs[id]
	if !ok {
		return model.ScrapeRun{}, ErrRunNotFound
	}
	return run.Clone(), nil
}

// Wait blocks until the active run, if any, has finished or ctx is done.
func (c *Coordinator) Wait(ctx context.Context) error {
	ar := c.active.Load()
	if ar == nil {
		return nil
	}
	select {
	case <-ar.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Current returns the active run, if any.
func (c *Coordinator) Current() (model.ScrapeRun, bool) {
	ar := c.active.Load()
	if ar == nil {
		return model.ScrapeRun{}, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return ar.run.Clone(), true
}

// State is running while a run is active and idle otherwise.
func (c *Coordinator) State() model.RunState {
	if c.active.Load() != nil {
		return model.RunRunning
	}
	return model.RunIdle
}

// Recent returns up to n remembered runs, newest first.
func (c *Coordinator) Recent(n int) []model.ScrapeRun {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if n <= 0 || n > len(c.history) {
		n = len(c.history)
	}
	out := make([]model.ScrapeRun, 0, n)
	for i := len(c.history) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, c.runs[c.history[i]].Clone())
	}
	return out
}
