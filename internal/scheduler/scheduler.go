// Package scheduler wires up the cron job that periodically triggers a
// scrape run with the configured default parameters.
package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"

	"jobmate/jobfeed-service/internal/logger"
	"jobmate/jobfeed-service/internal/model"
	"jobmate/jobfeed-service/internal/scraper"
)

// Trigger starts runs. *scraper.Coordinator satisfies it.
type Trigger interface {
	StartRun(ctx context.Context, p model.RunParams) (scraper.RunHandle, error)
}

// Scheduler wraps robfig/cron and manages the scrape loop.
type Scheduler struct {
	cron    *cron.Cron
	trigger Trigger
	params  model.RunParams
	spec    string // cron spec, e.g. "@every 6h"
	log     *logger.Logger
}

// New creates a Scheduler that fires every intervalHours hours.
func New(trigger Trigger, params model.RunParams, intervalHours int, log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.Nop()
	}
	return &Scheduler{
		cron:    cron.New(),
		trigger: trigger,
		params:  params,
		spec:    fmt.Sprintf("@every %dh", intervalHours),
		log:     log,
	}
}

// Spec returns the cron expression the scheduler registers.
func (s *Scheduler) Spec() string { return s.spec }

// Start registers the job and starts the scheduler. Also triggers one run
// immediately so the feed is populated without waiting for the first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.Tick(ctx) }); err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	s.cron.Start()
	s.log.Info().Str("spec", s.spec).Msg("Cron started")

	go s.Tick(ctx)
	return nil
}

// Stop halts the scheduler and waits for a running tick to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info().Msg("Cron stopped")
}

// Tick starts one run. A run already in progress is not an error: the tick
// is skipped.
func (s *Scheduler) Tick(ctx context.Context) {
	h, err := s.trigger.StartRun(ctx, s.params)
	switch {
	case errors.Is(err, scraper.ErrRunInProgress):
		s.log.Info().Msg("Scrape run already in progress, skipping tick")
	case err != nil:
		s.log.Error().Err(err).Msg("Scheduled scrape run failed to start")
	default:
		s.log.Info().Str("run_id", h.ID).Msg("Scheduled scrape run started")
	}
}
