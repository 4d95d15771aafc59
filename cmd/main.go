// jobfeed-service
//
// Aggregates job postings from external boards, dedups them into a durable
// listing store and serves filtered, paginated views over it.
//   - POST /runs starts a scrape run (one at a time)
//   - GET /jobs lists listings by title, location, source and status
//   - a cron trigger starts runs every SCRAPE_INTERVAL_HOURS
//
// Publishes EVENT_SCRAPE_RUN_STARTED / EVENT_SCRAPE_RUN_FINISHED to Redis.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"jobmate/jobfeed-service/internal/api"
	"jobmate/jobfeed-service/internal/cache"
	"jobmate/jobfeed-service/internal/config"
	"jobmate/jobfeed-service/internal/db"
	"jobmate/jobfeed-service/internal/events"
	"jobmate/jobfeed-service/internal/ingest"
	"jobmate/jobfeed-service/internal/logger"
	"jobmate/jobfeed-service/internal/normalize"
	"jobmate/jobfeed-service/internal/query"
	"jobmate/jobfeed-service/internal/scheduler"
	"jobmate/jobfeed-service/internal/scraper"
	"jobmate/jobfeed-service/internal/store"
)

const version = "1.0.0"

func main() {
	log := logger.New("jobfeed-service")

	// ── Config ──────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Config error")
	}
	log = logger.NewWithConfig("jobfeed-service", logger.Config{AppEnv: cfg.AppEnv})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Listing store ───────────────────────────────────────────────────────
	st, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("Listing store")
	}
	defer closeStore()

	// ── Redis (optional) ────────────────────────────────────────────────────
	var (
		rdb       *redis.Client
		publisher events.Publisher = events.Nop{}
	)
	if cfg.RedisURL != "" {
		log.Info().Msg("Connecting to Redis…")
		rdb, err = db.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Redis")
		}
		defer rdb.Close()
		publisher = events.NewRedisPublisher(rdb)
		log.Info().Msg("Redis connected ✓")
	}

	// ── Pipeline ────────────────────────────────────────────────────────────
	adzuna := scraper.NewAdzuna(cfg.AdzunaAppID, cfg.AdzunaAppKey, cfg.AdzunaCountry, log.With("adzuna"))
	adapters := []scraper.Adapter{
		cache.Wrap(adzuna, rdb, cfg.AdapterCacheTTL, log.With("cache")),
	}

	names := make([]string, 0, len(adapters))
	for _, a := range adapters {
		names = append(names, a.Name())
	}
	orchestrator := ingest.New(st, normalize.New(normalize.WithSources(names...)), log.With("ingest"))

	coord := scraper.NewCoordinator(orchestrator, adapters, log.With("coordinator"),
		scraper.WithDefaults(cfg.RunDefaults()),
		scraper.WithTimeouts(cfg.AdapterTimeout, cfg.RunTimeout),
		scraper.WithPublisher(publisher),
	)

	// ── Scheduler ───────────────────────────────────────────────────────────
	var sched *scheduler.Scheduler
	if cfg.ScrapeIntervalHours > 0 {
		sched = scheduler.New(coord, cfg.RunDefaults(), cfg.ScrapeIntervalHours, log.With("scheduler"))
		if err := sched.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("Scheduler")
		}
	} else {
		log.Info().Msg("SCRAPE_INTERVAL_HOURS=0, cron trigger disabled")
	}

	// ── HTTP server ─────────────────────────────────────────────────────────
	mux := http.NewServeMux()
	api.NewHandler(query.NewService(st, cfg.QueryMaxLimit), coord, log.With("api"), version).RegisterRoutes(mux)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("version", version).Str("port", cfg.Port).Msg("Listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	// ── Graceful shutdown ───────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down…")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Shutdown error")
	}
	if sched != nil {
		sched.Stop()
	}
	// The store closes on return, so an ingest batch in flight finishes first.
	if run, ok := coord.Current(); ok {
		log.Info().Str("run_id", run.ID).Msg("Waiting for scrape run to finish…")
		if err := coord.Wait(shutdownCtx); err != nil {
			log.Warn().Err(err).Str("run_id", run.ID).Msg("Scrape run still in progress at shutdown")
		}
	}
	log.Info().Msg("Stopped.")
}

// openStore opens the configured backend. The returned func releases it.
func openStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (store.Store, func(), error) {
	switch cfg.StoreDriver {
	case config.DriverBadger:
		log.Info().Str("path", cfg.BadgerPath).Msg("Opening Badger store…")
		b, err := store.OpenBadger(cfg.BadgerPath, log.With("badger"))
		if err != nil {
			return nil, nil, err
		}
		return b, func() { _ = b.Close() }, nil

	default:
		log.Info().Msg("Connecting to PostgreSQL…")
		pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL, db.PoolOptions{PingTimeout: cfg.StoreTimeout})
		if err != nil {
			return nil, nil, err
		}
		p, err := store.NewPostgres(ctx, pool, cfg.StoreTimeout, log.With("postgres"))
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		log.Info().Msg("PostgreSQL connected ✓")
		return p, pool.Close, nil
	}
}
