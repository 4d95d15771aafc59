// Package cache memoizes adapter results in Redis so repeated runs with the
// same parameters don't hit the job boards again within the TTL.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"jobmate/jobfeed-service/internal/logger"
	"jobmate/jobfeed-service/internal/model"
	"jobmate/jobfeed-service/internal/scraper"
)

// Adapter wraps a scraper.Adapter with a Redis read-through cache. Cache
// failures are logged and fall through to the wrapped adapter.
type Adapter struct {
	next scraper.Adapter
	rdb  *redis.Client
	ttl  time.Duration
	log  *logger.Logger
}

// Wrap returns next unchanged when rdb is nil or ttl is not positive.
func Wrap(next scraper.Adapter, rdb *redis.Client, ttl time.Duration, log *logger.Logger) scraper.Adapter {
	if rdb == nil || ttl <= 0 {
		return next
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Adapter{next: next, rdb: rdb, ttl: ttl, log: log}
}

// Name implements scraper.Adapter.
func (a *Adapter) Name() string { return a.next.Name() }

// Fetch implements scraper.Adapter.
func (a *Adapter) Fetch(ctx context.Context, p model.AdapterParams) ([]model.RawPosting, error) {
	key := buildKey(a.next.Name(), p)

	if data, err := a.rdb.Get(ctx, key).Bytes(); err == nil {
		var postings []model.RawPosting
		if err := json.Unmarshal(data, &postings); err == nil {
			a.log.Debug().Str("source", a.Name()).Int("postings", len(postings)).Msg("Cache hit")
			return postings, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		a.log.Warn().Err(err).Str("source", a.Name()).Msg("Cache read failed")
	}

	postings, err := a.next.Fetch(ctx, p)
	if err != nil || len(postings) == 0 {
		return postings, err
	}

	data, err := json.Marshal(postings)
	if err != nil {
		a.log.Warn().Err(err).Str("source", a.Name()).Msg("Cache marshal failed")
		return postings, nil
	}
	if err := a.rdb.Set(ctx, key, data, a.ttl).Err(); err != nil {
		a.log.Warn().Err(err).Str("source", a.Name()).Msg("Cache write failed")
	}
	return postings, nil
}

func buildKey(source string, p model.AdapterParams) string {
	raw := strings.ToLower(strings.Join([]string{
		source, p.SearchTerm, p.Location, p.Country,
		strconv.Itoa(p.ResultsWanted), strconv.Itoa(p.HoursOld),
	}, ":"))
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("jobfeed:%s:%x", strings.ToLower(source), hash[:8])
}
