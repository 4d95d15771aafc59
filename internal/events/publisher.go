// Package events publishes scrape run lifecycle events on Redis pub/sub so
// other services can react to fresh listings.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"jobmate/jobfeed-service/internal/model"
)

// Event types. Each type is also the Redis channel it is published on.
const (
	RunStarted  = "EVENT_SCRAPE_RUN_STARTED"
	RunFinished = "EVENT_SCRAPE_RUN_FINISHED"
)

// Event is the JSON payload of a run notification.
type Event struct {
	Type  string          `json:"type"`
	RunID string          `json:"runId"`
	State model.RunState  `json:"state"`
	Stats *model.RunStats `json:"stats,omitempty"`
	Error string          `json:"error,omitempty"`
	At    time.Time       `json:"at"`
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// RedisPublisher publishes events with PUBLISH on a channel named after the
// event type.
type RedisPublisher struct {
	rdb *redis.Client
}

// NewRedisPublisher returns a publisher over rdb.
func NewRedisPublisher(rdb *redis.Client) *RedisPublisher {
	return &RedisPublisher{rdb: rdb}
}

// Publish implements Publisher.
func (p *RedisPublisher) Publish(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", e.Type, err)
	}
	if err := p.rdb.Publish(ctx, e.Type, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", e.Type, err)
	}
	return nil
}

// Nop drops every event. Used when REDIS_URL is not configured.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, Event) error { return nil }
