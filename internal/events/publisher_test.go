package events_test

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobmate/jobfeed-service/internal/events"
	"jobmate/jobfeed-service/internal/model"
)

func TestNop(t *testing.T) {
	var p events.Publisher = events.Nop{}
	assert.NoError(t, p.Publish(context.Background(), events.Event{Type: events.RunStarted}))
}

func TestEventPayload(t *testing.T) {
	e := events.Event{
		Type:  events.RunFinished,
		RunID: "r1",
		State: model.RunSucceeded,
		Stats: &model.RunStats{NewAdded: 2},
		At:    time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC),
	}
	data, err := json.Marshal(e)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "EVENT_SCRAPE_RUN_FINISHED", got["type"])
	assert.Equal(t, "succeeded", got["state"])
	assert.Equal(t, float64(2), got["stats"].(map[string]any)["newAdded"])
	assert.NotContains(t, got, "error")
}

func TestRedisPublisher(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	rdb := redis.NewClient(opts)
	defer rdb.Close()

	ctx := context.Background()
	sub := rdb.Subscribe(ctx, events.RunStarted)
	defer sub.Close()
	_, err = sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, events.NewRedisPublisher(rdb).Publish(ctx, events.Event{Type: events.RunStarted, RunID: "r1"}))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	assert.Contains(t, msg.Payload, `"runId":"r1"`)
}
