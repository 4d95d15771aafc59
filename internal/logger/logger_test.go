package logger_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobmate/jobfeed-service/internal/logger"
)

func TestConsoleFormatPrefixesComponent(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithConfig("coordinator", logger.Config{AppEnv: "development", Out: &buf})

	log.Info().Msg("Scrape run started")
	assert.Contains(t, buf.String(), "[coordinator] Scrape run started")
}

func TestProductionWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithConfig("ingest", logger.Config{AppEnv: "production", Out: &buf})

	log.Info().Int("inserted", 3).Msg("Batch ingested")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "ingest", line["component"])
	assert.Equal(t, float64(3), line["inserted"])

	buf.Reset()
	log.Debug().Msg("hidden")
	assert.Empty(t, buf.String(), "debug is off in production")
}

func TestWithNamesSubComponent(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithConfig("jobfeed-service", logger.Config{AppEnv: "production", Out: &buf}).With("adzuna")

	assert.Equal(t, "jobfeed-service.adzuna", log.Component())
	log.Warn().Msg("Adapter failed")
	assert.True(t, strings.Contains(buf.String(), `"sub":"adzuna"`), buf.String())
}

func TestNopDiscards(t *testing.T) {
	log := logger.Nop()
	log.Error().Msg("nothing")
	assert.Equal(t, "nop", log.Component())
}
