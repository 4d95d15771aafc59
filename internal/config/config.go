// Package config loads and validates configuration at startup.
// Fail-fast: if a required variable is missing or malformed, Load returns an
// error and the process exits.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"jobmate/jobfeed-service/internal/model"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverBadger   = "badger"
)

// JobPreferences is the job_preferences block of the optional YAML file.
// It supplies the parameters of scheduled runs and the defaults of manual ones.
type JobPreferences struct {
	DesiredRoles    []string `yaml:"desired_roles"`
	TargetLocations []string `yaml:"target_locations"`
	SitesToScrape   []string `yaml:"sites_to_scrape" validate:"min=1,dive,required"`
	ResultsWanted   int      `yaml:"results_wanted" validate:"min=1,max=1000"`
	HoursOld        int      `yaml:"hours_old" validate:"min=0"`
	RedFlags        []string `yaml:"red_flags"`
}

type file struct {
	JobPreferences JobPreferences `yaml:"job_preferences"`
}

// Config holds all runtime configuration for the job feed service.
// RedisURL is optional: run events and the adapter cache are off without it.
// ScrapeIntervalHours of 0 disables the cron trigger. AdzunaCountry is the
// API country code, e.g. "fr", "gb", "us".
type Config struct {
	AppEnv              string
	Port                string
	StoreDriver         string `validate:"oneof=postgres badger"`
	DatabaseURL         string `validate:"required_if=StoreDriver postgres"`
	BadgerPath          string `validate:"required_if=StoreDriver badger"`
	RedisURL            string
	ScrapeIntervalHours int           `validate:"min=0"`
	AdapterTimeout      time.Duration `validate:"gt=0"`
	RunTimeout          time.Duration `validate:"gtefield=AdapterTimeout"`
	StoreTimeout        time.Duration `validate:"gt=0"`
	QueryMaxLimit       int           `validate:"min=1,max=1000"`
	AdapterCacheTTL     time.Duration `validate:"min=0"`
	AdzunaAppID         string
	AdzunaAppKey        string
	AdzunaCountry       string
	Preferences         JobPreferences
}

// DefaultPreferences are used when CONFIG_FILE is unset or omits a field.
func DefaultPreferences() JobPreferences {
	return JobPreferences{
		SitesToScrape: []string{"adzuna"},
		ResultsWanted: 10,
		HoursOld:      72,
	}
}

// Load reads environment variables (and CONFIG_FILE when set) and returns a
// validated Config.
func Load() (*Config, error) {
	cfg := &Config{
		AppEnv:        getenv("APP_ENV", "development"),
		Port:          getenv("LISTING_PORT", "8083"),
		StoreDriver:   getenv("STORE_DRIVER", DriverPostgres),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		BadgerPath:    getenv("BADGER_PATH", "./data/listings"),
		RedisURL:      os.Getenv("REDIS_URL"),
		AdzunaAppID:   os.Getenv("ADZUNA_APP_ID"),
		AdzunaAppKey:  os.Getenv("ADZUNA_APP_KEY"),
		AdzunaCountry: getenv("ADZUNA_COUNTRY", "fr"),
	}

	var err error
	if cfg.ScrapeIntervalHours, err = intEnv("SCRAPE_INTERVAL_HOURS", 6); err != nil {
		return nil, err
	}
	if cfg.QueryMaxLimit, err = intEnv("QUERY_MAX_LIMIT", 100); err != nil {
		return nil, err
	}
	if cfg.AdapterTimeout, err = durationEnv("ADAPTER_TIMEOUT", 2*time.Minute); err != nil {
		return nil, err
	}
	if cfg.RunTimeout, err = durationEnv("RUN_TIMEOUT", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.StoreTimeout, err = durationEnv("STORE_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.AdapterCacheTTL, err = durationEnv("ADAPTER_CACHE_TTL", 0); err != nil {
		return nil, err
	}

	cfg.Preferences = DefaultPreferences()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if cfg.Preferences, err = loadPreferences(path); err != nil {
			return nil, err
		}
	}

	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadPreferences reads the job_preferences block of a YAML file on top of
// DefaultPreferences.
func loadPreferences(path string) (JobPreferences, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return JobPreferences{}, fmt.Errorf("read CONFIG_FILE: %w", err)
	}
	f := file{JobPreferences: DefaultPreferences()}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return JobPreferences{}, fmt.Errorf("parse CONFIG_FILE %s: %w", path, err)
	}
	return f.JobPreferences, nil
}

// RunDefaults turns the preferences into the parameters of scheduled runs.
// Only the first desired role and target location are searched.
func (c *Config) RunDefaults() model.RunParams {
	p := c.Preferences
	params := model.RunParams{
		Sources:       append([]string(nil), p.SitesToScrape...),
		ResultsWanted: p.ResultsWanted,
		HoursOld:      p.HoursOld,
		Country:       c.AdzunaCountry,
		RedFlags:      append([]string(nil), p.RedFlags...),
	}
	if len(p.DesiredRoles) > 0 {
		params.SearchTerm = p.DesiredRoles[0]
	}
	if len(p.TargetLocations) > 0 {
		params.Location = p.TargetLocations[0]
	}
	return params
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intEnv(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer, got %q", key, s)
	}
	return v, nil
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%s must be a duration like 30s or 2m, got %q", key, s)
	}
	return d, nil
}
