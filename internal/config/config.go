package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the relay. Values come from the
// environment; everything except the store URLs has a working default.
type Config struct {
	Port        string
	DatabaseURL string
	RedisURL    string
	NumWorkers  int

	// DeliveryTimeout bounds each outbound HTTP attempt so a slow endpoint
	// cannot starve a worker.
	DeliveryTimeout time.Duration

	// DedupWindow bounds duplicate dispatch for the same
	// (subscription, event, entity) combination.
	DedupWindow time.Duration

	// BackoffSchedule is the fixed delay table between consecutive retry
	// attempts, clamped to its last entry.
	BackoffSchedule []time.Duration

	// DefaultRetryBudget is applied to subscriptions created without an
	// explicit budget.
	DefaultRetryBudget int
}

const defaultBackoff = "1s,2s,4s,8s,16s"

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("NUM_WORKERS", 50)
	v.SetDefault("DELIVERY_TIMEOUT", "10s")
	v.SetDefault("DEDUP_WINDOW", "60s")
	v.SetDefault("BACKOFF_SCHEDULE", defaultBackoff)
	v.SetDefault("DEFAULT_RETRY_BUDGET", 5)

	cfg := &Config{
		Port:               v.GetString("PORT"),
		DatabaseURL:        v.GetString("DATABASE_URL"),
		RedisURL:           v.GetString("REDIS_URL"),
		NumWorkers:         v.GetInt("NUM_WORKERS"),
		DeliveryTimeout:    v.GetDuration("DELIVERY_TIMEOUT"),
		DedupWindow:        v.GetDuration("DEDUP_WINDOW"),
		DefaultRetryBudget: v.GetInt("DEFAULT_RETRY_BUDGET"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}
	if cfg.NumWorkers < 1 {
		return nil, fmt.Errorf("NUM_WORKERS must be >= 1")
	}
	if cfg.DefaultRetryBudget < 1 {
		return nil, fmt.Errorf("DEFAULT_RETRY_BUDGET must be >= 1")
	}
	if cfg.DeliveryTimeout <= 0 {
		return nil, fmt.Errorf("DELIVERY_TIMEOUT must be positive")
	}
	if cfg.DedupWindow <= 0 {
		return nil, fmt.Errorf("DEDUP_WINDOW must be positive")
	}

	schedule, err := parseSchedule(v.GetString("BACKOFF_SCHEDULE"))
	if err != nil {
		return nil, fmt.Errorf("parsing BACKOFF_SCHEDULE: %w", err)
	}
	cfg.BackoffSchedule = schedule

	return cfg, nil
}

// parseSchedule parses a comma-separated list of durations ("1s,2s,4s").
func parseSchedule(raw string) ([]time.Duration, error) {
	parts := strings.Split(raw, ",")
	schedule := make([]time.Duration, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		d, err := time.ParseDuration(p)
		if err != nil {
			return nil, fmt.Errorf("invalid delay %q: %w", p, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("delay %q must be positive", p)
		}
		schedule = append(schedule, d)
	}
	if len(schedule) == 0 {
		return nil, fmt.Errorf("schedule is empty")
	}
	return schedule, nil
}
