package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/relay")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 50, cfg.NumWorkers)
	assert.Equal(t, 10*time.Second, cfg.DeliveryTimeout)
	assert.Equal(t, 60*time.Second, cfg.DedupWindow)
	assert.Equal(t, 5, cfg.DefaultRetryBudget)
	assert.Equal(t, []time.Duration{
		1 * time.Second, 2 * time.Second, 4 * time.Second,
		8 * time.Second, 16 * time.Second,
	}, cfg.BackoffSchedule)
}

func TestLoad_EnvOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("NUM_WORKERS", "8")
	t.Setenv("DELIVERY_TIMEOUT", "3s")
	t.Setenv("DEDUP_WINDOW", "2m")
	t.Setenv("DEFAULT_RETRY_BUDGET", "3")
	t.Setenv("BACKOFF_SCHEDULE", "500ms,1s,5s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 8, cfg.NumWorkers)
	assert.Equal(t, 3*time.Second, cfg.DeliveryTimeout)
	assert.Equal(t, 2*time.Minute, cfg.DedupWindow)
	assert.Equal(t, 3, cfg.DefaultRetryBudget)
	assert.Equal(t, []time.Duration{500 * time.Millisecond, 1 * time.Second, 5 * time.Second},
		cfg.BackoffSchedule)
}

func TestLoad_MissingDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestLoad_MissingRedisURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/relay")
	t.Setenv("REDIS_URL", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REDIS_URL")
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"zero workers", "NUM_WORKERS", "0"},
		{"zero retry budget", "DEFAULT_RETRY_BUDGET", "0"},
		{"zero delivery timeout", "DELIVERY_TIMEOUT", "0"},
		{"zero dedup window", "DEDUP_WINDOW", "0"},
		{"garbage backoff schedule", "BACKOFF_SCHEDULE", "1s,soon,4s"},
		{"negative backoff delay", "BACKOFF_SCHEDULE", "1s,-2s"},
		{"empty backoff schedule", "BACKOFF_SCHEDULE", " , , "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
		})
	}
}

func TestParseSchedule(t *testing.T) {
	got, err := parseSchedule("1s, 2s ,4s")
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}, got)
}
