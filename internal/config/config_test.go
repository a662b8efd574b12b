package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.App.Port)
	assert.Equal(t, "sqlite", cfg.DB.Driver)
	assert.Equal(t, "https://api.nasa.gov", cfg.NASA.BaseURL)
	assert.Equal(t, 7, cfg.NASA.FeedWindowDays)
	assert.Equal(t, "0 0 * * *", cfg.Workers.CleanupSchedule)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("FEED_WINDOW_DAYS", "3")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("WORKER_REFRESH_INTERVAL", "15m")

	cfg := Load()

	assert.Equal(t, "9090", cfg.App.Port)
	assert.Equal(t, "postgres", cfg.DB.Driver)
	assert.Equal(t, 3, cfg.NASA.FeedWindowDays)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 15*time.Minute, cfg.Workers.RefreshInterval)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("FEED_WINDOW_DAYS", "seven")
	t.Setenv("DEBUG", "maybe")
	t.Setenv("NASA_TIMEOUT", "soon")

	cfg := Load()

	assert.Equal(t, 7, cfg.NASA.FeedWindowDays)
	assert.False(t, cfg.App.Debug)
	assert.Equal(t, 30*time.Second, cfg.NASA.Timeout)
}
