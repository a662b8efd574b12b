package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	App struct {
		Port        string
		Debug       bool
		FrontendURL string
		LogLevel    string
	}
	DB struct {
		Driver   string
		Path     string
		Host     string
		Port     string
		User     string
		Password string
		DBName   string
		SSLMode  string
	}
	Redis struct {
		Enabled  bool
		Host     string
		Port     string
		Password string
		DB       int
	}
	Cache struct {
		Size int
		TTL  time.Duration
	}
	NASA struct {
		APIKey         string
		BaseURL        string
		Timeout        time.Duration
		FeedWindowDays int
	}
	Workers struct {
		RefreshEnabled     bool
		RefreshInterval    time.Duration
		CleanupEnabled     bool
		CleanupSchedule    string
		RefreshMinInterval time.Duration
		SnapshotRetention  time.Duration
	}
	RateLimit struct {
		RequestsPerSecond int
		Burst             int
	}
}

func Load() *Config {
	cfg := &Config{}

	// App
	cfg.App.Port = getEnv("PORT", "8080")
	cfg.App.Debug = getEnvAsBool("DEBUG", false)
	cfg.App.FrontendURL = getEnv("FRONTEND_URL", "http://localhost:3000")
	cfg.App.LogLevel = getEnv("LOG_LEVEL", "info")

	// DB
	cfg.DB.Driver = getEnv("DB_DRIVER", "sqlite")
	cfg.DB.Path = getEnv("DB_PATH", "./data/asteroids.db")
	cfg.DB.Host = getEnv("DB_HOST", "localhost")
	cfg.DB.Port = getEnv("DB_PORT", "5432")
	cfg.DB.User = getEnv("DB_USER", "postgres")
	cfg.DB.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.DB.DBName = getEnv("DB_NAME", "asteroids")
	cfg.DB.SSLMode = getEnv("DB_SSLMODE", "disable")

	// Redis
	cfg.Redis.Enabled = getEnvAsBool("REDIS_ENABLED", false)
	cfg.Redis.Host = getEnv("REDIS_HOST", "localhost")
	cfg.Redis.Port = getEnv("REDIS_PORT", "6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvAsInt("REDIS_DB", 0)

	// In-process cache, used when Redis is off
	cfg.Cache.Size = getEnvAsInt("CACHE_SIZE", 256)
	cfg.Cache.TTL = getEnvAsDuration("CACHE_TTL", 48*time.Hour)

	// NASA
	cfg.NASA.APIKey = getEnv("NASA_API_KEY", "DEMO_KEY")
	cfg.NASA.BaseURL = getEnv("NASA_BASE_URL", "https://api.nasa.gov")
	cfg.NASA.Timeout = getEnvAsDuration("NASA_TIMEOUT", 30*time.Second)
	cfg.NASA.FeedWindowDays = getEnvAsInt("FEED_WINDOW_DAYS", 7)

	// Workers
	cfg.Workers.RefreshEnabled = getEnvAsBool("WORKER_REFRESH_ENABLED", true)
	cfg.Workers.RefreshInterval = getEnvAsDuration("WORKER_REFRESH_INTERVAL", 6*time.Hour)
	cfg.Workers.CleanupEnabled = getEnvAsBool("WORKER_CLEANUP_ENABLED", true)
	cfg.Workers.CleanupSchedule = getEnv("WORKER_CLEANUP_SCHEDULE", "0 0 * * *")
	cfg.Workers.RefreshMinInterval = getEnvAsDuration("REFRESH_MIN_INTERVAL", 10*time.Minute)
	cfg.Workers.SnapshotRetention = getEnvAsDuration("SNAPSHOT_RETENTION", 72*time.Hour)

	// Rate Limit
	cfg.RateLimit.RequestsPerSecond = getEnvAsInt("RATE_LIMIT_RPS", 10)
	cfg.RateLimit.Burst = getEnvAsInt("RATE_LIMIT_BURST", 20)

	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if dur, err := time.ParseDuration(value); err == nil {
			return dur
		}
	}
	return defaultValue
}
