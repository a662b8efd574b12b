package redis

import (
	"bufio"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

type Config struct {
	Host     string
	Port     string
	Password string
	DB       int
}

func Connect(config Config, log zerolog.Logger) (*redis.Client, error) {
	addr := fmt.Sprintf("%s:%s", config.Host, config.Port)

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     20,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolTimeout:  4 * time.Second,
		IdleTimeout:  5 * time.Minute,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	info, err := client.Info(ctx, "server").Result()
	if err != nil {
		log.Warn().Err(err).Msg("failed to get Redis info")
	} else {
		log.Info().Str("addr", addr).Str("version", ParseInfo(info)["redis_version"]).Msg("redis connected")
	}

	return client, nil
}

var statsKeys = []string{
	"redis_version",
	"connected_clients",
	"used_memory_human",
	"total_commands_processed",
	"keyspace_hits",
	"keyspace_misses",
	"uptime_in_seconds",
}

// GetStats returns a subset of INFO fields for the stats endpoint.
func GetStats(ctx context.Context, client *redis.Client) (map[string]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	info, err := client.Info(ctx).Result()
	if err != nil {
		return nil, err
	}

	all := ParseInfo(info)
	stats := make(map[string]string, len(statsKeys))
	for _, key := range statsKeys {
		if value, ok := all[key]; ok {
			stats[key] = value
		}
	}
	return stats, nil
}

// ParseInfo turns INFO output into a map, skipping section headers.
func ParseInfo(info string) map[string]string {
	fields := make(map[string]string)
	scanner := bufio.NewScanner(strings.NewReader(info))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if key, value, found := strings.Cut(line, ":"); found {
			fields[key] = value
		}
	}
	return fields
}
