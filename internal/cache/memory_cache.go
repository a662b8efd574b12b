package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const backendMemory = "memory"

type memoryEntry struct {
	value     string
	expiresAt time.Time // zero means the LRU ttl alone applies
}

// memoryCache is the in-process fallback used when Redis is disabled.
// The LRU ttl bounds every entry; a shorter per-key expiration is checked on read.
type memoryCache struct {
	mu    sync.Mutex
	lru   *expirable.LRU[string, memoryEntry]
	clock func() time.Time
}

func NewMemoryCache(size int, ttl time.Duration) Cache {
	return newMemoryCache(size, ttl, time.Now)
}

func newMemoryCache(size int, ttl time.Duration, clock func() time.Time) *memoryCache {
	if size <= 0 {
		size = 256
	}
	return &memoryCache{
		lru:   expirable.NewLRU[string, memoryEntry](size, nil, ttl),
		clock: clock,
	}
}

// lookup must be called with mu held.
func (c *memoryCache) lookup(key string) (string, bool) {
	entry, ok := c.lru.Get(key)
	if ok && !entry.expiresAt.IsZero() && !c.clock().Before(entry.expiresAt) {
		c.lru.Remove(key)
		ok = false
	}
	if !ok {
		cacheMissesTotal.WithLabelValues(backendMemory).Inc()
		return "", false
	}
	cacheHitsTotal.WithLabelValues(backendMemory).Inc()
	return entry.value, true
}

// store must be called with mu held.
func (c *memoryCache) store(key, value string, expiration time.Duration) {
	entry := memoryEntry{value: value}
	if expiration > 0 {
		entry.expiresAt = c.clock().Add(expiration)
	}
	c.lru.Add(key, entry)
}

func (c *memoryCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	val, _ := c.lookup(key)
	return val, nil
}

func (c *memoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	encoded, err := encode(value)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.store(key, encoded, expiration)
	return nil
}

func (c *memoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Remove(key)
	return nil
}

// Increment follows Redis INCR: a missing key counts from zero and keeps no expiration.
func (c *memoryCache) Increment(_ context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var n int64
	if val, ok := c.lookup(key); ok {
		parsed, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("value of %q is not an integer", key)
		}
		n = parsed
	}
	n++

	entry, _ := c.lru.Peek(key)
	entry.value = strconv.FormatInt(n, 10)
	c.lru.Add(key, entry)
	return n, nil
}

func (c *memoryCache) GetJSON(ctx context.Context, key string, dest interface{}) error {
	val, err := c.Get(ctx, key)
	if err != nil || val == "" {
		return err
	}
	return json.Unmarshal([]byte(val), dest)
}

func (c *memoryCache) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return c.Set(ctx, key, data, expiration)
}
