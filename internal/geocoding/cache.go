package geocoding

import (
	"context"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Cache stores resolved display names. Misses and failures are not errors.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string, ttl time.Duration)
}

const maxMemoryEntries = 10000

type memoryEntry struct {
	value   string
	expires time.Time
}

type memoryCache struct {
	mu    sync.Mutex
	items map[string]memoryEntry
	limit int
	now   func() time.Time
}

// NewMemoryCache is used when no redis is configured.
func NewMemoryCache() Cache {
	return &memoryCache{items: make(map[string]memoryEntry), limit: maxMemoryEntries, now: time.Now}
}

func (c *memoryCache) Get(_ context.Context, key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.items[key]
	if !ok {
		return "", false
	}
	if c.now().After(e.expires) {
		delete(c.items, key)
		return "", false
	}
	return e.value, true
}

func (c *memoryCache) Set(_ context.Context, key, value string, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if _, ok := c.items[key]; !ok && len(c.items) >= c.limit {
		c.evict(now)
	}
	c.items[key] = memoryEntry{value: value, expires: now.Add(ttl)}
}

// evict drops expired entries, or the one closest to expiry when none are.
func (c *memoryCache) evict(now time.Time) {
	var (
		oldest   string
		oldestAt time.Time
	)
	for k, e := range c.items {
		if now.After(e.expires) {
			delete(c.items, k)
			continue
		}
		if oldest == "" || e.expires.Before(oldestAt) {
			oldest, oldestAt = k, e.expires
		}
	}
	if len(c.items) >= c.limit && oldest != "" {
		delete(c.items, oldest)
	}
}

type redisCache struct {
	rdb    *goredis.Client
	prefix string
}

// NewRedisCache shares reverse geocode results across instances.
func NewRedisCache(rdb *goredis.Client) Cache {
	return &redisCache{rdb: rdb, prefix: "jammr:geocode:"}
}

func (c *redisCache) Get(ctx context.Context, key string) (string, bool) {
	v, err := c.rdb.Get(ctx, c.prefix+key).Result()
	if err != nil {
		return "", false
	}
	return v, true
}

func (c *redisCache) Set(ctx context.Context, key, value string, ttl time.Duration) {
	_ = c.rdb.Set(ctx, c.prefix+key, value, ttl).Err()
}
