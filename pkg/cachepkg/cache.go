// Package cachepkg provides a JSON view cache on top of Redis.
package cachepkg

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// NewClient connects to Redis and checks the connection.
func NewClient(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}

	return client, nil
}

// ViewCache is a JSON-backed Redis cache bound to a view type T.
//
// Every key has a version that Delete advances. Get reports the version it saw and
// Set only writes when the key has not been deleted since, so a value loaded before
// an invalidation cannot be cached after it. Versions are kept per process.
//
// A zero ttl stores keys without expiration.
type ViewCache[T any] struct {
	client *goredis.Client
	ttl    time.Duration

	mu       sync.Mutex
	versions map[string]uint64
}

// NewViewCache creates a ViewCache backed by the provided Redis client.
func NewViewCache[T any](client *goredis.Client, ttl time.Duration) *ViewCache[T] {
	return &ViewCache[T]{client: client, ttl: ttl, versions: make(map[string]uint64)}
}

func (c *ViewCache[T]) version(key string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.versions[key]
}

// Get returns the cached value and the key version observed before the read.
// The value is (nil, false) on any miss or decoding error.
func (c *ViewCache[T]) Get(ctx context.Context, key string) (*T, uint64, bool) {
	version := c.version(key)

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != goredis.Nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("cache read failed")
		}

		return nil, version, false
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("cache entry is corrupted")
		return nil, version, false
	}

	return &v, version, true
}

// Set stores value under key unless the key was deleted after version was observed.
// Write errors are logged and otherwise ignored.
func (c *ViewCache[T]) Set(ctx context.Context, key string, value *T, version uint64) {
	data, err := json.Marshal(value)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("cache marshal failed")
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.versions[key] != version {
		zerolog.Ctx(ctx).Debug().Str("key", key).Msg("cache write skipped, entry was invalidated")
		return
	}

	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}

// Delete removes keys from Redis and advances their versions.
func (c *ViewCache[T]) Delete(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, key := range keys {
		c.versions[key]++
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Strs("keys", keys).Msg("cache delete failed")
	}
}

// NopCache never stores anything. It is used when no Redis is configured.
type NopCache[T any] struct{}

// Get always misses.
func (NopCache[T]) Get(context.Context, string) (*T, uint64, bool) { return nil, 0, false }

// Set does nothing.
func (NopCache[T]) Set(context.Context, string, *T, uint64) {}

// Delete does nothing.
func (NopCache[T]) Delete(context.Context, ...string) {}
