package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/agencypulse/crosssell-intelligence/internal/infrastructure/monitoring/logging"
	"github.com/agencypulse/crosssell-intelligence/pkg/errors"
)

// ErrCacheMiss is returned by Get when the key is absent.
var ErrCacheMiss = errors.New(errors.CodeNotFound, "cache miss")

// Cache is the JSON-over-Redis cache used for dashboard snapshots.  Loads
// through GetOrSet are deduplicated with singleflight so a cold key triggers
// exactly one loader call regardless of concurrent readers.
type Cache struct {
	client     *Client
	logger     logging.Logger
	prefix     string
	defaultTTL time.Duration
	group      singleflight.Group
}

// CacheOption mutates Cache construction parameters.
type CacheOption func(*Cache)

// WithPrefix overrides the key namespace prefix.
func WithPrefix(prefix string) CacheOption {
	return func(c *Cache) { c.prefix = prefix }
}

// WithDefaultTTL overrides the TTL applied when Set receives ttl 0.
func WithDefaultTTL(ttl time.Duration) CacheOption {
	return func(c *Cache) { c.defaultTTL = ttl }
}

// NewCache constructs the cache over an established client.
func NewCache(client *Client, log logging.Logger, opts ...CacheOption) *Cache {
	c := &Cache{
		client:     client,
		logger:     log,
		prefix:     "crosssell:",
		defaultTTL: time.Minute,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) fullKey(key string) string {
	return c.prefix + key
}

// jitterTTL spreads expirations +/- 10% so hot keys do not stampede together.
func (c *Cache) jitterTTL(ttl time.Duration) time.Duration {
	if ttl == 0 {
		ttl = c.defaultTTL
	}
	jitter := float64(ttl) * 0.1 * (rand.Float64()*2 - 1)
	return ttl + time.Duration(jitter)
}

// Get unmarshals the cached value into dest, or returns ErrCacheMiss.
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := c.client.Raw().Get(ctx, c.fullKey(key)).Bytes()
	if err == redis.Nil {
		return ErrCacheMiss
	}
	if err != nil {
		return errors.Wrap(err, errors.CodeCacheError, "cache get failed")
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return errors.Wrap(err, errors.CodeCacheError, "cache value unmarshal failed")
	}
	return nil
}

// Set stores value as JSON with the (jittered) TTL.
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, errors.CodeCacheError, "cache value marshal failed")
	}
	if err := c.client.Raw().Set(ctx, c.fullKey(key), data, c.jitterTTL(ttl)).Err(); err != nil {
		return errors.Wrap(err, errors.CodeCacheError, "cache set failed")
	}
	return nil
}

// Delete removes keys.  Missing keys are not an error.
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.fullKey(k)
	}
	if err := c.client.Raw().Del(ctx, full...).Err(); err != nil {
		return errors.Wrap(err, errors.CodeCacheError, "cache delete failed")
	}
	return nil
}

// DeleteByPrefix removes every key under the given namespace prefix using
// SCAN, returning the number of keys removed.  Used on re-ingest to drop
// stale dashboard snapshots.
func (c *Cache) DeleteByPrefix(ctx context.Context, prefix string) (int64, error) {
	var (
		cursor  uint64
		removed int64
	)
	pattern := c.fullKey(prefix) + "*"
	for {
		keys, next, err := c.client.Raw().Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return removed, errors.Wrap(err, errors.CodeCacheError, "cache scan failed")
		}
		if len(keys) > 0 {
			n, err := c.client.Raw().Del(ctx, keys...).Result()
			if err != nil {
				return removed, errors.Wrap(err, errors.CodeCacheError, "cache delete failed")
			}
			removed += n
		}
		if next == 0 {
			return removed, nil
		}
		cursor = next
	}
}

// GetOrSet returns the cached value for key, loading and caching it on a
// miss.  Concurrent misses on the same key share a single loader call.
// Loader failures are returned to every waiter and nothing is cached.
func (c *Cache) GetOrSet(ctx context.Context, key string, dest interface{}, ttl time.Duration,
	loader func(ctx context.Context) (interface{}, error)) error {

	if err := c.Get(ctx, key, dest); err == nil {
		return nil
	} else if !errors.IsNotFound(err) {
		// A broken cache should degrade to the loader, not fail the request.
		c.logger.Warn("cache read failed, falling through to loader",
			logging.String("key", key), logging.Err(err))
	}

	data, err, _ := c.group.Do(key, func() (interface{}, error) {
		value, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeCacheError, "cache value marshal failed")
		}
		if err := c.client.Raw().Set(ctx, c.fullKey(key), raw, c.jitterTTL(ttl)).Err(); err != nil {
			c.logger.Warn("cache write failed", logging.String("key", key), logging.Err(err))
		}
		return raw, nil
	})
	if err != nil {
		return err
	}
	return json.Unmarshal(data.([]byte), dest)
}
