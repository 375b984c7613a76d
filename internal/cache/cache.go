// Package cache provides the Redis-backed counters used for daily rate
// limiting. Redis is an optimization here, not a dependency: every caller is
// expected to fall back to counting database rows when the connection is down.
package cache

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// counterTTL is the lifetime of a daily counter key. The window is rolling
// from the first action of the day, not aligned to midnight.
const counterTTL = 24 * time.Hour

// Cache wraps a Redis client for counter operations.
type Cache struct {
	rdb    *redis.Client
	logger *slog.Logger
}

// New connects to Redis at the given URL (redis://host:port/db) and verifies
// the connection with a ping.
func New(ctx context.Context, redisURL string, logger *slog.Logger) (*Cache, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.InfoContext(ctx, "Connected to Redis", "addr", opts.Addr)
	return &Cache{rdb: rdb, logger: logger.With("component", "cache")}, nil
}

// NewWithClient wraps an existing Redis client. Used by tests with miniredis.
func NewWithClient(rdb *redis.Client, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Cache{rdb: rdb, logger: logger.With("component", "cache")}
}

// Close releases the underlying Redis connection.
func (c *Cache) Close() error {
	return c.rdb.Close()
}

// Ping checks the Redis connection.
func (c *Cache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// IncrementDailyCounter atomically increments the named counter and returns
// the new value. The counter expires 24 hours after its first increment.
func (c *Cache) IncrementDailyCounter(ctx context.Context, key string) (int64, error) {
	count, err := c.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment counter %q: %w", key, err)
	}
	if count == 1 {
		if err := c.rdb.Expire(ctx, key, counterTTL).Err(); err != nil {
			return count, fmt.Errorf("failed to set TTL on counter %q: %w", key, err)
		}
	}
	return count, nil
}

// DecrementDailyCounter returns one previously consumed unit to the named
// counter. The counter never goes below zero; the key's TTL is left as is.
func (c *Cache) DecrementDailyCounter(ctx context.Context, key string) error {
	count, err := c.rdb.Decr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to decrement counter %q: %w", key, err)
	}
	if count < 0 {
		if err := c.rdb.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("failed to reset counter %q: %w", key, err)
		}
	}
	return nil
}

// GetCounter returns the current value of the named counter, zero if the key
// does not exist.
func (c *Cache) GetCounter(ctx context.Context, key string) (int64, error) {
	count, err := c.rdb.Get(ctx, key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read counter %q: %w", key, err)
	}
	return count, nil
}
