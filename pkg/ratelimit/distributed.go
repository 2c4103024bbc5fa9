// Package ratelimit provides Redis-backed sliding window rate limiting
// shared across service replicas.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Limiter is what the middleware needs from a rate limiter.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	GetRemaining(ctx context.Context, key string) (int64, error)
}

// Config sets the window for one limiter instance.
type Config struct {
	// Limit is the number of requests allowed per window.
	Limit int64

	// Window is the sliding window length.
	Window time.Duration

	// KeyPrefix namespaces this limiter's Redis keys.
	KeyPrefix string
}

// DistributedLimiter counts requests in a Redis sorted set per key, so
// the limit holds across replicas. Entries are scored by arrival time
// and trimmed as the window slides.
type DistributedLimiter struct {
	redis  redis.UniversalClient
	config Config
	logger *zap.Logger
}

// NewDistributedLimiter creates a limiter over the shared Redis client.
func NewDistributedLimiter(client redis.UniversalClient, config Config, logger *zap.Logger) *DistributedLimiter {
	if config.KeyPrefix == "" {
		config.KeyPrefix = "ratelimit"
	}

	return &DistributedLimiter{redis: client, config: config, logger: logger}
}

// Allow records the request and reports whether key is inside its
// budget. The trim, count and insert run in one pipeline round trip.
func (l *DistributedLimiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := l.redisKey(key)
	ts := time.Now().UnixNano()
	cutoff := strconv.FormatInt(ts-l.config.Window.Nanoseconds(), 10)

	pipe := l.redis.Pipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "0", cutoff)
	countCmd := pipe.ZCount(ctx, redisKey, cutoff, "+inf")
	// Member carries a UUID so concurrent requests landing in the same
	// nanosecond still count separately.
	pipe.ZAdd(ctx, redisKey, &redis.Z{
		Score:  float64(ts),
		Member: strconv.FormatInt(ts, 10) + "-" + uuid.NewString(),
	})
	pipe.Expire(ctx, redisKey, l.config.Window*2)

	if _, err := pipe.Exec(ctx); err != nil {
		l.logger.Error("Rate limit pipeline failed",
			zap.Error(err),
			zap.String("key", key))
		return false, fmt.Errorf("rate limit check failed: %w", err)
	}

	seen := countCmd.Val()
	if seen >= l.config.Limit {
		l.logger.Debug("Rate limit exceeded",
			zap.String("key", key),
			zap.Int64("seen", seen),
			zap.Int64("limit", l.config.Limit))
		return false, nil
	}

	return true, nil
}

// GetRemaining reports how much of the window budget is left for key.
func (l *DistributedLimiter) GetRemaining(ctx context.Context, key string) (int64, error) {
	cutoff := strconv.FormatInt(time.Now().Add(-l.config.Window).UnixNano(), 10)

	count, err := l.redis.ZCount(ctx, l.redisKey(key), cutoff, "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get remaining quota: %w", err)
	}

	if remaining := l.config.Limit - count; remaining > 0 {
		return remaining, nil
	}

	return 0, nil
}

func (l *DistributedLimiter) redisKey(key string) string {
	return l.config.KeyPrefix + ":" + key
}
