package health

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const redisProbeKey = "payments:health:probe"

// RedisChecker verifies Redis connectivity with a ping followed by a
// SET/GET round trip. Checkout sessions and webhook dedup both live in
// Redis, so a wedged instance has to surface here.
type RedisChecker struct {
	client  redis.UniversalClient
	timeout time.Duration
}

// NewRedisChecker creates a Redis probe.
func NewRedisChecker(client redis.UniversalClient, timeout time.Duration) *RedisChecker {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}

	return &RedisChecker{client: client, timeout: timeout}
}

// Check pings Redis and round-trips a probe key.
func (c *RedisChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.client.Ping(ctx).Err(); err != nil {
		return NewUnhealthyResult("redis", err).WithDuration(time.Since(start))
	}

	want := time.Now().UnixNano()
	if err := c.client.Set(ctx, redisProbeKey, want, 10*time.Second).Err(); err != nil {
		return NewUnhealthyResult("redis", err).WithDuration(time.Since(start))
	}

	got, err := c.client.Get(ctx, redisProbeKey).Int64()
	if err != nil {
		return NewUnhealthyResult("redis", err).WithDuration(time.Since(start))
	}
	c.client.Del(ctx, redisProbeKey)

	if got != want {
		return NewUnhealthyResult("redis", fmt.Errorf("probe round trip returned stale value")).
			WithDuration(time.Since(start))
	}

	return NewHealthyResult("redis", "connected").WithDuration(time.Since(start))
}

// Name returns the checker name.
func (c *RedisChecker) Name() string {
	return "redis"
}
