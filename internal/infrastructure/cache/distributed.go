// Package cache wraps the shared Redis connection holding checkout
// session snapshots and webhook dedup markers.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/storefront-service/payment_service/pkg/metrics"
)

type DistributedCache struct {
	client     redis.UniversalClient
	logger     *zap.Logger
	prefix     string
	defaultTTL time.Duration
}

type Config struct {
	Addr       string
	Password   string
	DB         int
	MaxRetries int
	PoolSize   int
}

func NewDistributedCache(cfg *Config, logger *zap.Logger) (*DistributedCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:       cfg.Addr,
		Password:   cfg.Password,
		DB:         cfg.DB,
		MaxRetries: cfg.MaxRetries,
		PoolSize:   cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &DistributedCache{
		client:     client,
		logger:     logger,
		prefix:     "payments:",
		defaultTTL: 1 * time.Hour,
	}, nil
}

// Client exposes the underlying connection for components that need raw
// Redis access (health checks, the distributed rate limiter).
func (dc *DistributedCache) Client() redis.UniversalClient {
	return dc.client
}

// Get returns the empty string without error when the key is absent.
func (dc *DistributedCache) Get(ctx context.Context, key string) (string, error) {
	start := time.Now()
	val, err := dc.client.Get(ctx, dc.prefix+key).Result()
	metrics.RecordRedisOperation("get", time.Since(start).Seconds())
	if err == redis.Nil {
		return "", nil
	}
	return val, err
}

func (dc *DistributedCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if ttl == 0 {
		ttl = dc.defaultTTL
	}
	start := time.Now()
	err := dc.client.Set(ctx, dc.prefix+key, value, ttl).Err()
	metrics.RecordRedisOperation("set", time.Since(start).Seconds())
	return err
}

// SetNX stores the value only if the key does not already exist and reports
// whether this call created it. Webhook deduplication relies on the atomicity
// of this single round trip.
func (dc *DistributedCache) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	if ttl == 0 {
		ttl = dc.defaultTTL
	}
	start := time.Now()
	created, err := dc.client.SetNX(ctx, dc.prefix+key, value, ttl).Result()
	metrics.RecordRedisOperation("setnx", time.Since(start).Seconds())
	return created, err
}

func (dc *DistributedCache) Close() error {
	return dc.client.Close()
}
