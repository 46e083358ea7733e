package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/erp/integration-hub/internal/domain/integration"
	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "hub:idempotency:"

// RedisIdempotencyCache shares idempotency fingerprints between hub replicas
type RedisIdempotencyCache struct {
	client    redis.UniversalClient
	keyPrefix string
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewRedisIdempotencyCache connects to Redis and verifies the connection
func NewRedisIdempotencyCache(cfg RedisConfig) (*RedisIdempotencyCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisIdempotencyCacheWithClient(client, ""), nil
}

// NewRedisIdempotencyCacheWithClient wraps an existing client
func NewRedisIdempotencyCacheWithClient(client redis.UniversalClient, keyPrefix string) *RedisIdempotencyCache {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &RedisIdempotencyCache{client: client, keyPrefix: keyPrefix}
}

// Get reads the record for key. A missing key is a miss, not an error.
func (c *RedisIdempotencyCache) Get(ctx context.Context, key string) (*integration.IdempotencyRecord, bool, error) {
	raw, err := c.client.Get(ctx, c.keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read idempotency record: %w", err)
	}

	var record integration.IdempotencyRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, false, fmt.Errorf("failed to decode idempotency record: %w", err)
	}
	return &record, true, nil
}

// Put overwrites the record for key with a fresh ttl
func (c *RedisIdempotencyCache) Put(ctx context.Context, key string, record integration.IdempotencyRecord, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode idempotency record: %w", err)
	}
	if err := c.client.Set(ctx, c.keyPrefix+key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store idempotency record: %w", err)
	}
	return nil
}

// Ping reports whether Redis answers
func (c *RedisIdempotencyCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis client
func (c *RedisIdempotencyCache) Close() error {
	return c.client.Close()
}

var _ integration.IdempotencyCache = (*RedisIdempotencyCache)(nil)
