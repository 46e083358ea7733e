package cache

import (
	"fmt"

	"github.com/erp/integration-hub/internal/domain/integration"
	"github.com/erp/integration-hub/internal/infrastructure/config"
	"go.uber.org/zap"
)

// Closer is implemented by every cache this package builds
type Closer interface {
	Close() error
}

// IdempotencyCache is a closable idempotency fast path
type IdempotencyCache interface {
	integration.IdempotencyCache
	Closer
}

// IdempotencyCacheFactory builds the idempotency cache from configuration
type IdempotencyCacheFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
	connect               func(RedisConfig) (IdempotencyCache, error)
}

// IdempotencyCacheFactoryOption is a functional option for configuring the factory
type IdempotencyCacheFactoryOption func(*IdempotencyCacheFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) IdempotencyCacheFactoryOption {
	return func(f *IdempotencyCacheFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether an unreachable Redis degrades to the
// in-memory cache. Default is true.
func WithInMemoryFallback(allow bool) IdempotencyCacheFactoryOption {
	return func(f *IdempotencyCacheFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewIdempotencyCacheFactory creates a new factory
func NewIdempotencyCacheFactory(cfg config.RedisConfig, opts ...IdempotencyCacheFactoryOption) *IdempotencyCacheFactory {
	f := &IdempotencyCacheFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
		connect: func(rc RedisConfig) (IdempotencyCache, error) {
			return NewRedisIdempotencyCache(rc)
		},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Create returns the Redis cache when Redis is enabled and reachable, the
// in-memory cache otherwise. With fallback disabled an unreachable Redis is
// an error.
func (f *IdempotencyCacheFactory) Create() (IdempotencyCache, error) {
	if !f.redisConfig.Enabled {
		f.logger.Info("Using in-memory idempotency cache")
		return NewInMemoryIdempotencyCache(), nil
	}

	c, err := f.connect(RedisConfig{
		Host:     f.redisConfig.Host,
		Port:     f.redisConfig.Port,
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	})
	if err == nil {
		f.logger.Info("Using Redis idempotency cache", zap.String("addr", f.redisConfig.Addr()))
		return c, nil
	}
	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("redis idempotency cache unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory idempotency cache. "+
		"Replicas will not share duplicate detection state.",
		zap.Error(err),
	)
	return NewInMemoryIdempotencyCache(), nil
}
