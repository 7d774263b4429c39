package cache

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/talentsift/backend/internal/domain/shared"
	"github.com/talentsift/backend/internal/infrastructure/config"
)

// DedupStoreFactory builds the webhook deduplication store, preferring Redis
// and optionally falling back to the in-memory store when Redis is down
type DedupStoreFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// DedupStoreFactoryOption configures the factory
type DedupStoreFactoryOption func(*DedupStoreFactory)

// WithLogger sets the factory logger
func WithLogger(logger *zap.Logger) DedupStoreFactoryOption {
	return func(f *DedupStoreFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether a Redis outage degrades to the local
// store instead of failing startup. Default is true.
func WithInMemoryFallback(allow bool) DedupStoreFactoryOption {
	return func(f *DedupStoreFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewDedupStoreFactory creates a new factory
func NewDedupStoreFactory(cfg config.RedisConfig, opts ...DedupStoreFactoryOption) *DedupStoreFactory {
	f := &DedupStoreFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// CreateStore tries Redis first and falls back to in-memory when allowed
func (f *DedupStoreFactory) CreateStore() (shared.IdempotencyStore, error) {
	store, err := NewRedisDedupStore(f.redisConfig)
	if err == nil {
		f.logger.Info("using Redis webhook dedup store")
		return store, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required for webhook dedup but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory webhook dedup store. "+
		"Redelivered events may be applied twice across instances.",
		zap.Error(err),
	)
	return NewInMemoryDedupStore(), nil
}
