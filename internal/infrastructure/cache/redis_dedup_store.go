package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/talentsift/backend/internal/domain/shared"
	"github.com/talentsift/backend/internal/infrastructure/config"
)

const defaultWebhookKeyPrefix = "webhook:event:"

// RedisDedupStore implements shared.IdempotencyStore on Redis. Stripe
// redelivers webhook events until it sees a 2xx, so every instance behind the
// load balancer must share the set of event IDs already applied.
type RedisDedupStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisDedupStore dials Redis and verifies the connection
func NewRedisDedupStore(cfg config.RedisConfig) (*RedisDedupStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisDedupStore{
		client:    client,
		keyPrefix: defaultWebhookKeyPrefix,
	}, nil
}

// NewRedisDedupStoreWithClient wraps an existing client, sharing the
// connection pool with other components
func NewRedisDedupStoreWithClient(client *redis.Client, keyPrefix string) *RedisDedupStore {
	if keyPrefix == "" {
		keyPrefix = defaultWebhookKeyPrefix
	}
	return &RedisDedupStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// MarkProcessed claims an event ID. The first caller gets true and owns the
// delivery; redeliveries get false. SETNX with TTL makes the claim atomic
// across instances.
func (s *RedisDedupStore) MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	claimed, err := s.client.SetNX(ctx, s.keyPrefix+eventID, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark event as processed: %w", err)
	}
	return claimed, nil
}

// IsProcessed reports whether an event ID has already been claimed
func (s *RedisDedupStore) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	exists, err := s.client.Exists(ctx, s.keyPrefix+eventID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check event: %w", err)
	}
	return exists > 0, nil
}

// Release drops the claim on an event ID so a redelivery can be applied
func (s *RedisDedupStore) Release(ctx context.Context, eventID string) error {
	if err := s.client.Del(ctx, s.keyPrefix+eventID).Err(); err != nil {
		return fmt.Errorf("failed to release event claim: %w", err)
	}
	return nil
}

// Close closes the Redis client
func (s *RedisDedupStore) Close() error {
	return s.client.Close()
}

// Ensure RedisDedupStore implements IdempotencyStore
var _ shared.IdempotencyStore = (*RedisDedupStore)(nil)
