package events

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisProcessedStore remembers event ids with SETNX for a limited time.
// Gateways stop redelivering long before the TTL runs out.
type RedisProcessedStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisProcessedStore creates a store; a non-positive ttl uses 24h.
func NewRedisProcessedStore(client *redis.Client, prefix string, ttl time.Duration) *RedisProcessedStore {
	if client == nil {
		panic("events: redis client required")
	}
	if ttl <= 0 {
		ttl = defaultProcessedTTL
	}
	return &RedisProcessedStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisProcessedStore) key(provider, eventID string) string {
	return s.prefix + "processed:" + provider + ":" + eventID
}

// MarkProcessed returns true the first time an id is seen.
func (s *RedisProcessedStore) MarkProcessed(ctx context.Context, provider, eventID string) (bool, error) {
	fresh, err := s.client.SetNX(ctx, s.key(provider, eventID), time.Now().UTC().Format(time.RFC3339), s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("events: mark processed: %w", err)
	}
	return fresh, nil
}
