// Package redis provides a Redis-backed conversation summary store for
// deployments with more than one adviser instance.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "adviser:summary:"

// Store persists conversation summaries in Redis. TTL handling is
// delegated to Redis key expiry.
type Store struct {
	client *redis.Client
}

// NewStore wraps an existing Redis client.
func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

// Get implements core.SummaryStore. A missing key is an empty summary,
// not an error.
func (s *Store) Get(ctx context.Context, conversationID string) (string, error) {
	summary, err := s.client.Get(ctx, keyPrefix+conversationID).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading summary %s: %w", conversationID, err)
	}
	return summary, nil
}

// Upsert implements core.SummaryStore.
func (s *Store) Upsert(ctx context.Context, conversationID, summary string, ttl time.Duration) error {
	if err := s.client.Set(ctx, keyPrefix+conversationID, summary, ttl).Err(); err != nil {
		return fmt.Errorf("writing summary %s: %w", conversationID, err)
	}
	return nil
}
