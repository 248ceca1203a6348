package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// ReplayCache keeps the JSON of completed transfers under their client
// Idempotency-Key so a retried request returns the original result.
// It implements ports.IdempotencyCache.
type ReplayCache struct {
	client *goredis.Client
}

func NewReplayCache(client *goredis.Client) *ReplayCache {
	return &ReplayCache{client: client}
}

// Get returns nil, nil when no transfer was recorded under key.
func (c *ReplayCache) Get(ctx context.Context, key string) ([]byte, error) {
	raw, err := c.client.Get(ctx, replayPrefix+key).Bytes()
	switch {
	case errors.Is(err, goredis.Nil):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("read transfer replay %q: %w", key, err)
	}
	return raw, nil
}

func (c *ReplayCache) Set(ctx context.Context, key string, transfer []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, replayPrefix+key, transfer, ttl).Err(); err != nil {
		return fmt.Errorf("store transfer replay %q: %w", key, err)
	}
	return nil
}
