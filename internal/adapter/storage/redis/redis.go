// Package redis holds the Redis-backed helpers of the ledger: request rate
// limits, Telegram update dedup and the transfer replay cache. Account locks
// share the same client through redsync (see adapter/lock).
package redis

import (
	"context"
	"fmt"

	"sendit-ledger/config"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Key prefixes owned by this package.
const (
	rateLimitPrefix = "ratelimit:"
	seenPrefix      = "seen:"
	replayPrefix    = "replay:"
)

// NewClient opens the Redis connection shared by every Redis-backed component.
// The client is closed again if the first PING fails.
func NewClient(ctx context.Context, cfg config.RedisConfig, log zerolog.Logger) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis %s unreachable: %w", cfg.Addr(), err)
	}

	log.Info().Str("addr", cfg.Addr()).Int("db", cfg.DB).Msg("Redis connected")
	return client, nil
}

// Health reports Redis liveness on /health.
type Health struct {
	client *goredis.Client
}

func NewHealth(client *goredis.Client) *Health {
	return &Health{client: client}
}

func (h *Health) Ping(ctx context.Context) error {
	if err := h.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func (h *Health) Name() string { return "redis" }
