package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// UpdateDedup remembers processed Telegram update ids so that webhook
// redeliveries are answered once. It implements ports.NonceStore.
type UpdateDedup struct {
	client *goredis.Client
}

func NewUpdateDedup(client *goredis.Client) *UpdateDedup {
	return &UpdateDedup{client: client}
}

// CheckAndSet marks id as seen within scope for ttl. It reports false when id
// was already marked.
func (d *UpdateDedup) CheckAndSet(ctx context.Context, scope, id string, ttl time.Duration) (bool, error) {
	first, err := d.client.SetNX(ctx, seenPrefix+scope+":"+id, time.Now().Unix(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("mark %s %s seen: %w", scope, id, err)
	}
	return first, nil
}
