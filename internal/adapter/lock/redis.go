package lock

import (
	"context"
	"fmt"
	"sync"

	"sendit-ledger/config"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	goredislib "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const accountLockPrefix = "lock:account:"

// RedisLocker implements ports.AccountLocker with redsync mutexes, so that
// several API replicas sharing one Redis serialize transfers per account.
type RedisLocker struct {
	rs   *redsync.Redsync
	opts []redsync.Option
	log  zerolog.Logger
}

// NewRedisLocker creates a redsync-backed locker on top of client.
func NewRedisLocker(client *goredislib.Client, cfg config.LockConfig, log zerolog.Logger) *RedisLocker {
	opts := []redsync.Option{}
	if cfg.Expiry > 0 {
		opts = append(opts, redsync.WithExpiry(cfg.Expiry))
	}
	if cfg.Tries > 0 {
		opts = append(opts, redsync.WithTries(cfg.Tries))
	}
	if cfg.RetryDelay > 0 {
		opts = append(opts, redsync.WithRetryDelay(cfg.RetryDelay))
	}

	return &RedisLocker{
		rs:   redsync.New(goredis.NewPool(client)),
		opts: opts,
		log:  log,
	}
}

// Lock acquires lock:account:<key> for every key in sorted order.
func (l *RedisLocker) Lock(ctx context.Context, keys []string) (func(), error) {
	keys = normalizeKeys(keys)
	held := make([]*redsync.Mutex, 0, len(keys))

	for _, key := range keys {
		mutex := l.rs.NewMutex(accountLockPrefix+key, l.opts...)
		if err := mutex.LockContext(ctx); err != nil {
			l.unlockAll(held)
			return nil, fmt.Errorf("acquire lock %s: %w", mutex.Name(), err)
		}
		held = append(held, mutex)
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.unlockAll(held) })
	}, nil
}

func (l *RedisLocker) unlockAll(held []*redsync.Mutex) {
	for i := len(held) - 1; i >= 0; i-- {
		// Release even if the request context is already cancelled.
		if ok, err := held[i].UnlockContext(context.Background()); !ok || err != nil {
			l.log.Warn().Err(err).Str("lock_key", held[i].Name()).Bool("unlock_ok", ok).Msg("failed to release lock")
		}
	}
}
