package billing

import (
	"context"
	"sync"
	"time"

	"inbound-genie/pkg/utils"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker guards an account against concurrent reconciliation runs.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

// RedisLocker is a Locker backed by the Redis lock scripts. Every acquisition
// uses a fresh token, so two runs in the same process exclude each other too,
// and Unlock only releases a lock this locker holds.
type RedisLocker struct {
	rdb redis.Scripter

	mu   sync.Mutex
	held map[string]string // key -> token
}

func NewRedisLocker(rdb redis.Scripter) *RedisLocker {
	return &RedisLocker{rdb: rdb, held: make(map[string]string)}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	token := uuid.NewString()
	ok, err := utils.AcquireLock(ctx, l.rdb, key, token, ttl)
	if err != nil || !ok {
		return false, err
	}
	l.mu.Lock()
	l.held[key] = token
	l.mu.Unlock()
	return true, nil
}

func (l *RedisLocker) Unlock(ctx context.Context, key string) error {
	l.mu.Lock()
	token, ok := l.held[key]
	delete(l.held, key)
	l.mu.Unlock()
	if !ok {
		return nil
	}
	return utils.ReleaseLock(ctx, l.rdb, key, token)
}

func reconcileLockKey(accountID string) string { return "lock:reconcile:" + accountID }
