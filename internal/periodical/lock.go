package periodical

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// Unlock releases a scan lock.
type Unlock func(ctx context.Context) error

// Locker serializes periodical scans across processes.
type Locker interface {
	// TryLock returns ok=false when another process holds the lock.
	TryLock(ctx context.Context) (unlock Unlock, ok bool, err error)
}

// NoopLocker always grants the lock. Each process scans independently.
type NoopLocker struct{}

// TryLock implements Locker.
func (NoopLocker) TryLock(context.Context) (Unlock, bool, error) {
	return func(context.Context) error { return nil }, true, nil
}

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLocker holds the lock as a key with a TTL. The TTL should be shorter
// than the scan cadence so a crashed holder does not block the next scan.
type RedisLocker struct {
	rdb *redis.Client
	key string
	ttl time.Duration
}

// NewRedisLocker creates a RedisLocker.
func NewRedisLocker(rdb *redis.Client, key string, ttl time.Duration) *RedisLocker {
	if key == "" {
		key = "buildcore:periodical:lock"
	}
	if ttl <= 0 {
		ttl = 55 * time.Second
	}
	return &RedisLocker{rdb: rdb, key: key, ttl: ttl}
}

// TryLock implements Locker.
func (l *RedisLocker) TryLock(ctx context.Context) (Unlock, bool, error) {
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire periodical lock: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	unlock := func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.rdb, []string{l.key}, token).Err(); err != nil && err != redis.Nil {
			return fmt.Errorf("release periodical lock: %w", err)
		}
		return nil
	}
	return unlock, true, nil
}
