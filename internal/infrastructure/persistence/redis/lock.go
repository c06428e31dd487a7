package redis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/halaqa-hub/evaluation-engine/internal/domain/shared"
)

// releaseScript deletes the lock only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// ErrLockLost is returned by unlock when the lock expired and was taken by
// someone else before it was released.
var ErrLockLost = errors.New("lock: lost before release")

// Locker is a distributed lock built on SET NX PX.
type Locker struct {
	cache *Cache
	ttl   time.Duration
	poll  time.Duration
}

// NewLocker creates a Locker. ttl bounds how long a crashed holder keeps the
// key; poll is the retry interval while waiting.
func NewLocker(cache *Cache, ttl, poll time.Duration) *Locker {
	if ttl <= 0 {
		ttl = TTLDistributedLock
	}
	if poll <= 0 {
		poll = 25 * time.Millisecond
	}
	return &Locker{cache: cache, ttl: ttl, poll: poll}
}

// Lock blocks until key is acquired or ctx is done.
func (l *Locker) Lock(ctx context.Context, key string) (func() error, error) {
	full := l.cache.key(LockKey(key))
	token := uuid.NewString()

	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()

	for {
		ok, err := l.cache.client.SetNX(ctx, full, token, l.ttl).Result()
		if err != nil && ctx.Err() == nil {
			return nil, shared.WrapError("lock", "Lock", shared.ErrServiceUnavailable, "redis setnx failed", err)
		}
		if ok {
			return l.unlocker(full, token), nil
		}

		select {
		case <-ctx.Done():
			return nil, shared.WrapError("lock", "Lock", shared.ErrLockNotAcquired, "timed out waiting for "+key, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (l *Locker) unlocker(full, token string) func() error {
	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		n, err := releaseScript.Run(ctx, l.cache.client, []string{full}, token).Int()
		if err != nil {
			return shared.WrapError("lock", "Unlock", shared.ErrServiceUnavailable, "redis release failed", err)
		}
		if n == 0 {
			return ErrLockLost
		}
		return nil
	}
}
