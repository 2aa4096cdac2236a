// locker.go -- Short-lived distributed lock on a single Redis key.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only if it still holds our token, so a holder
// whose TTL lapsed cannot free a lock someone else has since taken.
// KEYS[1] = lock key, ARGV[1] = holder token.
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`)

// RedisLocker serialises work on a key across processes with SET NX PX.
// Satisfies connect.Locker.
type RedisLocker struct {
	rdb *redis.Client
}

// NewRedisLocker wraps a shared client.
func NewRedisLocker(rdb *redis.Client) *RedisLocker {
	return &RedisLocker{rdb: rdb}
}

// Acquire takes key for at most ttl. Returns ErrLocked if another holder has it.
// The returned release is safe to call once the work is done; it never blocks on ctx.
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("generating lock token: %w", err)
	}

	redisKey := lockKeyPrefix + key
	ok, err := l.rdb.SetNX(ctx, redisKey, token.String(), ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquiring lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLocked
	}

	release := func() {
		// Detached so a cancelled request still frees the lock.
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(rctx, l.rdb, []string{redisKey}, token.String()).Err(); err != nil {
			slog.Warn("lock release failed", "key", key, "error", err)
		}
	}
	return release, nil
}
