// redis.go -- go-redis client and the connection-flow cache.
//
// A flow lives in Redis between the callback and the final confirm, keyed by
// the SHA-256 of the browser's flow cookie. The TTL bounds an abandoned flow.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MGallo-Code/wabalink/internal/connect"
)

// NewRedisClient parses redisURL, connects and pings.
// The returned client is shared by RedisStore, RedisLocker, RedisNotifier and the retry queue.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return rdb, nil
}

// RedisStore caches in-progress flows.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore wraps a shared client.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

// CheckHealth pings Redis. Used by the /health endpoint.
func (s *RedisStore) CheckHealth(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// SaveFlow stores f under key for ttl, replacing any previous value.
func (s *RedisStore) SaveFlow(ctx context.Context, key string, f *connect.Flow, ttl time.Duration) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshaling flow: %w", err)
	}
	if err := s.rdb.Set(ctx, flowKey(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("caching flow: %w", err)
	}
	return nil
}

// GetFlow loads the flow stored under key.
// Returns ErrCacheMiss when it expired or never existed.
func (s *RedisStore) GetFlow(ctx context.Context, key string) (*connect.Flow, error) {
	raw, err := s.rdb.Get(ctx, flowKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("fetching flow: %w", err)
	}

	var f connect.Flow
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parsing flow: %w", err)
	}
	return &f, nil
}

// DeleteFlow removes the flow under key. Deleting a missing key is not an error.
func (s *RedisStore) DeleteFlow(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, flowKey(key)).Err(); err != nil {
		return fmt.Errorf("deleting flow: %w", err)
	}
	return nil
}
