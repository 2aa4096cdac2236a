// models.go -- Sentinel errors and key layout shared by the Postgres and Redis stores.
package store

import (
	"errors"
	"fmt"
)

// ErrExtensionNotFound is returned by UpdateExtension when no row has the given id.
var ErrExtensionNotFound = errors.New("extension not found")

// ErrCacheMiss is returned by GetFlow when the key is not in Redis (expired or never set).
// Callers use errors.Is to distinguish a true miss from a Redis infrastructure failure.
var ErrCacheMiss = errors.New("cache miss")

// ErrLocked is returned by RedisLocker.Acquire when another holder owns the key.
var ErrLocked = errors.New("lock held by another process")

// Redis key prefixes. Everything the service writes lives under "wabalink:".
const (
	flowKeyPrefix   = "wabalink:flow:"
	lockKeyPrefix   = "wabalink:lock:"
	openerKeyPrefix = "wabalink:opener:"
)

// flowKey is the Redis key of a cached flow. key is already a hash of the browser cookie.
func flowKey(key string) string { return flowKeyPrefix + key }

// OpenerChannel is the pub/sub channel the opener message of flowID is published on.
func OpenerChannel(flowID string) string {
	return fmt.Sprintf("%s%s", openerKeyPrefix, flowID)
}
