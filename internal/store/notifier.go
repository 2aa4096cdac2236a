// notifier.go -- Publishes the opener message of a finished flow.
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/MGallo-Code/wabalink/internal/connect"
)

// RedisNotifier PUBLISHes opener messages on OpenerChannel(flowID).
// Whatever opened the flow (the parent window's backend, a CLI) subscribes there.
// Satisfies connect.Notifier.
type RedisNotifier struct {
	rdb *redis.Client
}

// NewRedisNotifier wraps a shared client.
func NewRedisNotifier(rdb *redis.Client) *RedisNotifier {
	return &RedisNotifier{rdb: rdb}
}

// Notify publishes msg as JSON. Having no subscriber is not an error.
func (n *RedisNotifier) Notify(ctx context.Context, flowID string, msg connect.OpenerMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling opener message: %w", err)
	}
	if err := n.rdb.Publish(ctx, OpenerChannel(flowID), data).Err(); err != nil {
		return fmt.Errorf("publishing opener message: %w", err)
	}
	return nil
}

// Subscribe is the listener side of Notify: it returns a subscription to
// flowID's opener channel for a process waiting on that flow's outcome.
// The caller must Close it.
func (n *RedisNotifier) Subscribe(ctx context.Context, flowID string) *redis.PubSub {
	return n.rdb.Subscribe(ctx, OpenerChannel(flowID))
}
