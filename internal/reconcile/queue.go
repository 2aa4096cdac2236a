// queue.go
//
// Redis-backed retry queue for webhook subscriptions that failed during a
// connection flow. The flow itself still reports the failure; the queue only
// gets the account subscribed eventually. StartWorker drains the list in a
// background goroutine and hands each job to the gateway Subscriber.
package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// QueueKey is the Redis list holding pending subscription retries.
const QueueKey = "wabalink:subscriptions:retry"

// DefaultMaxQueueSize caps the list so a long gateway outage cannot grow it unbounded. 0 = unlimited.
const DefaultMaxQueueSize int64 = 10000

// DefaultBaseDelay is the wait before the first retry; it doubles on each further attempt.
const DefaultBaseDelay = 30 * time.Second

// ErrQueueFull is returned by EnqueueSubscription when the list has reached its cap.
var ErrQueueFull = errors.New("subscription retry queue full")

// Subscriber registers webhook delivery for one business account.
// Satisfied by *gateway.Client.
type Subscriber interface {
	Subscribe(ctx context.Context, longLivedToken, businessAccountID string) error
}

// SubscriptionJob is the serialized payload pushed onto the queue.
type SubscriptionJob struct {
	LongLivedToken    string    `json:"long_lived_token"`
	BusinessAccountID string    `json:"business_account_id"`
	Attempts          int       `json:"attempts"`
	NotBefore         time.Time `json:"not_before"`
}

// Queue enqueues failed subscriptions and retries them from StartWorker.
// Satisfies connect.SubscriptionRetrier.
type Queue struct {
	sub          Subscriber
	rdb          *redis.Client
	maxAttempts  int
	maxQueueSize int64 // 0 = unlimited
	baseDelay    time.Duration
	now          func() time.Time
}

// NewQueue returns a Queue retrying each job up to maxAttempts times through sub.
func NewQueue(sub Subscriber, rdb *redis.Client, maxAttempts int) *Queue {
	return &Queue{
		sub:          sub,
		rdb:          rdb,
		maxAttempts:  maxAttempts,
		maxQueueSize: DefaultMaxQueueSize,
		baseDelay:    DefaultBaseDelay,
		now:          time.Now,
	}
}

// enqueueScript atomically checks the list length and pushes the job only if
// under the cap. Returns 1 if enqueued, 0 if rejected (queue full).
// KEYS[1] = queue key, ARGV[1] = max size (0 = skip check), ARGV[2] = payload.
var enqueueScript = redis.NewScript(`
local max = tonumber(ARGV[1])
if max > 0 and redis.call('LLEN', KEYS[1]) >= max then
    return 0
end
redis.call('RPUSH', KEYS[1], ARGV[2])
return 1
`)

// EnqueueSubscription schedules a first retry for businessAccountID after the base delay.
func (q *Queue) EnqueueSubscription(ctx context.Context, longLivedToken, businessAccountID string) error {
	return q.push(ctx, SubscriptionJob{
		LongLivedToken:    longLivedToken,
		BusinessAccountID: businessAccountID,
		NotBefore:         q.now().Add(q.baseDelay),
	})
}

func (q *Queue) push(ctx context.Context, job SubscriptionJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshaling subscription job: %w", err)
	}
	ok, err := enqueueScript.Run(ctx, q.rdb, []string{QueueKey}, q.maxQueueSize, data).Int64()
	if err != nil {
		return fmt.Errorf("enqueuing subscription job: %w", err)
	}
	if ok == 0 {
		return ErrQueueFull
	}
	return nil
}

// StartWorker drains the queue until ctx is cancelled. Call in a goroutine.
func (q *Queue) StartWorker(ctx context.Context) {
	for {
		// BLPop blocks up to 2s then returns redis.Nil, keeping the loop responsive to ctx.
		res, err := q.rdb.BLPop(ctx, 2*time.Second, QueueKey).Result()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, redis.Nil) {
				continue
			}
			slog.Error("subscription worker: queue pop failed", "error", err)
			// Back off so a Redis outage does not spin the loop
			if !sleep(ctx, time.Second) {
				return
			}
			continue
		}
		// res[0] = key name, res[1] = payload
		var job SubscriptionJob
		if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
			slog.Error("subscription worker: bad job payload", "error", err)
			continue
		}

		if wait := job.NotBefore.Sub(q.now()); wait > 0 {
			// Not due yet: put it back and wait a little before the next pop.
			if err := q.push(ctx, job); err != nil {
				slog.Error("subscription worker: requeue failed", "business_account_id", job.BusinessAccountID, "error", err)
			}
			if !sleep(ctx, min(wait, time.Second)) {
				return
			}
			continue
		}
		q.dispatch(ctx, job)
	}
}

// dispatch makes one subscription attempt. A failure is requeued with
// exponential delay until maxAttempts is reached, then dropped.
func (q *Queue) dispatch(ctx context.Context, job SubscriptionJob) {
	job.Attempts++
	err := q.sub.Subscribe(ctx, job.LongLivedToken, job.BusinessAccountID)
	if err == nil {
		slog.Info("subscription worker: subscribed",
			"business_account_id", job.BusinessAccountID, "attempts", job.Attempts)
		return
	}

	if job.Attempts >= q.maxAttempts {
		slog.Error("subscription worker: giving up",
			"business_account_id", job.BusinessAccountID, "attempts", job.Attempts, "error", err)
		return
	}

	job.NotBefore = q.now().Add(q.baseDelay << job.Attempts)
	slog.Warn("subscription worker: attempt failed, requeueing",
		"business_account_id", job.BusinessAccountID, "attempts", job.Attempts, "error", err)
	if qerr := q.push(ctx, job); qerr != nil {
		slog.Error("subscription worker: requeue failed", "business_account_id", job.BusinessAccountID, "error", qerr)
	}
}

// sleep waits for d or ctx; reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
