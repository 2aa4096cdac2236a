// subscribe.go -- Sequential, best-effort webhook subscription.
package connect

import (
	"context"
	"log/slog"
)

// SubscriptionOutcome is the result of subscribing one business account.
type SubscriptionOutcome struct {
	BusinessAccountID string `json:"business_account_id"`
	Success           bool   `json:"success"`
	Error             string `json:"error,omitempty"`
	Requeued          bool   `json:"requeued,omitempty"`
}

// SubscriptionBatch holds one outcome per business account, in call order.
type SubscriptionBatch []SubscriptionOutcome

// Failed returns the outcomes that did not succeed.
func (b SubscriptionBatch) Failed() []SubscriptionOutcome {
	var out []SubscriptionOutcome
	for _, o := range b {
		if !o.Success {
			out = append(out, o)
		}
	}
	return out
}

// subscribeAll subscribes each id in order. A failure is logged, recorded and
// handed to retrier when one is set; the loop always continues.
func subscribeAll(ctx context.Context, sub Subscriber, retrier SubscriptionRetrier, token string, ids []string) SubscriptionBatch {
	batch := make(SubscriptionBatch, 0, len(ids))
	for _, id := range ids {
		err := sub.Subscribe(ctx, token, id)
		if err == nil {
			batch = append(batch, SubscriptionOutcome{BusinessAccountID: id, Success: true})
			continue
		}

		serr := newError(KindSubscription, "webhook subscription failed", err)
		slog.Error("webhook subscription failed", "business_account_id", id, "error", serr)
		outcome := SubscriptionOutcome{BusinessAccountID: id, Error: err.Error()}
		if retrier != nil {
			if qerr := retrier.EnqueueSubscription(ctx, token, id); qerr != nil {
				slog.Warn("could not queue subscription retry", "business_account_id", id, "error", qerr)
			} else {
				outcome.Requeued = true
			}
		}
		batch = append(batch, outcome)
	}
	return batch
}
