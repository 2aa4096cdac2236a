// deps.go -- Collaborators of the orchestrator, defined here at the consumer.
package connect

import (
	"context"
	"time"
)

// Directory fetches the WABAs and phone numbers visible to an access token.
// Satisfied by *gateway.Client.
type Directory interface {
	FetchBusinessAccounts(ctx context.Context, accessToken string) ([]BusinessAccount, error)
}

// PartnerVerifier checks whether the platform was granted partner access to a business account.
// A negative answer is a result with Success=false, not an error.
// Satisfied by *gateway.Client.
type PartnerVerifier interface {
	VerifyPartner(ctx context.Context, businessAccountID string) (VerificationResult, error)
}

// TokenExchanger converts a short-lived access token into a long-lived one.
// Satisfied by *gateway.Client.
type TokenExchanger interface {
	ExchangeToken(ctx context.Context, shortLivedToken string) (string, error)
}

// Subscriber registers webhook delivery for one business account.
// Satisfied by *gateway.Client.
type Subscriber interface {
	Subscribe(ctx context.Context, longLivedToken, businessAccountID string) error
}

// ExtensionStore is the persistence gateway for connection records.
// Satisfied by *store.PostgresStore.
type ExtensionStore interface {
	// ListExtensions returns every record of clientID; an empty slice when there are none.
	ListExtensions(ctx context.Context, clientID string) ([]Extension, error)

	// CreateExtension inserts a full record.
	CreateExtension(ctx context.Context, rec ConnectionRecord) error

	// UpdateExtension overwrites the mutable fields of record id.
	UpdateExtension(ctx context.Context, id string, patch ConnectionPatch) error
}

// Locker serialises upserts for one client across processes.
// Satisfied by *store.RedisLocker. Optional.
type Locker interface {
	// Acquire takes the lock for key and returns its release func.
	// Returns ErrLocked (from the store package) when someone else holds it.
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// Notifier delivers the opener message on terminal-state entry.
// Satisfied by *store.RedisNotifier.
type Notifier interface {
	Notify(ctx context.Context, flowID string, msg OpenerMessage) error
}

// SubscriptionRetrier takes failed subscriptions for later reconciliation.
// Satisfied by *reconcile.Queue. Optional.
type SubscriptionRetrier interface {
	EnqueueSubscription(ctx context.Context, longLivedToken, businessAccountID string) error
}
