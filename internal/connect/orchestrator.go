// orchestrator.go -- The connection state machine.
//
//	processing (discovery) -> selecting -> processing (finalisation) -> success
//	                  \______________________________\_______________-> error
//
// Both processing phases share one state and are told apart by Flow.Message.
package connect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofrs/uuid/v5"
)

const (
	msgDiscovering    = "Discovering your WhatsApp accounts..."
	msgSelect         = "Select the phone numbers to connect."
	msgVerifyRequired = "Some selected numbers belong to business accounts that have not granted partner access. Grant access in Meta Business Suite and verify again, or deselect those numbers."
	msgConnecting     = "Connecting your WhatsApp numbers..."
	msgConnected      = "WhatsApp connected. You can close this window."
	msgTokenOnly      = "Authentication complete. You can close this window."
)

// Orchestrator sequences discovery, verification, exchange, persistence and subscription.
// It holds no per-flow state and is safe for concurrent use across flows.
type Orchestrator struct {
	Directory  Directory
	Verifier   PartnerVerifier
	Exchanger  TokenExchanger
	Subscriber Subscriber
	Extensions ExtensionStore
	Notifier   Notifier

	// Optional.
	Locker  Locker
	Retrier SubscriptionRetrier

	// VerifyConcurrency caps concurrent verification calls; <= 0 is unbounded.
	VerifyConcurrency int
	// TokenValidity is added to the connect time to get TokenExpiresAt. Defaults to 60 days.
	TokenValidity time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

// Start runs discovery for a redirect fragment and returns the new flow.
// On a fatal failure the flow is returned in the error state together with the *Error.
// Without a correlation id the flow ends in success right away (token-only).
func (o *Orchestrator) Start(ctx context.Context, fragment string) (*Flow, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generating flow id: %w", err)
	}
	f := &Flow{
		ID:        id,
		State:     StateProcessing,
		Message:   msgDiscovering,
		StartedAt: o.now(),
	}

	params, err := ParseRedirect(fragment)
	if err != nil {
		var ce *Error
		if !errors.As(err, &ce) {
			ce = newError(KindRedirectParse, "invalid redirect", err)
		}
		return f, o.fail(ctx, f, ce)
	}
	f.AccessToken = params.AccessToken
	f.ClientID = params.CorrelationID

	if f.ClientID == "" {
		f.Message = msgTokenOnly
		o.succeed(ctx, f)
		return f, nil
	}

	accounts, err := o.Directory.FetchBusinessAccounts(ctx, f.AccessToken)
	if err != nil {
		return f, o.fail(ctx, f, newError(KindDiscovery, "no WhatsApp business accounts found", err))
	}
	if len(accounts) == 0 {
		return f, o.fail(ctx, f, newError(KindDiscovery, "no WhatsApp business accounts found", nil))
	}

	verifications := verifyAll(ctx, o.Verifier, DistinctBusinessAccountIDs(accounts), o.VerifyConcurrency)
	f.Tree = BuildTree(accounts, verifications)
	f.Selection.Clear()
	f.State = StateSelecting
	f.Message = msgSelect

	slog.Info("whatsapp accounts discovered",
		"flow_id", f.ID, "client_id", f.ClientID,
		"businesses", len(f.Tree.Groups), "wabas", len(accounts))
	return f, nil
}

// Toggle flips selection of a phone number and reports whether it is now selected.
func (o *Orchestrator) Toggle(f *Flow, phoneNumberID string) (bool, error) {
	if err := checkState(f, StateSelecting); err != nil {
		return false, err
	}
	if _, _, ok := f.Tree.Lookup(phoneNumberID); !ok {
		return false, ErrUnknownPhoneNumber
	}
	selected := f.Selection.Toggle(phoneNumberID)
	if f.NeedsVerification() {
		f.Message = msgVerifyRequired
	} else {
		f.Message = msgSelect
	}
	return selected, nil
}

// Reverify re-runs partner verification for the unverified business accounts
// owning selected numbers. The flow stays in selecting whatever the outcome;
// remaining failures leave a guidance message.
func (o *Orchestrator) Reverify(ctx context.Context, f *Flow) error {
	if err := checkState(f, StateSelecting); err != nil {
		return err
	}

	ids := f.Selection.UnverifiedBusinessAccountIDs(f.Tree)
	if len(ids) == 0 {
		f.Message = msgSelect
		return nil
	}

	verifications := verifyAll(ctx, o.Verifier, ids, o.VerifyConcurrency)
	f.Tree.MergeVerification(verifications)

	if anyFailed(verifications) {
		f.Message = msgVerifyRequired
	} else {
		f.Message = msgSelect
	}
	return nil
}

// Confirm finalises the flow: exchange, upsert, subscribe. Rejected with
// ErrConfirmRejected, without any side effect, when the selection is empty or
// holds unverified numbers. Fatal failures return the *Error and leave the flow in error.
func (o *Orchestrator) Confirm(ctx context.Context, f *Flow) error {
	if err := checkState(f, StateSelecting); err != nil {
		return err
	}
	if f.Selection.Len() == 0 || f.Selection.IsAnySelectedUnverified(f.Tree) {
		return ErrConfirmRejected
	}

	f.State = StateProcessing
	f.Message = msgConnecting
	numbers := f.Selection.Numbers(f.Tree)
	accountIDs := f.Selection.BusinessAccountIDs(f.Tree)

	longLived, err := o.Exchanger.ExchangeToken(ctx, f.AccessToken)
	if err != nil {
		return o.fail(ctx, f, newError(KindExchange, "could not obtain a long-lived token", err))
	}

	connectedAt := o.now()
	rec := ConnectionRecord{
		ClientID:       f.ClientID,
		ExtensionID:    WhatsAppExtensionID,
		IsConnected:    true,
		ExtensionName:  WhatsAppExtensionName,
		ConnectedAt:    connectedAt,
		LongLivedToken: longLived,
		TokenExpiresAt: connectedAt.Add(o.tokenValidity()),
		AccessToken:    f.AccessToken,
		PageIDs:        numbers,
	}
	if err := upsertConnection(ctx, o.Extensions, o.Locker, rec); err != nil {
		return o.fail(ctx, f, newError(KindPersistence, "error connecting WhatsApp", err))
	}

	f.Subscriptions = subscribeAll(ctx, o.Subscriber, o.Retrier, longLived, accountIDs)
	f.Selection.Clear()
	f.Message = msgConnected
	o.succeed(ctx, f)

	slog.Info("whatsapp connected",
		"flow_id", f.ID, "client_id", f.ClientID,
		"numbers", len(numbers), "subscription_failures", len(f.Subscriptions.Failed()))
	return nil
}

// fail moves f to the error state, notifies the opener and returns ce.
func (o *Orchestrator) fail(ctx context.Context, f *Flow, ce *Error) error {
	f.State = StateError
	f.Message = ce.Message
	f.Error = &FlowError{Kind: ce.Kind, Message: ce.Message}
	slog.Warn("connection flow failed", "flow_id", f.ID, "client_id", f.ClientID, "kind", ce.Kind, "error", ce)
	o.notify(ctx, f, OpenerMessage{Type: MessageAuthError, Error: ce.Message})
	return ce
}

// succeed moves f to the success state and notifies the opener with the access token.
func (o *Orchestrator) succeed(ctx context.Context, f *Flow) {
	f.State = StateSuccess
	o.notify(ctx, f, OpenerMessage{Type: MessageAuthToken, Token: f.AccessToken})
}

// notify records msg on f and publishes it. At most once per flow; publish
// failures are logged, the recorded message is still returned to the caller.
func (o *Orchestrator) notify(ctx context.Context, f *Flow, msg OpenerMessage) {
	if f.Opener != nil {
		return
	}
	f.Opener = &msg
	if o.Notifier == nil {
		return
	}
	if err := o.Notifier.Notify(ctx, f.ID.String(), msg); err != nil {
		slog.Warn("opener notification failed", "flow_id", f.ID, "type", msg.Type, "error", err)
	}
}

func checkState(f *Flow, want State) error {
	if f.Terminal() {
		return ErrFlowFinished
	}
	if f.State != want {
		return ErrInvalidState
	}
	return nil
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o *Orchestrator) tokenValidity() time.Duration {
	if o.TokenValidity > 0 {
		return o.TokenValidity
	}
	return DefaultTokenValidity
}
