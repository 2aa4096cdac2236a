// errors.go -- Failure taxonomy for the connection flow.
//
// Every collaborator call is wrapped so the orchestrator only ever sees
// (value, error) where error is nil, a *Error with a Kind, or one of the
// sentinels below. Branching is done with errors.As / errors.Is.
package connect

import (
	"errors"
	"fmt"
)

// Kind classifies a failure by the stage that produced it.
type Kind string

const (
	KindRedirectParse Kind = "redirect_parse"
	KindProviderAuth  Kind = "provider_auth"
	KindDiscovery     Kind = "discovery"
	KindVerification  Kind = "verification"
	KindExchange      Kind = "exchange"
	KindPersistence   Kind = "persistence"
	KindSubscription  Kind = "subscription"
)

// Fatal reports whether a failure of this kind ends the flow in the error state.
// Verification and subscription failures are per-account and never block progress.
func (k Kind) Fatal() bool {
	switch k {
	case KindVerification, KindSubscription:
		return false
	default:
		return true
	}
}

// Error is the typed failure returned by every stage of the flow.
// Message is safe to show to the user; Err carries the underlying cause, if any.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// newError builds a *Error of the given kind.
func newError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// KindOf returns the Kind of err if it is (or wraps) a *Error, and "" otherwise.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// ErrConfirmRejected is returned by Confirm when the selection is empty or
// includes a number whose business account is not verified. The flow stays in
// the selecting state and no gateway call is made.
var ErrConfirmRejected = errors.New("confirm rejected")

// ErrInvalidState is returned when an operation is not allowed in the flow's current state.
var ErrInvalidState = errors.New("operation not allowed in current state")

// ErrFlowFinished is returned for any operation on a flow already in success or error.
var ErrFlowFinished = errors.New("flow already finished")

// ErrUnknownPhoneNumber is returned by Toggle for ids not present in the account tree.
var ErrUnknownPhoneNumber = errors.New("unknown phone number")
