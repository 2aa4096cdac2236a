// flow.go -- State of one connection run.
package connect

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// State is the orchestrator state of a flow.
type State string

const (
	StateProcessing State = "processing"
	StateSelecting  State = "selecting"
	StateSuccess    State = "success"
	StateError      State = "error"
)

// Opener message types.
const (
	MessageAuthToken = "WHATSAPP_AUTH_TOKEN"
	MessageAuthError = "WHATSAPP_AUTH_ERROR"
)

// OpenerMessage is posted to the window (or any parent process) that started the flow.
// Exactly one is produced per flow, on entry to success or error.
type OpenerMessage struct {
	Type  string `json:"type"`
	Token string `json:"token,omitempty"`
	Error string `json:"error,omitempty"`
}

// FlowError is the user-facing description of a fatal failure.
type FlowError struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

// Flow is one resumable connection run. It is plain data so it can be cached
// between requests; all transitions go through Orchestrator.
type Flow struct {
	ID            uuid.UUID         `json:"id"`
	ClientID      string            `json:"client_id,omitempty"`
	AccessToken   string            `json:"access_token"`
	State         State             `json:"state"`
	Message       string            `json:"message,omitempty"`
	Tree          *Tree             `json:"tree,omitempty"`
	Selection     Selection         `json:"selection"`
	Error         *FlowError        `json:"error,omitempty"`
	Opener        *OpenerMessage    `json:"opener,omitempty"`
	Subscriptions SubscriptionBatch `json:"subscriptions,omitempty"`
	StartedAt     time.Time         `json:"started_at"`
}

// Terminal reports whether the flow reached success or error.
func (f *Flow) Terminal() bool {
	return f.State == StateSuccess || f.State == StateError
}

// NeedsVerification reports whether the current selection must be re-verified before confirming.
func (f *Flow) NeedsVerification() bool {
	return f.Tree != nil && f.Selection.IsAnySelectedUnverified(f.Tree)
}

// CanConfirm reports whether Confirm would be accepted.
func (f *Flow) CanConfirm() bool {
	return f.State == StateSelecting && f.Selection.Len() > 0 && !f.NeedsVerification()
}
