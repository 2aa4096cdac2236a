// types.go -- Domain types shared by the flow, the gateway clients and the stores.
package connect

import (
	"strings"
	"time"
)

// WhatsAppExtensionID is the fixed extension identifier of the WhatsApp integration.
const WhatsAppExtensionID = "a2a83703-8c62-4216-b94d-9ecfdfc32438"

// WhatsAppExtensionName is the extension name stored on creation. Immutable afterwards.
const WhatsAppExtensionName = "whatsapp"

// DefaultTokenValidity is how long a long-lived token is considered valid after connecting.
const DefaultTokenValidity = 60 * 24 * time.Hour

// PhoneNumber is a number registered under a WABA.
// ID is the selection key; DisplayPhoneNumber may contain '+' and spaces.
type PhoneNumber struct {
	ID                 string `json:"phone_number_id"`
	DisplayPhoneNumber string `json:"display_phone_number"`
}

// BusinessAccount is one raw record from the business directory: a single WABA
// and the business that owns it. A business owning several WABAs yields several
// records sharing BusinessName.
type BusinessAccount struct {
	BusinessAccountID string        `json:"business_account_id"`
	BusinessName      string        `json:"business_name"`
	WabaID            string        `json:"waba_id"`
	WabaName          string        `json:"waba_name"`
	PhoneNumbers      []PhoneNumber `json:"phone_numbers"`
}

// VerificationResult is the partner-verification outcome for one business account.
type VerificationResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// Verification pairs a business account id with its verification outcome.
type Verification struct {
	BusinessAccountID string
	Result            VerificationResult
}

// SelectedNumber is one entry of ConnectionRecord.PageIDs.
// JSON keys are mixed-case on purpose; consumers of the record read them as is.
type SelectedNumber struct {
	BusinessAccountID string `json:"businessAccountId"`
	BusinessName      string `json:"businessName"`
	WabaName          string `json:"waba_name"`
	PhoneNumberID     string `json:"phone_number_id"`
	PhoneNumber       string `json:"phone_number"`
}

// ConnectionRecord is the persisted connection state for one (client, extension) pair.
type ConnectionRecord struct {
	ClientID       string           `json:"clientId"`
	ExtensionID    string           `json:"extensionId"`
	IsConnected    bool             `json:"isConnected"`
	ExtensionName  string           `json:"extensionName"`
	ConnectedAt    time.Time        `json:"connectedAt"`
	LongLivedToken string           `json:"longLivedToken"`
	TokenExpiresAt time.Time        `json:"tokenExpiresAt"`
	AccessToken    string           `json:"accessToken"`
	PageIDs        []SelectedNumber `json:"pageIds"`
}

// ConnectionPatch is the update payload for an existing record.
// ClientID and ExtensionName are immutable after creation and have no field here.
type ConnectionPatch struct {
	ExtensionID    string           `json:"extensionId"`
	IsConnected    bool             `json:"isConnected"`
	ConnectedAt    time.Time        `json:"connectedAt"`
	LongLivedToken string           `json:"longLivedToken"`
	TokenExpiresAt time.Time        `json:"tokenExpiresAt"`
	AccessToken    string           `json:"accessToken"`
	PageIDs        []SelectedNumber `json:"pageIds"`
}

// Patch returns every mutable field of the record.
func (r ConnectionRecord) Patch() ConnectionPatch {
	return ConnectionPatch{
		ExtensionID:    r.ExtensionID,
		IsConnected:    r.IsConnected,
		ConnectedAt:    r.ConnectedAt,
		LongLivedToken: r.LongLivedToken,
		TokenExpiresAt: r.TokenExpiresAt,
		AccessToken:    r.AccessToken,
		PageIDs:        r.PageIDs,
	}
}

// Extension is a stored connection record together with its storage id.
type Extension struct {
	ID string
	ConnectionRecord
}

// NormalizePhoneNumber strips '+' and spaces. No other character is altered.
func NormalizePhoneNumber(display string) string {
	return strings.NewReplacer("+", "", " ", "").Replace(display)
}
