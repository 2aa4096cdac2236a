// stores.go
//
// Shared mock implementations of the connect collaborators and the api flow cache.
// Imported by test files across packages to avoid duplicate mock definitions.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/MGallo-Code/wabalink/internal/connect"
)

// MockGateway implements connect.Directory, PartnerVerifier, TokenExchanger and Subscriber.
// Every call is recorded. Use *Err fields (or the per-id maps) to inject failures.
type MockGateway struct {
	// Directory
	Accounts []connect.BusinessAccount
	FetchErr error

	// Partner verification, keyed by business account id.
	// Ids missing from Verified verify successfully.
	Verified  map[string]bool
	VerifyErr map[string]error

	// Token exchange
	LongLivedToken string
	ExchangeErr    error

	// Subscription, keyed by business account id.
	SubscribeErr map[string]error

	FetchCalls     []string // access tokens
	VerifyCalls    []string // business account ids
	ExchangeCalls  []string // short-lived tokens
	SubscribeCalls []string // business account ids

	mu sync.Mutex
}

func (m *MockGateway) FetchBusinessAccounts(_ context.Context, accessToken string) ([]connect.BusinessAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FetchCalls = append(m.FetchCalls, accessToken)
	if m.FetchErr != nil {
		return nil, m.FetchErr
	}
	return m.Accounts, nil
}

func (m *MockGateway) VerifyPartner(_ context.Context, businessAccountID string) (connect.VerificationResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.VerifyCalls = append(m.VerifyCalls, businessAccountID)
	if err := m.VerifyErr[businessAccountID]; err != nil {
		return connect.VerificationResult{}, err
	}
	ok, set := m.Verified[businessAccountID]
	if set && !ok {
		return connect.VerificationResult{Success: false, Message: "partner access not granted"}, nil
	}
	return connect.VerificationResult{Success: true}, nil
}

func (m *MockGateway) ExchangeToken(_ context.Context, shortLivedToken string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ExchangeCalls = append(m.ExchangeCalls, shortLivedToken)
	if m.ExchangeErr != nil {
		return "", m.ExchangeErr
	}
	return m.LongLivedToken, nil
}

func (m *MockGateway) Subscribe(_ context.Context, _, businessAccountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SubscribeCalls = append(m.SubscribeCalls, businessAccountID)
	return m.SubscribeErr[businessAccountID]
}

// SetVerified marks a business account as verified or not.
func (m *MockGateway) SetVerified(businessAccountID string, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Verified == nil {
		m.Verified = make(map[string]bool)
	}
	m.Verified[businessAccountID] = ok
}

// Calls returns the total number of gateway calls made.
func (m *MockGateway) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.FetchCalls) + len(m.VerifyCalls) + len(m.ExchangeCalls) + len(m.SubscribeCalls)
}

// MockExtensionStore implements connect.ExtensionStore.
// Records behaves like a table without a unique index.
type MockExtensionStore struct {
	ListErr   error
	CreateErr error
	UpdateErr error

	Records []connect.Extension

	Created []connect.ConnectionRecord
	Updated map[string]connect.ConnectionPatch // keyed by record id

	mu sync.Mutex
}

func (m *MockExtensionStore) ListExtensions(_ context.Context, clientID string) ([]connect.Extension, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	out := []connect.Extension{}
	for _, r := range m.Records {
		if r.ClientID == clientID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *MockExtensionStore) CreateExtension(_ context.Context, rec connect.ConnectionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.Created = append(m.Created, rec)
	m.Records = append(m.Records, connect.Extension{
		ID:               "ext-" + strconv.Itoa(len(m.Records)+1),
		ConnectionRecord: rec,
	})
	return nil
}

func (m *MockExtensionStore) UpdateExtension(_ context.Context, id string, patch connect.ConnectionPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	for i := range m.Records {
		if m.Records[i].ID != id {
			continue
		}
		if m.Updated == nil {
			m.Updated = make(map[string]connect.ConnectionPatch)
		}
		m.Updated[id] = patch
		r := &m.Records[i]
		r.ExtensionID = patch.ExtensionID
		r.IsConnected = patch.IsConnected
		r.ConnectedAt = patch.ConnectedAt
		r.LongLivedToken = patch.LongLivedToken
		r.TokenExpiresAt = patch.TokenExpiresAt
		r.AccessToken = patch.AccessToken
		r.PageIDs = patch.PageIDs
		return nil
	}
	return fmt.Errorf("extension %s not found", id)
}

// MockNotifier implements connect.Notifier and records every message.
type MockNotifier struct {
	Err      error
	Messages []connect.OpenerMessage
	FlowIDs  []string

	mu sync.Mutex
}

func (m *MockNotifier) Notify(_ context.Context, flowID string, msg connect.OpenerMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FlowIDs = append(m.FlowIDs, flowID)
	m.Messages = append(m.Messages, msg)
	return m.Err
}

// ErrMockLocked is returned by MockLocker when the key is already held.
var ErrMockLocked = errors.New("mock lock held")

// MockLocker implements connect.Locker with an in-memory key set.
type MockLocker struct {
	Held     map[string]bool
	Acquired []string

	mu sync.Mutex
}

func (m *MockLocker) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Held == nil {
		m.Held = make(map[string]bool)
	}
	if m.Held[key] {
		return nil, ErrMockLocked
	}
	m.Held[key] = true
	m.Acquired = append(m.Acquired, key)
	return func() {
		m.mu.Lock()
		delete(m.Held, key)
		m.mu.Unlock()
	}, nil
}

// MockRetrier implements connect.SubscriptionRetrier.
type MockRetrier struct {
	Err    error
	Queued []string // business account ids

	mu sync.Mutex
}

func (m *MockRetrier) EnqueueSubscription(_ context.Context, _, businessAccountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Queued = append(m.Queued, businessAccountID)
	return nil
}

// MockFlowCache implements api.FlowCache.
// Flows is keyed by the hashed cookie key, like Redis.
type MockFlowCache struct {
	SaveErr   error
	GetErr    error
	DeleteErr error

	Flows map[string]*connect.Flow

	mu sync.Mutex
}

// NewMockFlowCache returns an empty MockFlowCache ready for use.
func NewMockFlowCache() *MockFlowCache {
	return &MockFlowCache{Flows: make(map[string]*connect.Flow)}
}

// ErrMockFlowMiss is returned by MockFlowCache.GetFlow for unknown keys.
var ErrMockFlowMiss = errors.New("flow not found")

func (m *MockFlowCache) SaveFlow(_ context.Context, key string, f *connect.Flow, _ time.Duration) error {
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Flows == nil {
		m.Flows = make(map[string]*connect.Flow)
	}
	cp := *f
	m.Flows[key] = &cp
	return nil
}

func (m *MockFlowCache) GetFlow(_ context.Context, key string) (*connect.Flow, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.Flows[key]
	if !ok {
		return nil, ErrMockFlowMiss
	}
	cp := *f
	return &cp, nil
}

func (m *MockFlowCache) DeleteFlow(_ context.Context, key string) error {
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Flows, key)
	return nil
}
