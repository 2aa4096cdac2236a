// handler.go -- HTTP handlers for the /whatsapp/* connection flow.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/MGallo-Code/wabalink/internal/connect"
	"github.com/MGallo-Code/wabalink/internal/oauth"
)

// FlowCache defines flow cache operations needed by the handlers.
// Satisfied by *store.RedisStore -- defined here (at consumer) per Go convention.
type FlowCache interface {
	// SaveFlow stores f under key for ttl.
	SaveFlow(ctx context.Context, key string, f *connect.Flow, ttl time.Duration) error

	// GetFlow loads the flow under key. See ConnectHandler.IsMiss.
	GetFlow(ctx context.Context, key string) (*connect.Flow, error)

	// DeleteFlow removes the flow under key.
	DeleteFlow(ctx context.Context, key string) error
}

// Flows drives a connection flow through its states.
// Satisfied by *connect.Orchestrator.
type Flows interface {
	Start(ctx context.Context, fragment string) (*connect.Flow, error)
	Toggle(f *connect.Flow, phoneNumberID string) (bool, error)
	Reverify(ctx context.Context, f *connect.Flow) error
	Confirm(ctx context.Context, f *connect.Flow) error
}

// FlowLocker serialises requests that mutate one flow.
// Satisfied by *store.RedisLocker.
type FlowLocker interface {
	// Acquire takes key for at most ttl and returns its release func.
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// HealthChecker pings a backing service.
// Satisfied by *store.PostgresStore and *store.RedisStore.
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

// ConnectHandler holds dependencies for all /whatsapp/* handlers and middleware.
type ConnectHandler struct {
	Flows Flows
	Cache FlowCache

	// IsMiss reports whether a GetFlow error means the flow is simply absent.
	// Defaults to treating every error as a miss.
	IsMiss func(error) bool

	// Locks guards Toggle, Verify and Confirm (see LockFlow). Nil disables locking.
	Locks FlowLocker

	// IsLocked reports whether an Acquire error means another request holds the flow.
	// Defaults to treating every error as contention.
	IsLocked func(error) bool

	// Provider builds the login dialog URL. Nil disables GET /whatsapp/login.
	Provider oauth.Provider

	FlowTTL      time.Duration
	CookieSecure bool

	PS HealthChecker
	RS HealthChecker
}

// Login handles GET /whatsapp/login?client_id= -- redirects to the provider dialog.
// Returns 404 when no provider is configured, 400 without client_id.
func (h *ConnectHandler) Login(w http.ResponseWriter, r *http.Request) {
	if h.Provider == nil {
		NotFound(w, "login not configured")
		return
	}
	clientID := r.URL.Query().Get("client_id")
	if clientID == "" {
		BadRequest(w, "client_id required")
		return
	}

	logInfo(r, "redirecting to login dialog", "provider", h.Provider.Name(), "client_id", clientID)
	http.Redirect(w, r, h.Provider.LoginURL(clientID), http.StatusFound)
}

// Callback handles POST /whatsapp/callback -- starts a flow from the redirect fragment.
// A flow waiting for selection is cached and bound to a new flow cookie.
// Fatal flow failures are still 200: the error-state flow is the result.
func (h *ConnectHandler) Callback(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Fragment string `json:"fragment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		logWarn(r, "failed to decode callback input", "error", err)
		BadRequest(w, "error decoding request body")
		return
	}

	f, err := h.Flows.Start(r.Context(), input.Fragment)
	if f == nil {
		InternalServerError(w, r, err)
		return
	}
	if err != nil {
		logWarn(r, "connection flow failed at start", "flow_id", f.ID, "kind", connect.KindOf(err), "error", err)
	}

	if !f.Terminal() {
		token, hash, err := GenerateToken()
		if err != nil {
			InternalServerError(w, r, err)
			return
		}
		if err := h.Cache.SaveFlow(r.Context(), cacheKey(*hash), f, h.flowTTL()); err != nil {
			logError(r, "failed to cache flow", "flow_id", f.ID, "error", err)
			InternalServerError(w, r, err)
			return
		}
		SetFlowCookie(w, *token, h.flowTTL(), h.CookieSecure)
	}

	logInfo(r, "connection flow started", "flow_id", f.ID, "client_id", f.ClientID, "state", f.State)
	writeJSON(w, http.StatusOK, newFlowView(f))
}

// GetFlow handles GET /whatsapp/flow -- returns the current flow view.
func (h *ConnectHandler) GetFlow(w http.ResponseWriter, r *http.Request) {
	f, _, ok := h.flowFromRequest(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newFlowView(f))
}

// Toggle handles POST /whatsapp/flow/toggle -- flips selection of one phone number.
func (h *ConnectHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	f, key, ok := h.flowFromRequest(w, r)
	if !ok {
		return
	}

	var input struct {
		PhoneNumberID string `json:"phone_number_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		logWarn(r, "failed to decode toggle input", "error", err)
		BadRequest(w, "error decoding request body")
		return
	}
	if input.PhoneNumberID == "" {
		BadRequest(w, "phone_number_id required")
		return
	}

	if _, err := h.Flows.Toggle(f, input.PhoneNumberID); err != nil {
		h.flowError(w, r, f, err)
		return
	}
	h.saveAndRespond(w, r, key, f)
}

// Verify handles POST /whatsapp/flow/verify -- re-checks partner access for selected unverified numbers.
func (h *ConnectHandler) Verify(w http.ResponseWriter, r *http.Request) {
	f, key, ok := h.flowFromRequest(w, r)
	if !ok {
		return
	}
	if err := h.Flows.Reverify(r.Context(), f); err != nil {
		h.flowError(w, r, f, err)
		return
	}
	h.saveAndRespond(w, r, key, f)
}

// Confirm handles POST /whatsapp/flow/confirm -- exchanges, persists and subscribes.
// Runs detached from the request context so a closed popup cannot abort it half way.
func (h *ConnectHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	f, key, ok := h.flowFromRequest(w, r)
	if !ok {
		return
	}

	err := h.Flows.Confirm(context.WithoutCancel(r.Context()), f)
	if err != nil && !f.Terminal() {
		h.flowError(w, r, f, err)
		return
	}
	if err != nil {
		logWarn(r, "connection flow failed at confirm", "flow_id", f.ID, "kind", connect.KindOf(err), "error", err)
	} else {
		logInfo(r, "connection flow confirmed", "flow_id", f.ID, "client_id", f.ClientID)
	}
	h.saveAndRespond(w, r, key, f)
}

// saveAndRespond persists f (or drops it once terminal) and writes the view.
func (h *ConnectHandler) saveAndRespond(w http.ResponseWriter, r *http.Request, key string, f *connect.Flow) {
	// Detached: the outcome must be stored even if the client went away.
	ctx := context.WithoutCancel(r.Context())
	if f.Terminal() {
		if err := h.Cache.DeleteFlow(ctx, key); err != nil {
			logWarn(r, "failed to delete finished flow", "flow_id", f.ID, "error", err)
		}
		ClearFlowCookie(w, h.CookieSecure)
	} else if err := h.Cache.SaveFlow(ctx, key, f, h.flowTTL()); err != nil {
		logError(r, "failed to cache flow", "flow_id", f.ID, "error", err)
		InternalServerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newFlowView(f))
}

// flowError maps orchestrator sentinels to status codes.
func (h *ConnectHandler) flowError(w http.ResponseWriter, r *http.Request, f *connect.Flow, err error) {
	switch {
	case errors.Is(err, connect.ErrConfirmRejected):
		logInfo(r, "confirm rejected", "flow_id", f.ID, "selected", f.Selection.Len(), "needs_verification", f.NeedsVerification())
		Conflict(w, "select at least one verified phone number")
	case errors.Is(err, connect.ErrInvalidState):
		Conflict(w, "operation not allowed in current state")
	case errors.Is(err, connect.ErrFlowFinished):
		Gone(w, "connection flow already finished")
	case errors.Is(err, connect.ErrUnknownPhoneNumber):
		BadRequest(w, "unknown phone_number_id")
	default:
		InternalServerError(w, r, err)
	}
}

func (h *ConnectHandler) flowTTL() time.Duration {
	if h.FlowTTL > 0 {
		return h.FlowTTL
	}
	return 30 * time.Minute
}
