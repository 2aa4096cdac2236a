// middleware.go

// Flow cookie middleware.
package api

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"github.com/MGallo-Code/wabalink/internal/connect"
)

// contextKey is unexported to prevent collisions with other packages using the same context.
type contextKey string

const flowKey contextKey = "flow"
const flowCacheKey contextKey = "flow_cache_key"

// FlowFromContext retrieves the flow loaded by RequireFlow.
// Returns nil and false if RequireFlow hasn't run.
func FlowFromContext(ctx context.Context) (*connect.Flow, bool) {
	f, ok := ctx.Value(flowKey).(*connect.Flow)
	return f, ok
}

// cacheKeyFromContext retrieves the cache key of the flow loaded by RequireFlow.
func cacheKeyFromContext(ctx context.Context) (string, bool) {
	key, ok := ctx.Value(flowCacheKey).(string)
	return key, ok
}

// RequireFlow resolves the flow cookie to a cached flow and injects it into context.
// Returns 401 without a usable cookie, 404 when the flow expired or never existed.
func (h *ConnectHandler) RequireFlow(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(flowCookieName(h.CookieSecure))
		if err != nil || c.Value == "" {
			logWarn(r, "require flow failed", "reason", "missing_flow_cookie")
			Unauthorized(w, "no connection flow")
			return
		}
		decoded, err := base64.RawURLEncoding.DecodeString(c.Value)
		if err != nil {
			logWarn(r, "require flow failed", "reason", "invalid_cookie_encoding")
			Unauthorized(w, "no connection flow")
			return
		}
		key := cacheKey(sha256.Sum256(decoded))

		f, ok := h.loadFlow(w, r, key)
		if !ok {
			return
		}

		ctx := context.WithValue(r.Context(), flowKey, f)
		ctx = context.WithValue(ctx, flowCacheKey, key)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// flowLockTTL outlives a confirm: one exchange, one upsert and a subscription per account.
const flowLockTTL = 2 * time.Minute

// LockFlow holds the per-flow lock for the rest of the request and reloads the
// flow under it, so concurrent mutations of one flow run one at a time.
// Must run after RequireFlow. Returns 409 while another request holds the flow,
// 404 when the flow finished before the lock was taken.
func (h *ConnectHandler) LockFlow(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.Locks == nil {
			next.ServeHTTP(w, r)
			return
		}
		_, key, ok := h.flowFromRequest(w, r)
		if !ok {
			return
		}

		release, err := h.Locks.Acquire(r.Context(), "flow:"+key, flowLockTTL)
		if err != nil {
			if !h.isLocked(err) {
				logError(r, "flow lock failed", "error", err)
				InternalServerError(w, r, err)
				return
			}
			logWarn(r, "lock flow failed", "reason", "flow_busy")
			Conflict(w, "connection flow busy")
			return
		}
		defer release()

		f, ok := h.loadFlow(w, r, key)
		if !ok {
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), flowKey, f)))
	})
}

// loadFlow reads the flow under key, writing 404 on a miss and 500 otherwise.
func (h *ConnectHandler) loadFlow(w http.ResponseWriter, r *http.Request, key string) (*connect.Flow, bool) {
	f, err := h.Cache.GetFlow(r.Context(), key)
	if err == nil {
		return f, true
	}
	if !h.isMiss(err) {
		logError(r, "flow cache lookup failed", "error", err)
		InternalServerError(w, r, err)
		return nil, false
	}
	logWarn(r, "require flow failed", "reason", "flow_not_found")
	ClearFlowCookie(w, h.CookieSecure)
	NotFound(w, "connection flow not found or expired")
	return nil, false
}

// flowFromRequest returns the flow and cache key injected by RequireFlow.
// Writes a 500 and reports false when the middleware did not run.
func (h *ConnectHandler) flowFromRequest(w http.ResponseWriter, r *http.Request) (*connect.Flow, string, bool) {
	f, ok := FlowFromContext(r.Context())
	key, keyOK := cacheKeyFromContext(r.Context())
	if !ok || !keyOK {
		logError(r, "flow handler called without flow in context")
		InternalServerError(w, r, errors.New("missing flow context"))
		return nil, "", false
	}
	return f, key, true
}

func (h *ConnectHandler) isMiss(err error) bool {
	if h.IsMiss != nil {
		return h.IsMiss(err)
	}
	return true
}

func (h *ConnectHandler) isLocked(err error) bool {
	if h.IsLocked != nil {
		return h.IsLocked(err)
	}
	return true
}
