// session.go

// Flow token generation and cookie management.
package api

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"
)

// Flow cookie names. The __Host- prefix requires Secure, so plain-HTTP
// development (CookieSecure=false) falls back to the bare name.
const (
	flowCookieSecure   = "__Host-wa-flow"
	flowCookieInsecure = "wa-flow"
)

func flowCookieName(secure bool) string {
	if secure {
		return flowCookieSecure
	}
	return flowCookieInsecure
}

// GenerateToken returns a 256-bit random flow token and its SHA-256 hash.
// Token goes in the cookie; hash is the cache key.
func GenerateToken() (*[32]byte, *[32]byte, error) {
	var token [32]byte
	_, err := rand.Read(token[:])
	if err != nil {
		return nil, nil, fmt.Errorf("generating token with rand: %w", err)
	}
	hash := sha256.Sum256(token[:])
	return &token, &hash, nil
}

// cacheKey is the flow cache key for a token hash.
func cacheKey(hash [32]byte) string {
	return base64.RawURLEncoding.EncodeToString(hash[:])
}

// SetFlowCookie writes the flow cookie with HttpOnly, SameSite=Lax, living ttl.
func SetFlowCookie(w http.ResponseWriter, rawToken [32]byte, ttl time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     flowCookieName(secure),
		Value:    base64.RawURLEncoding.EncodeToString(rawToken[:]),
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(ttl.Seconds()),
	})
}

// ClearFlowCookie overwrites the flow cookie with MaxAge=-1 to trigger browser deletion.
func ClearFlowCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     flowCookieName(secure),
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}
