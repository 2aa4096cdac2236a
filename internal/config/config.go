// config.go

// Environment variable loading and validation.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all env configuration vars for the service.
type Config struct {
	DatabaseURL string
	RedisURL    string
	GatewayURL  string
	Port        string
	LogLevel    slog.Level

	// CookieSecure marks the flow cookie Secure and gives it the __Host- prefix.
	// Default true; set COOKIE_SECURE=false for local plain-HTTP development only.
	CookieSecure bool

	// FlowTTL bounds how long an abandoned connection flow stays resumable. Default 30m.
	FlowTTL time.Duration

	// TokenValidity is added to the connect time to get a record's token expiry. Default 1440h (60d).
	TokenValidity time.Duration

	// VerifyConcurrency caps concurrent partner-verification calls per flow. Default 8.
	VerifyConcurrency int

	// GatewayTimeout bounds each call to the gateway service. Default 15s.
	GatewayTimeout time.Duration

	// SubscriptionRetryMax is how many times the reconcile worker retries a failed
	// webhook subscription. Default 3; 0 disables the retry queue.
	SubscriptionRetryMax int

	// UpsertLock serialises record upserts per client through Redis.
	// Default true; set UPSERT_LOCK=false to disable.
	UpsertLock bool

	// Meta login dialog. All optional -- empty MetaAppID disables GET /whatsapp/login.
	MetaAppID        string
	MetaRedirectURL  string
	MetaConfigID     string
	MetaGraphVersion string // defaults to v21.0
}

// LoadConfig reads environment variables and returns a validated Config.
// Returns an error if required variables (DATABASE_URL, REDIS_URL, GATEWAY_URL) are missing.
func LoadConfig() (*Config, error) {
	cfg := &Config{}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	cfg.RedisURL = os.Getenv("REDIS_URL")
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}

	cfg.GatewayURL = strings.TrimRight(os.Getenv("GATEWAY_URL"), "/")
	if cfg.GatewayURL == "" {
		return nil, fmt.Errorf("GATEWAY_URL is required")
	}
	if !strings.HasPrefix(cfg.GatewayURL, "http://") && !strings.HasPrefix(cfg.GatewayURL, "https://") {
		return nil, fmt.Errorf("GATEWAY_URL must start with http:// or https://")
	}

	cfg.Port = os.Getenv("PORT")
	if cfg.Port == "" {
		cfg.Port = "7866"
	}

	// Parse log level, default to info
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		cfg.LogLevel = slog.LevelDebug
	case "warn":
		cfg.LogLevel = slog.LevelWarn
	case "error":
		cfg.LogLevel = slog.LevelError
	default:
		cfg.LogLevel = slog.LevelInfo
	}

	// Default true -- only explicit "false" disables.
	cfg.CookieSecure = os.Getenv("COOKIE_SECURE") != "false"
	cfg.UpsertLock = os.Getenv("UPSERT_LOCK") != "false"

	cfg.FlowTTL = envDuration("FLOW_TTL", 30*time.Minute)
	cfg.TokenValidity = envDuration("TOKEN_VALIDITY", 1440*time.Hour)
	cfg.VerifyConcurrency = envInt("VERIFY_CONCURRENCY", 8)
	cfg.GatewayTimeout = envDuration("GATEWAY_TIMEOUT", 15*time.Second)
	cfg.SubscriptionRetryMax = envNonNegInt("SUBSCRIPTION_RETRY_MAX", 3)

	// Meta -- all optional; empty app id means the login redirect is disabled.
	cfg.MetaAppID = os.Getenv("META_APP_ID")
	cfg.MetaRedirectURL = os.Getenv("META_REDIRECT_URL")
	cfg.MetaConfigID = os.Getenv("META_CONFIG_ID")
	cfg.MetaGraphVersion = os.Getenv("META_GRAPH_VERSION")
	if cfg.MetaGraphVersion == "" {
		cfg.MetaGraphVersion = "v21.0"
	}

	// The access token travels in the redirect fragment; it must never land on plain HTTP.
	if cfg.MetaAppID != "" && !strings.HasPrefix(cfg.MetaRedirectURL, "https://") {
		return nil, fmt.Errorf("META_REDIRECT_URL must be set and start with https://")
	}

	return cfg, nil
}

// envInt reads an env var as a positive int, returning def if missing or unparseable.
func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		slog.Warn("invalid env var, using default", "key", key, "value", v, "default", def)
		return def
	}
	return n
}

// envNonNegInt is envInt that also accepts 0.
func envNonNegInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		slog.Warn("invalid env var, using default", "key", key, "value", v, "default", def)
		return def
	}
	return n
}

// envDuration reads an env var as time.Duration, returning def if missing or unparseable.
func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		slog.Warn("invalid env var, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}
