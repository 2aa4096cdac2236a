package config

import (
	"log/slog"
	"testing"
	"time"
)

// --- LoadConfig ---

func TestLoadConfig(t *testing.T) {
	// Helper sets the minimum required env vars for a valid config
	setRequired := func(t *testing.T) {
		t.Helper()
		t.Setenv("DATABASE_URL", "postgres://localhost/wabalink")
		t.Setenv("REDIS_URL", "redis://localhost:6379")
		t.Setenv("GATEWAY_URL", "https://gateway.internal/")
		t.Setenv("META_APP_ID", "")
	}

	t.Run("returns valid config with all required vars", func(t *testing.T) {
		setRequired(t)

		cfg, err := LoadConfig()
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.DatabaseURL != "postgres://localhost/wabalink" {
			t.Errorf("DatabaseURL: expected %q, got %q", "postgres://localhost/wabalink", cfg.DatabaseURL)
		}
		if cfg.RedisURL != "redis://localhost:6379" {
			t.Errorf("RedisURL: expected %q, got %q", "redis://localhost:6379", cfg.RedisURL)
		}
		if cfg.GatewayURL != "https://gateway.internal" {
			t.Errorf("GatewayURL: expected trailing slash trimmed, got %q", cfg.GatewayURL)
		}
	})

	t.Run("errors when a required var is missing", func(t *testing.T) {
		for _, key := range []string{"DATABASE_URL", "REDIS_URL", "GATEWAY_URL"} {
			setRequired(t)
			t.Setenv(key, "")

			if _, err := LoadConfig(); err == nil {
				t.Errorf("expected error for missing %s, got nil", key)
			}
		}
	})

	t.Run("errors when GATEWAY_URL has no scheme", func(t *testing.T) {
		setRequired(t)
		t.Setenv("GATEWAY_URL", "gateway.internal")

		if _, err := LoadConfig(); err == nil {
			t.Fatal("expected error for schemeless GATEWAY_URL, got nil")
		}
	})

	t.Run("defaults", func(t *testing.T) {
		setRequired(t)
		for _, key := range []string{"PORT", "LOG_LEVEL", "FLOW_TTL", "TOKEN_VALIDITY", "VERIFY_CONCURRENCY",
			"GATEWAY_TIMEOUT", "SUBSCRIPTION_RETRY_MAX", "UPSERT_LOCK", "COOKIE_SECURE", "META_GRAPH_VERSION"} {
			t.Setenv(key, "")
		}

		cfg, err := LoadConfig()
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.Port != "7866" {
			t.Errorf("Port: expected %q, got %q", "7866", cfg.Port)
		}
		if cfg.LogLevel != slog.LevelInfo {
			t.Errorf("LogLevel: expected info, got %v", cfg.LogLevel)
		}
		if cfg.FlowTTL != 30*time.Minute {
			t.Errorf("FlowTTL: expected 30m, got %v", cfg.FlowTTL)
		}
		if cfg.TokenValidity != 60*24*time.Hour {
			t.Errorf("TokenValidity: expected 60 days, got %v", cfg.TokenValidity)
		}
		if cfg.VerifyConcurrency != 8 {
			t.Errorf("VerifyConcurrency: expected 8, got %d", cfg.VerifyConcurrency)
		}
		if cfg.GatewayTimeout != 15*time.Second {
			t.Errorf("GatewayTimeout: expected 15s, got %v", cfg.GatewayTimeout)
		}
		if cfg.SubscriptionRetryMax != 3 {
			t.Errorf("SubscriptionRetryMax: expected 3, got %d", cfg.SubscriptionRetryMax)
		}
		if !cfg.UpsertLock || !cfg.CookieSecure {
			t.Error("UpsertLock and CookieSecure should default to true")
		}
		if cfg.MetaGraphVersion != "v21.0" {
			t.Errorf("MetaGraphVersion: expected %q, got %q", "v21.0", cfg.MetaGraphVersion)
		}
	})

	t.Run("invalid numbers fall back to defaults", func(t *testing.T) {
		setRequired(t)
		t.Setenv("VERIFY_CONCURRENCY", "-2")
		t.Setenv("FLOW_TTL", "soon")
		t.Setenv("SUBSCRIPTION_RETRY_MAX", "many")

		cfg, err := LoadConfig()
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.VerifyConcurrency != 8 || cfg.FlowTTL != 30*time.Minute || cfg.SubscriptionRetryMax != 3 {
			t.Errorf("expected defaults, got concurrency=%d ttl=%v retry=%d",
				cfg.VerifyConcurrency, cfg.FlowTTL, cfg.SubscriptionRetryMax)
		}
	})

	t.Run("SUBSCRIPTION_RETRY_MAX accepts zero", func(t *testing.T) {
		setRequired(t)
		t.Setenv("SUBSCRIPTION_RETRY_MAX", "0")

		cfg, err := LoadConfig()
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.SubscriptionRetryMax != 0 {
			t.Errorf("SubscriptionRetryMax: expected 0, got %d", cfg.SubscriptionRetryMax)
		}
	})

	t.Run("UPSERT_LOCK is false only when explicitly set to false", func(t *testing.T) {
		setRequired(t)
		t.Setenv("UPSERT_LOCK", "false")

		cfg, err := LoadConfig()
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.UpsertLock {
			t.Error("UpsertLock should be false when UPSERT_LOCK is \"false\"")
		}
	})

	t.Run("CookieSecure stays true for any non-false value", func(t *testing.T) {
		setRequired(t)
		// "true", "1", "yes", typos: all should result in secure cookies
		for _, val := range []string{"true", "1", "yes", "FALSE", "typo"} {
			t.Setenv("COOKIE_SECURE", val)

			cfg, err := LoadConfig()
			if err != nil {
				t.Fatalf("LoadConfig failed for %q: %v", val, err)
			}
			if !cfg.CookieSecure {
				t.Errorf("CookieSecure should be true for %q", val)
			}
		}
	})

	t.Run("META_APP_ID requires an https redirect", func(t *testing.T) {
		setRequired(t)
		t.Setenv("META_APP_ID", "app-1")

		for _, redirect := range []string{"", "http://app.example.com/return"} {
			t.Setenv("META_REDIRECT_URL", redirect)
			if _, err := LoadConfig(); err == nil {
				t.Errorf("expected error for redirect %q, got nil", redirect)
			}
		}

		t.Setenv("META_REDIRECT_URL", "https://app.example.com/return")
		cfg, err := LoadConfig()
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.MetaAppID != "app-1" {
			t.Errorf("MetaAppID: expected %q, got %q", "app-1", cfg.MetaAppID)
		}
	})
}
