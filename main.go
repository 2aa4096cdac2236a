package main

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MGallo-Code/wabalink/internal/api"
	"github.com/MGallo-Code/wabalink/internal/config"
	"github.com/MGallo-Code/wabalink/internal/connect"
	"github.com/MGallo-Code/wabalink/internal/gateway"
	"github.com/MGallo-Code/wabalink/internal/oauth"
	"github.com/MGallo-Code/wabalink/internal/reconcile"
	"github.com/MGallo-Code/wabalink/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Embeds the migration files INTO the go bin

//go:embed migrations/*.sql
var migrationsDir embed.FS

func main() {
	// Load config first so we can set log level
	cfg, err := config.LoadConfig()
	if err != nil {
		// Fallback logger before config is available
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}

	// Include source location in log entries at debug level only.
	addSrc := cfg.LogLevel == slog.LevelDebug

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     cfg.LogLevel,
		AddSource: addSrc,
	})))

	// Cancel ctx on SIGINT/SIGTERM; run() shuts down when ctx is done.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run() is a separate func so deferred closes (ps, rdb) always execute before os.Exit.
	if err := run(ctx, cfg, nil); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

// run holds all server logic and returns error instead of calling os.Exit,
// so deferred resource cleanup (ps.Close, rdb.Close) always runs.
// Shuts down when ctx is cancelled (signal handling is the caller's concern).
// If ready is non-nil, the server's base URL is sent on it once the listener is bound.
func run(ctx context.Context, cfg *config.Config, ready chan<- string) error {
	ps, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to set up postgres store: %w", err)
	}
	defer ps.Close()

	migrationsFS, err := fs.Sub(migrationsDir, "migrations")
	if err != nil {
		return fmt.Errorf("failed to access embedded migrations: %w", err)
	}
	if err := ps.Migrate(ctx, migrationsFS); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Shared Redis client; flow cache, lock, notifier and retry queue share one pool.
	rdb, err := store.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to set up redis client: %w", err)
	}
	defer rdb.Close()

	rs := store.NewRedisStore(rdb)
	gw := gateway.NewClient(cfg.GatewayURL, cfg.GatewayTimeout)

	o := &connect.Orchestrator{
		Directory:         gw,
		Verifier:          gw,
		Exchanger:         gw,
		Subscriber:        gw,
		Extensions:        ps,
		Notifier:          store.NewRedisNotifier(rdb),
		VerifyConcurrency: cfg.VerifyConcurrency,
		TokenValidity:     cfg.TokenValidity,
	}
	locker := store.NewRedisLocker(rdb)
	if cfg.UpsertLock {
		o.Locker = locker
	}

	// Subscription retry worker; stopped via workerCtx when run() returns.
	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()
	if cfg.SubscriptionRetryMax > 0 {
		q := reconcile.NewQueue(gw, rdb, cfg.SubscriptionRetryMax)
		o.Retrier = q
		go q.StartWorker(workerCtx)
	}

	h := &api.ConnectHandler{
		Flows:        o,
		Cache:        rs,
		IsMiss:       func(err error) bool { return errors.Is(err, store.ErrCacheMiss) },
		Locks:        locker,
		IsLocked:     func(err error) bool { return errors.Is(err, store.ErrLocked) },
		FlowTTL:      cfg.FlowTTL,
		CookieSecure: cfg.CookieSecure,
		PS:           ps,
		RS:           rs,
	}
	if cfg.MetaAppID != "" {
		h.Provider = oauth.NewMetaProvider(cfg.MetaAppID, cfg.MetaRedirectURL, cfg.MetaConfigID, cfg.MetaGraphVersion)
	}

	// Bind listener; ":0" picks a free port (useful in tests).
	ln, err := net.Listen("tcp", ":"+cfg.Port)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	server := &http.Server{Handler: buildRouter(h)}

	// Start server in a goroutine; run() continues past this.
	errCh := make(chan error, 1)
	go func() {
		slog.Info("wabalink listening", "addr", ln.Addr().String())
		// Send error only if server stops for a reason other than explicit shutdown.
		if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Signal readiness to caller (used by tests; nil in production).
	if ready != nil {
		ready <- "http://" + ln.Addr().String()
	}

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	// Stops accepting new conns, then waits for in-flight confirms to finish or the timeout.
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

// buildRouter wires all routes and middleware.
// Called from run() for smoke tests.
func buildRouter(h *api.ConnectHandler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", h.CheckHealth)

	r.Route("/whatsapp", func(r chi.Router) {
		r.Get("/login", h.Login)
		r.Post("/callback", h.Callback)

		// Flow cookie required
		r.Group(func(r chi.Router) {
			r.Use(h.RequireFlow)
			r.Get("/flow", h.GetFlow)

			// Mutations hold the per-flow lock
			// DO NOT RUN LockFlow BEFORE RequireFlow
			r.Group(func(r chi.Router) {
				r.Use(h.LockFlow)
				r.Post("/flow/toggle", h.Toggle)
				r.Post("/flow/verify", h.Verify)
				r.Post("/flow/confirm", h.Confirm)
			})
		})
	})

	return r
}
