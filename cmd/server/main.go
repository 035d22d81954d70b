package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	authhandler "whozin/internal/auth/handler"
	friendshandler "whozin/internal/friends/handler"
	friendsservice "whozin/internal/friends/service"
	friendsstore "whozin/internal/friends/store"
	jwttoken "whozin/internal/jwt_token"
	"whozin/internal/platform/config"
	"whozin/internal/platform/httpserver"
	"whozin/internal/platform/logger"
	"whozin/internal/platform/metrics"
	"whozin/internal/platform/postgres"
	"whozin/internal/platform/redis"
	rlmiddleware "whozin/internal/ratelimit/middleware"
	"whozin/internal/ratelimit/ports"
	rlservice "whozin/internal/ratelimit/service"
	"whozin/internal/ratelimit/store/action"
	"whozin/internal/redirect"
	httptransport "whozin/internal/transport/http"
)

const (
	sessionIssuer   = "whozin"
	sessionAudience = "whozin-web"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(2)
	}
	log := logger.New(cfg.Server.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	store, checks, closeStore, err := buildActionStore(ctx, cfg, log, m)
	if err != nil {
		return err
	}
	defer closeStore()

	limiter, err := rlservice.New(store,
		rlservice.WithLogger(log),
		rlservice.WithMetrics(m),
		rlservice.WithConfig(&cfg.RateLimit),
	)
	if err != nil {
		return fmt.Errorf("init rate limiter: %w", err)
	}
	if cfg.RateLimit.Disabled {
		log.Warn("action rate limiting disabled")
	}

	friends, err := friendsservice.New(limiter, friendsstore.New(), friendsservice.WithLogger(log))
	if err != nil {
		return fmt.Errorf("init friends service: %w", err)
	}

	validator := jwttoken.NewJWTServiceAdapter(
		jwttoken.NewJWTService(cfg.Server.SessionSigningKey, sessionIssuer, sessionAudience,
			jwttoken.WithLeeway(30*time.Second)),
	)
	policy := redirect.NewPolicy(cfg.Redirect.ExcludedPrefixes...)

	deps := httptransport.Deps{
		Logger:   log,
		Gatherer: reg,
		Checks:   checks,
		Handlers: []httptransport.Registrar{
			authhandler.New(policy, validator, log, m, authhandler.WithSecureCookies(cfg.Server.SecureCookies)),
			friendshandler.New(friends, validator, log),
		},
	}
	if resilient, ok := store.(*rlmiddleware.ResilientStore); ok {
		deps.Limiter = resilient
	}
	srv := httpserver.New(cfg.Server, httptransport.NewRouter(deps))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting whozin", "addr", cfg.Server.Addr, "rate_limit_store", cfg.RateLimit.Store)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})
	return g.Wait()
}

// buildActionStore selects the limiter backend. Shared backends are wrapped
// with the circuit breaker and in-memory fallback.
func buildActionStore(ctx context.Context, cfg config.Config, log *slog.Logger, m *metrics.Metrics) (ports.ActionStore, map[string]httptransport.HealthCheck, func(), error) {
	noop := func() {}
	switch cfg.RateLimit.Store {
	case config.StoreRedis:
		client, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, noop, fmt.Errorf("connect redis: %w", err)
		}
		store := rlmiddleware.NewResilientStore(action.NewRedis(client.Client),
			rlmiddleware.WithHealthCheck(client.Health),
			rlmiddleware.WithLogger(log),
			rlmiddleware.WithMetrics(m),
		)
		checks := map[string]httptransport.HealthCheck{"redis": client.Health}
		return store, checks, func() { _ = client.Close() }, nil

	case config.StorePostgres:
		db, err := postgres.Open(ctx, cfg.Database)
		if err != nil {
			return nil, nil, noop, fmt.Errorf("connect postgres: %w", err)
		}
		if db == nil {
			return nil, nil, noop, errors.New("DATABASE_URL is required for the postgres rate limit store")
		}
		pg := action.NewPostgres(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, noop, err
		}
		store := rlmiddleware.NewResilientStore(pg,
			rlmiddleware.WithHealthCheck(db.PingContext),
			rlmiddleware.WithLogger(log),
			rlmiddleware.WithMetrics(m),
		)
		checks := map[string]httptransport.HealthCheck{"postgres": db.PingContext}
		return store, checks, func() { _ = db.Close() }, nil

	default:
		return action.New(), nil, noop, nil
	}
}
