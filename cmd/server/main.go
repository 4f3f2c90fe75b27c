package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/welldanyogia/auth-system/internal/audit"
	"github.com/welldanyogia/auth-system/internal/auth"
	"github.com/welldanyogia/auth-system/internal/config"
	"github.com/welldanyogia/auth-system/internal/health"
	"github.com/welldanyogia/auth-system/internal/logger"
	"github.com/welldanyogia/auth-system/internal/metrics"
	authmw "github.com/welldanyogia/auth-system/internal/middleware"
	"github.com/welldanyogia/auth-system/internal/repository"
)

// Version is set at build time
var Version = "dev"

func main() {
	cfg := config.Load()
	base := logger.New(cfg.Logging)
	slog.SetDefault(base)
	log := logger.Named(base, logger.ChannelAuth)

	if err := cfg.Validate(); err != nil {
		log.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	if err := run(cfg, base, log); err != nil {
		log.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("Server exited")
}

func run(cfg *config.Config, base, log *slog.Logger) error {
	ctx := context.Background()

	// Audit channels may be redirected away from the main log
	auditBase := base
	if cfg.Audit.LogOutput != "" {
		auditCfg := cfg.Logging
		auditCfg.Output = cfg.Audit.LogOutput
		auditBase = logger.New(auditCfg)
	}
	sink := audit.NewLogSink(
		logger.Named(auditBase, logger.ChannelSecurity),
		logger.Named(auditBase, logger.ChannelActions),
		nil,
	)

	accounts, checks, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	tokenService := auth.NewTokenService(auth.TokenServiceConfig{
		Secret:              cfg.JWT.Secret,
		AccessTokenExpiry:   cfg.JWT.AccessTokenExpiry,
		FallbackTokenExpiry: cfg.JWT.FallbackTokenExpiry,
		Issuer:              cfg.JWT.Issuer,
	})

	authService := auth.NewAuthService(
		accounts,
		audit.NewAttemptLog(cfg.Audit.AttemptCapacity),
		sink,
		tokenService,
		auth.NewBcryptHasher(cfg.Auth.BcryptCost),
		auth.AuthServiceConfig{
			ConcealInactive:    cfg.Auth.ConcealInactive,
			DefaultRecentLimit: cfg.Auth.DefaultRecentLimit,
			MaxRecentLimit:     cfg.Auth.MaxRecentLimit,
		},
		log,
	)

	authHandler := auth.NewAuthHandler(authService, log)
	authMiddleware := authmw.NewAuthMiddleware(authService, log)
	healthHandler := health.NewHandler(health.Config{
		Checks:  checks,
		Store:   cfg.Store.Backend,
		Version: Version,
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(authmw.StructuredLogger(base))
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/", index)
	r.Get("/health", healthHandler.Health)
	r.Get("/health/ready", healthHandler.Readiness)
	r.Get("/health/live", healthHandler.Liveness)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		auth.RegisterRoutes(r, authHandler, authMiddleware.Authenticate)
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Starting server", "addr", srv.Addr, "store", cfg.Store.Backend, "version", Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case sig := <-quit:
		log.Info("Shutting down server", "signal", sig.String())
	}

	healthHandler.SetReady(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	return nil
}

// openStore builds the configured account repository together with the
// health checks it needs and a cleanup func.
func openStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (repository.AccountRepository, map[string]metrics.Pinger, func(), error) {
	if cfg.Store.Backend != config.StorePostgres {
		log.Info("Using in-memory account store")
		return repository.NewMemoryAccountRepository(nil), nil, func() {}, nil
	}

	pool, err := setupDatabase(ctx, cfg, log)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to database: %w", err)
	}

	collector := metrics.NewDBStatsCollector(pool, log)
	collector.Start(15 * time.Second)

	cleanup := func() {
		collector.Stop()
		pool.Close()
	}
	checks := map[string]metrics.Pinger{"database": pool}
	return repository.NewPostgresAccountRepository(pool, nil), checks, cleanup, nil
}

// setupDatabase creates and configures the database connection pool
func setupDatabase(ctx context.Context, cfg *config.Config, log *slog.Logger) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}

	if cfg.Database.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	}
	poolConfig.MaxConnLifetime = 5 * time.Minute
	poolConfig.MaxConnIdleTime = 1 * time.Minute
	poolConfig.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create database pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	log.Info("Connected to database",
		"database", cfg.Database.DBName,
		"host", cfg.Database.Host,
		"port", cfg.Database.Port,
	)
	return pool, nil
}

// index lists the available endpoints
func index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"message": "Authentication System API",
		"version": Version,
		"endpoints": map[string]string{
			"register":        "POST /api/v1/auth/register",
			"login":           "POST /api/v1/auth/login",
			"profile":         "GET /api/v1/auth/profile",
			"logout":          "POST /api/v1/auth/logout",
			"stats":           "GET /api/v1/auth/stats",
			"recent_activity": "GET /api/v1/auth/recent-activity",
			"health":          "GET /health",
			"metrics":         "GET /metrics",
		},
	})
}
