package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/riverqueue/river"

	"github.com/renovo/backend/internal/admin"
	"github.com/renovo/backend/internal/analytics"
	"github.com/renovo/backend/internal/auth"
	"github.com/renovo/backend/internal/bids"
	"github.com/renovo/backend/internal/config"
	"github.com/renovo/backend/internal/database"
	"github.com/renovo/backend/internal/jobs"
	"github.com/renovo/backend/internal/ledger"
	"github.com/renovo/backend/internal/messaging"
	"github.com/renovo/backend/internal/middleware"
	"github.com/renovo/backend/internal/projects"
	"github.com/renovo/backend/internal/realtime"
	"github.com/renovo/backend/internal/repository"
	"github.com/renovo/backend/internal/router"
	"github.com/renovo/backend/internal/session"
	"github.com/renovo/backend/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Getenv("RENOVO_CONFIG"))
	if err != nil {
		return err
	}
	logger := setupLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tel, err := telemetry.Setup(ctx, cfg.Otel, cfg.App)
	if err != nil {
		return err
	}
	defer func() {
		if err := tel.Shutdown(context.Background()); err != nil {
			logger.Warn("telemetry shutdown", "error", err)
		}
	}()

	pool, err := database.Connect(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer pool.Close()
	logger.Info("connected to PostgreSQL")

	if cfg.Database.Migrate {
		if err := database.Migrate(ctx, pool); err != nil {
			return err
		}
		if err := jobs.Migrate(ctx, pool); err != nil {
			return err
		}
		logger.Info("migrations applied")
	}

	// Realtime: in-process unless Redis is configured.
	var rdb *redis.Client
	var broker realtime.Broker
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return err
		}
		if cfg.Redis.PoolSize > 0 {
			opts.PoolSize = cfg.Redis.PoolSize
		}
		rdb = redis.NewClient(opts)
		defer rdb.Close()
		broker = realtime.NewRedisBroker(rdb, cfg.Redis.Channel)
	}
	hub := realtime.NewHub(broker, logger)
	if rb, ok := broker.(*realtime.RedisBroker); ok {
		go func() {
			if err := rb.Run(ctx, hub); err != nil {
				logger.Error("realtime broker stopped", "error", err)
			}
		}()
	}

	// Repositories
	userRepo := repository.NewUserRepo(pool)
	projectRepo := repository.NewProjectRepo(pool)
	unlockRepo := repository.NewUnlockRepo(pool)
	creditRepo := repository.NewCreditRepo(pool)
	bidRepo := repository.NewBidRepo(pool)
	convRepo := repository.NewConversationRepo(pool)
	statsRepo := repository.NewStatsRepo(pool)

	// Services
	authSvc := auth.NewService(userRepo, hub, cfg.Auth, logger)
	ledgerSvc := ledger.NewService(pool, userRepo, projectRepo, unlockRepo, creditRepo, hub, logger)
	schema, err := projects.NewValidator()
	if err != nil {
		return err
	}
	projectSvc := projects.NewService(pool, projectRepo, userRepo, unlockRepo, schema, hub, logger)
	bidSvc := bids.NewService(bidRepo, projectRepo, userRepo, unlockRepo, hub, logger)
	msgSvc := messaging.NewService(pool, convRepo, projectRepo, userRepo, unlockRepo, hub, logger)

	var riverClient *river.Client[pgx.Tx]
	if cfg.Jobs.Enabled {
		riverClient, err = jobs.NewClient(pool, ledgerSvc, userRepo, jobs.Options{
			MaxWorkers:        cfg.Jobs.MaxWorkers,
			ReconcileInterval: cfg.Jobs.ReconcileInterval,
		}, logger)
		if err != nil {
			return err
		}
		if err := riverClient.Start(ctx); err != nil {
			return err
		}
	}
	adminSvc := admin.NewService(userRepo, jobs.NewEnqueuer(riverClient), hub, logger)

	sessions := session.NewManager(authSvc, userRepo, hub, 0, 0, logger)
	defer sessions.Close()

	limiter := middleware.NewRateLimiter(rdb, middleware.Limit(cfg.RateLimit.Requests, cfg.RateLimit.Window, cfg.RateLimit.Burst), logger)
	defer limiter.Stop()

	gateway := realtime.NewGateway(hub, router.TopicAuthorizer(convRepo, projectRepo),
		cfg.Realtime.AllowedOrigins, cfg.Realtime.PingInterval, cfg.Realtime.WriteTimeout, logger)

	handler := router.New(router.Deps{
		Handlers: router.Handlers{
			Auth:      auth.NewHandler(authSvc, logger),
			Projects:  projects.NewHandler(projectSvc, logger),
			Ledger:    ledger.NewHandler(ledgerSvc, logger),
			Bids:      bids.NewHandler(bidSvc, logger),
			Messaging: messaging.NewHandler(msgSvc, logger),
			Admin:     admin.NewHandler(adminSvc, logger),
			Analytics: analytics.NewHandler(statsRepo, logger),
		},
		Sessions: sessions,
		Limiter:  limiter,
		Realtime: gateway,
		Ready: func(ctx context.Context) error {
			if err := pool.Ping(ctx); err != nil {
				return err
			}
			if rdb != nil {
				return rdb.Ping(ctx).Err()
			}
			return nil
		},
		CORS: cfg.CORS,
		Log:  logger,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting HTTP server", "addr", srv.Addr, "environment", cfg.App.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	if riverClient != nil {
		if err := riverClient.Stop(shutdownCtx); err != nil {
			logger.Error("river shutdown", "error", err)
		}
	}
	logger.Info("server stopped")
	return nil
}

func setupLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Log.Format == "text" || (cfg.IsDevelopment() && cfg.Log.Format == "") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
