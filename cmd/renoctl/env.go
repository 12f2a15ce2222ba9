package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urfave/cli/v2"

	"github.com/renovo/backend/internal/config"
	"github.com/renovo/backend/internal/database"
	"github.com/renovo/backend/internal/realtime"
	"github.com/renovo/backend/internal/repository"
)

// env bundles what every database-backed command needs. Events published by
// the CLI go to an in-process hub with no subscribers.
type env struct {
	cfg   *config.Config
	pool  *pgxpool.Pool
	users *repository.UserRepo
	hub   *realtime.Hub
	log   *slog.Logger
}

func openEnv(cctx *cli.Context) (*env, error) {
	cfg, err := config.Load(cctx.String(configFlag.Name))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	pool, err := database.Connect(cctx.Context, cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	return &env{
		cfg:   cfg,
		pool:  pool,
		users: repository.NewUserRepo(pool),
		hub:   realtime.NewHub(nil, logger),
		log:   logger,
	}, nil
}

func (e *env) Close() { e.pool.Close() }
