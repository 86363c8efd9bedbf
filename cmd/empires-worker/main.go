package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"empires/internal/config"
	"empires/internal/db"
	"empires/internal/game"
	"empires/internal/scheduler"
	"empires/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	catalog, err := game.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		logger.Error("load synergy catalog failed", "path", cfg.CatalogPath, "err", err)
		os.Exit(1)
	}

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	pg := store.NewPostgres(pool)
	if err := pg.EnsureSchema(ctx); err != nil {
		logger.Error("ensure schema failed", "err", err)
		os.Exit(1)
	}

	empireSvc := game.NewEmpireService(pg, catalog, logger, nil)
	sched := scheduler.New(pg, empireSvc, logger, nil, scheduler.Config{
		SweepEvery:   cfg.SweepEvery,
		FlowTimeout:  cfg.FlowTimeout,
		Workers:      cfg.FlowWorkers,
		BatchLimit:   cfg.FlowBatch,
		TouchEmpires: cfg.TouchEmpires,
	})

	runOnce := strings.EqualFold(strings.TrimSpace(os.Getenv("EMPIRES_WORKER_RUN_ONCE")), "true")
	if runOnce {
		stats, err := sched.Sweep(ctx)
		if err != nil {
			logger.Error("sweep failed", "err", err)
			os.Exit(1)
		}
		logger.Info("worker run-once completed",
			"due", stats.Due,
			"processed", stats.Processed,
			"completed", stats.Completed,
			"skipped", stats.Skipped,
			"conflicts", stats.Conflicts,
			"failures", stats.Failures)
		return
	}

	sched.Run(ctx)
}
