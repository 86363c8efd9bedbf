package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"empires/internal/api"
	"empires/internal/config"
	"empires/internal/db"
	"empires/internal/game"
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

	var empireStore game.EmpireStore
	var flowStore game.FlowStore
	switch cfg.Store {
	case "memory":
		mem := store.NewMemory()
		empireStore, flowStore = mem, mem
		logger.Warn("using in-memory store; state is lost on restart")
	default:
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
		empireStore, flowStore = pg, pg
	}

	empireSvc := game.NewEmpireService(empireStore, catalog, logger, nil)
	flowSvc := game.NewFlowService(flowStore, empireStore, logger, nil)
	srv := api.New(logger, empireSvc, flowSvc)

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("api listening", "addr", cfg.Addr, "store", cfg.Store)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("api server failed", "err", err)
		os.Exit(1)
	}
	logger.Info("api shutdown")
}
