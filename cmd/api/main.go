package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/punchamoorthee/horus/internal/api"
	"github.com/punchamoorthee/horus/internal/config"
	"github.com/punchamoorthee/horus/internal/service"
	"github.com/punchamoorthee/horus/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error("open store", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	defer st.Close()

	// Initialize Layers
	duels := service.NewDuelService(st, cfg.DuelTTL, service.WithLogger(logger))
	handler := api.NewHandler(api.Services{
		Store:       st,
		Duels:       duels,
		Accounts:    service.NewAccountService(st, logger),
		Ranking:     service.NewRankingService(st),
		Friends:     service.NewFriendService(st, logger),
		Tournaments: service.NewTournamentService(st, logger),
	}, api.Options{
		AdminToken:     cfg.AdminToken,
		RequestTimeout: cfg.RequestTimeout,
		Logger:         logger,
	})

	if cfg.DuelSweepInterval > 0 {
		sweeper, err := service.NewSweeper(duels, cfg.DuelSweepInterval, logger)
		if err != nil {
			logger.Error("create duel sweeper", "error", err)
			os.Exit(1)
		}
		sweeper.Start()
		defer func() {
			if err := sweeper.Stop(); err != nil {
				logger.Error("stop duel sweeper", "error", err)
			}
		}()
		logger.Info("background duel sweep enabled", "interval", cfg.DuelSweepInterval)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "port", cfg.Port, "driver", cfg.StoreDriver, "duel_ttl", duels.TTL())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", "error", err)
		}
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	if cfg.StoreDriver == config.DriverMemory {
		slog.Warn("using in-memory store; data is lost on restart")
		return store.NewMemoryStore(), nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pg, err := store.Connect(connectCtx, cfg.DBSource)
	if err != nil {
		return nil, err
	}
	if err := pg.ApplySchema(connectCtx); err != nil {
		pg.Close()
		return nil, err
	}
	return pg, nil
}
