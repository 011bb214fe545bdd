// Package main is the entry point for the PaperTrader virtual trading ledger.
// The service maintains a risk-bounded paper portfolio: sized position opens,
// protective stop-loss/take-profit monitoring, an append-only trade ledger,
// and durable SQLite persistence that is replayed on restart.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/papertrader/internal/config"
	"github.com/aristath/papertrader/internal/di"
	"github.com/aristath/papertrader/internal/scheduler"
	"github.com/aristath/papertrader/internal/server"
	"github.com/aristath/papertrader/pkg/logger"
)

func main() {
	// Load configuration first to get log level
	cfg, err := config.Load()
	if err != nil {
		// Use fallback logger if config fails
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize logger with config level
	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
	})

	log.Info().Msg("Starting PaperTrader")

	// Initialize scheduler; it is started only after the book is restored so
	// no job observes pre-replay state.
	sched := scheduler.New(log)

	// Wire all dependencies: database, repositories, services, jobs
	container, _, err := di.Wire(cfg, sched, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer container.LedgerDB.Close()

	// Replay persisted state so the in-memory book matches the database
	if err := container.Book.Restore(); err != nil {
		log.Fatal().Err(err).Msg("Failed to restore ledger state")
	}

	// Initialize HTTP server
	srv := server.New(server.Config{
		Port:      cfg.Port,
		Log:       log,
		LedgerDB:  container.LedgerDB,
		Config:    cfg,
		DevMode:   cfg.DevMode,
		Container: container,
	})

	sched.Start()
	defer sched.Stop()

	// Start server in goroutine
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
