package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"pricewatch/config"
	"pricewatch/internal/app"
	httphandlers "pricewatch/internal/handlers/http"
)

func main() {
	cfg := config.LoadConfig()
	logger := setupLogger(cfg.Debug)

	// Create cancellable context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling for graceful shutdown
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		logger.Info().Msg("shutting down")
		cancel()
	}()

	// Initialize app
	logger.Info().Msg("initializing app")
	application, err := app.NewApp(ctx, logger, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize app")
	}

	// Start the sweep scheduler
	logger.Info().
		Dur("interval", cfg.SweepInterval).
		Int("batch_size", cfg.SweepBatchSize).
		Dur("batch_delay", cfg.SweepBatchDelay).
		Msg("starting sweep scheduler")
	go application.Scheduler.Run(ctx)

	// Set up HTTP server
	httpAddr := fmt.Sprintf(":%s", cfg.HTTPPort)
	httpServer := httphandlers.NewServer(
		httpAddr,
		application.Store,
		application.Engine,
		application.ReadClient,
		application.History,
		application.Broadcaster,
		logger,
	)

	// Start HTTP server in a goroutine
	go func() {
		logger.Info().Str("addr", httpAddr).Msg("HTTP server listening")
		if err := httpServer.Start(); err != nil {
			logger.Info().Err(err).Msg("HTTP server stopped")
		}
	}()

	// Wait for termination signal
	<-ctx.Done()

	// Clean up app resources
	logger.Info().Msg("cleaning up app resources")
	application.Cleanup(ctx)

	// Create a timeout context for graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Shutdown HTTP server with timeout
	logger.Info().Msg("shutting down HTTP server")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("HTTP server shutdown error")
	}

	logger.Info().Msg("service stopped")
}

func setupLogger(debug bool) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	logger := log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).Level(level)
	return logger
}
