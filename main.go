package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aerioncore/mailcore/config"
	"github.com/aerioncore/mailcore/internal/bootstrap"
	"github.com/aerioncore/mailcore/pkg/logger"

	"github.com/joho/godotenv"
)

const (
	shutdownTimeout = 30 * time.Second // Maximum time to wait for graceful shutdown
)

func main() {
	// Initialize logger early
	logger.Init(logger.Config{
		Level:   logger.LevelInfo,
		Service: "mailcore",
	})

	// Load .env file if exists (for local development)
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file found, using environment variables")
	}

	mode := flag.String("mode", "all", "Run mode: api, runner, jsonrpc, all")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config: %v", err)
	}

	switch *mode {
	case "api":
		runAPI(cfg)
	case "runner":
		runBackground(cfg)
	case "jsonrpc":
		runJSONRPC(cfg)
	case "all":
		go runBackground(cfg)
		runAPI(cfg)
	default:
		logger.Fatal("Unknown mode: %s", *mode)
	}
}

func runAPI(cfg *config.Config) {
	app, cleanup, err := bootstrap.NewAPI(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize API: %v", err)
	}
	defer cleanup()

	// Graceful shutdown with timeout
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down API server (timeout: %v)...", shutdownTimeout)

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			done <- app.Shutdown()
		}()

		select {
		case err := <-done:
			if err != nil {
				logger.Error("Error shutting down: %v", err)
			} else {
				logger.Info("API server shut down gracefully")
			}
		case <-ctx.Done():
			logger.Warn("API shutdown timed out, forcing exit")
		}
	}()

	addr := ":" + cfg.Port
	logger.Info("Starting API server on %s", addr)
	if err := app.Listen(addr); err != nil {
		logger.Fatal("Failed to start server: %v", err)
	}
}

// runBackground drives the sync watchers, outbox dispatcher, job reaper,
// and event heartbeat — no request-serving surface, just the long-lived
// loops a mail-sync process needs regardless of how a caller reaches it.
func runBackground(cfg *config.Config) {
	runner, cleanup, err := bootstrap.NewRunner(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize background runner: %v", err)
	}
	defer cleanup()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	runner.Start()
	logger.Info("Background runner started (sync watchers, outbox dispatch, job reaper, event heartbeat)")

	<-sigChan
	logger.Info("Shutting down background runner (timeout: %v)...", shutdownTimeout)
	runner.Stop()
	logger.Info("Background runner shut down")
}

// runJSONRPC serves the tool registry over stdio JSON-RPC 2.0 instead of
// HTTP, for a caller that spawns this binary as a subprocess rather than
// dialing it over the network.
func runJSONRPC(cfg *config.Config) {
	srv, cleanup, err := bootstrap.NewJSONRPC(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize JSON-RPC bridge: %v", err)
	}
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		cancel()
	}()

	if err := srv.Serve(ctx, os.Stdin, os.Stdout); err != nil {
		logger.Fatal("JSON-RPC bridge exited: %v", err)
	}
}
