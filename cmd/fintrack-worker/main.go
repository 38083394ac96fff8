package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"fintrack/internal/amqp"
	"fintrack/internal/backend"
	"fintrack/internal/config"
	"fintrack/internal/log"
	"fintrack/internal/provider"
	"fintrack/internal/provider/bankfeed"
	providermem "fintrack/internal/provider/memory"
	"fintrack/internal/services"
	"fintrack/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.Config{Level: slog.LevelInfo, Component: log.ComponentWorker})
	log.SetDefault(logger)

	logger.Info("Starting fintrack-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	result, err := backend.New(cfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	if result.Cleanup != nil {
		defer result.Cleanup()
	}
	store := result.Store

	var feed provider.Client
	if cfg.ProviderConfigured() {
		feed, err = bankfeed.New(bankfeed.Config{
			BaseURL:           cfg.ProviderBaseURL,
			ClientID:          cfg.ProviderClientID,
			Secret:            cfg.ProviderSecret,
			RequestsPerSecond: cfg.ProviderRequestsPerSecond,
		})
		if err != nil {
			logger.Error("Failed to initialize bank feed client", "error", err)
			os.Exit(1)
		}
		logger.Info("Bank feed provider configured", "base_url", cfg.ProviderBaseURL)
	} else {
		feed = providermem.New()
		logger.Warn("No bank feed configured, syncs will see an empty feed")
	}

	engine := services.NewSyncEngine(store, feed,
		services.WithSyncWindow(cfg.SyncWindow()),
		services.WithWorkers(cfg.SyncWorkers))
	syncWorker := worker.NewSyncWorker(store, engine)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		err := amqpClient.ConsumeSyncRequests(ctx, func(msg *amqp.SyncRequestMessage) error {
			return syncWorker.HandleSyncRequest(ctx, msg)
		})
		if err != nil && err != context.Canceled {
			logger.Error("Message consumption failed", "error", err)
		}
		cancel()
	}()

	// Periodic full sync catches accounts whose requests were lost.
	go syncWorker.RunPeriodic(ctx, cfg.SyncInterval)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	logger.Info("Shutting down worker...")
	cancel()

	// Give in-flight syncs a moment to finish.
	time.Sleep(2 * time.Second)
	logger.Info("Worker shutdown complete")
}
