package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"fintrack/internal/amqp"
	"fintrack/internal/backend"
	"fintrack/internal/config"
	apphttp "fintrack/internal/http"
	"fintrack/internal/log"
	"fintrack/internal/provider"
	"fintrack/internal/provider/bankfeed"
	providermem "fintrack/internal/provider/memory"
	"fintrack/internal/services"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.Config{Level: slog.LevelInfo, Component: log.ComponentApp})
	log.SetDefault(logger)

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
		logger.Info("No bank feed configured, using in-memory provider")
	}

	engine := services.NewSyncEngine(store, feed,
		services.WithSyncWindow(cfg.SyncWindow()),
		services.WithWorkers(cfg.SyncWorkers))
	accounts := services.NewAccountService(store, feed)
	transactions := services.NewTransactionService(store)

	// AMQP is optional; without it sync requests run inline.
	var publisher apphttp.SyncPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, syncs will run inline", "error", err)
		} else {
			defer amqpClient.Close()
			publisher = amqpClient
			logger.Info("Initialized AMQP client",
				"exchange", cfg.AMQPExchange,
				"queue", cfg.AMQPQueue)
		}
	}

	srv := apphttp.NewServer(":"+cfg.Port, store, engine, accounts, transactions, publisher)
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting fintrack server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
