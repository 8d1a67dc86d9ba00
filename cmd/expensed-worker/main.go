package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"expensed/internal/config"
	"expensed/internal/events"
	"expensed/internal/log"
	"expensed/internal/storage"
	"expensed/internal/worker"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()

	logger := log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Component: log.ComponentWorker,
	})
	log.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		slog.Error("Configuration validation failed", log.FieldError, err.Error())
		os.Exit(1)
	}
	if !cfg.EventsEnabled() {
		slog.Error("AMQP_URL is required for the audit worker")
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize storage", log.FieldError, err.Error(), "path", cfg.DBPath)
		os.Exit(1)
	}
	defer repo.Close()

	client, err := events.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		slog.Error("Failed to connect event stream", log.FieldError, err.Error())
		os.Exit(1)
	}
	defer client.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	auditWorker := worker.NewAuditWorker(repo)

	slog.Info("Starting expensed-worker", "queue", cfg.AMQPQueue)
	if err := client.Consume(ctx, auditWorker.HandleEvent); err != nil && err != context.Canceled {
		slog.Error("Event consumption failed", log.FieldError, err.Error())
		os.Exit(1)
	}
	slog.Info("Worker stopped gracefully")
}
