package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"expensed/internal/auth"
	"expensed/internal/cache"
	"expensed/internal/config"
	"expensed/internal/core"
	"expensed/internal/events"
	apphttp "expensed/internal/http"
	"expensed/internal/log"
	"expensed/internal/services"
	"expensed/internal/storage"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

func main() {
	// .env is for local development; production sets real env vars.
	_ = godotenv.Load()

	cfg := config.Load()

	logger := log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Component: log.ComponentApp,
	})
	log.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		slog.Error("Configuration validation failed", log.FieldError, err.Error())
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize storage", log.FieldError, err.Error(), "path", cfg.DBPath)
		os.Exit(1)
	}
	defer repo.Close()

	var publisher services.Publisher
	if cfg.EventsEnabled() {
		client, err := events.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			// The API stays up without the event stream.
			slog.Warn("Event stream unavailable, mutations will not be published",
				log.FieldError, err.Error())
		} else {
			defer client.Close()
			publisher = client
		}
	} else {
		slog.Info("Event stream disabled - no AMQP_URL provided")
	}

	issuer := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	summaries := cache.NewLRUCache[core.Summary](cfg.SummaryCacheSize, cfg.SummaryCacheTTL)

	cacheManager := cache.NewManager()
	cacheManager.Register(summaries)
	cacheManager.StartCleanup(time.Minute)

	srv := apphttp.NewServer(
		services.NewExpenseService(repo, publisher, summaries),
		services.NewUserService(repo, issuer),
		repo,
		apphttp.Options{Port: cfg.Port, TokenIssuer: issuer},
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("Starting expensed server", "port", cfg.Port)
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		slog.Info("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		slog.Error("Server error", log.FieldError, err.Error())
		os.Exit(1)
	}
	slog.Info("Server stopped gracefully")
}
