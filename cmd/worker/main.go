package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/clipfetch/clipfetch/internal/config"
	"github.com/clipfetch/clipfetch/internal/provider"
	"github.com/clipfetch/clipfetch/internal/repository/postgres"
	"github.com/clipfetch/clipfetch/internal/repository/redis"
	"github.com/clipfetch/clipfetch/internal/worker"
)

func main() {
	cfg := config.Load()

	logLevel := slog.LevelInfo
	if cfg.App.LogLevel == "debug" {
		logLevel = slog.LevelDebug
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("starting clipfetch worker",
		"env", cfg.App.Env,
		"workers", cfg.Worker.Count,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Redis
	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		logger.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	logger.Info("connected to Redis")

	// Initialize PostgreSQL
	db, err := postgres.New(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("connected to PostgreSQL")

	broker := redis.NewBroker(redisClient)
	deliveryLog := postgres.NewDeliveryLogRepository(db)
	mailer := provider.NewSMTPSender(cfg.SMTP)

	consumer := worker.NewConsumer(
		broker,
		mailer,
		deliveryLog,
		logger,
		cfg.Queue,
		cfg.Worker,
	)

	if err := consumer.Start(ctx); err != nil {
		logger.Error("failed to start consumer", "error", err)
		os.Exit(1)
	}

	// Metrics endpoint for scraping delivery counters
	metricsServer := &http.Server{
		Addr:    ":" + cfg.Worker.MetricsPort,
		Handler: promhttp.Handler(),
	}
	go func() {
		logger.Info("metrics listening", "port", cfg.Worker.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down worker...")

	// Stop consumer (waits for in-flight work)
	consumer.Stop()

	if err := metricsServer.Close(); err != nil {
		logger.Error("metrics server close error", "error", err)
	}

	cancel()

	logger.Info("worker stopped")
}
