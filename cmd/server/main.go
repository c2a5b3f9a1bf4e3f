package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/clipfetch/clipfetch/internal/config"
	"github.com/clipfetch/clipfetch/internal/domain"
	"github.com/clipfetch/clipfetch/internal/executor"
	"github.com/clipfetch/clipfetch/internal/handler"
	"github.com/clipfetch/clipfetch/internal/middleware"
	"github.com/clipfetch/clipfetch/internal/repository/postgres"
	"github.com/clipfetch/clipfetch/internal/repository/redis"
	"github.com/clipfetch/clipfetch/internal/resolver"
	"github.com/clipfetch/clipfetch/internal/service"
)

// @title Clipfetch API
// @version 1.0
// @description Video link resolution and email notification service

// @host localhost:8080
// @BasePath /

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

	logger.Info("starting clipfetch server",
		"env", cfg.App.Env,
		"port", cfg.Server.Port,
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

	// Initialize repositories
	cache := redis.NewCache(redisClient)
	broker := redis.NewBroker(redisClient)
	deliveryLog := postgres.NewDeliveryLogRepository(db)

	// Initialize resolvers
	youtubeResolver := resolver.NewYouTubeResolver(cfg.YouTube, cfg.Extractor)
	instagramResolver := resolver.NewInstagramResolver(cfg.Extractor)

	registry := resolver.NewRegistry()
	registry.Register(domain.SourceYouTube, youtubeResolver)
	registry.Register(domain.SourceInstagram, instagramResolver)

	// Initialize services
	pool := executor.New(cfg.Executor, logger)
	resolutionService := service.NewResolutionService(cache, registry, pool, logger, cfg.Cache.TTL)
	notifyService := service.NewNotifyService(broker, logger)

	// Initialize event hub and metrics
	hub := handler.NewEventHub(logger)
	go hub.Run()

	metrics := handler.NewMetrics()
	resolutionService.SetEventBroadcast(func(event *service.ResolutionEvent) {
		hub.BroadcastEvent(event)
		metrics.RecordResolutionEvent(event)
	})

	// Initialize handlers
	downloadHandler := handler.NewDownloadHandler(resolutionService, notifyService, youtubeResolver, deliveryLog)
	healthHandler := handler.NewHealthHandler()
	healthHandler.AddChecker("redis", redisClient)
	healthHandler.AddChecker("postgres", db)

	metricsHandler := handler.NewMetricsHandler(metrics, broker)
	eventsHandler := handler.NewEventsHandler(hub)

	// Setup router
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(middleware.Correlation)
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logging(logger))
	r.Use(metrics.Middleware)
	r.Use(chimiddleware.Compress(5))

	r.Get("/health", healthHandler.Health)
	r.Get("/health/live", healthHandler.Liveness)
	r.Get("/health/ready", healthHandler.Readiness)

	r.Handle("/metrics", metricsHandler.Handler())
	r.Get("/metrics/realtime", metricsHandler.RealtimeMetrics)

	r.Get("/ws", eventsHandler.HandleWebSocket)

	r.Route("/api/v1", func(r chi.Router) {
		downloadHandler.RegisterRoutes(r)
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("server listening", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	cancel()

	logger.Info("server stopped")
}
