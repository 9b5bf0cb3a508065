package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"studybuddy/internal/api/v1/router"
	"studybuddy/internal/config"
	"studybuddy/internal/logger"
	"studybuddy/internal/metrics"
	"studybuddy/internal/pgmq"
	"studybuddy/internal/pubsub"
	"studybuddy/internal/repository"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	logger := logger.New()

	// 1. Load configuration
	if err := godotenv.Load(); err != nil {
		logger.Warn().Msg("Warning: no .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Msgf("Error loading config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Open the connection pool
	pool, err := pgxpool.New(ctx, cfg.DBConnectionString)
	if err != nil {
		logger.Fatal().Msgf("Failed to create DB pool: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Msgf("Failed to ping DB: %v", err)
	}
	logger.Info().Msg("Database connection successful")

	// database/sql view of the pool for goose and pgmq
	sqlDB := stdlib.OpenDBFromPool(pool)
	defer sqlDB.Close()

	if cfg.RunMigrations {
		if err := repository.Migrate(ctx, sqlDB); err != nil {
			logger.Fatal().Msgf("Failed to run migrations: %v", err)
		}
		logger.Info().Msg("Migrations applied")
	}

	// 3. Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// 4. Subscription events
	var queue *pgmq.Client
	if cfg.EventsTransport == pubsub.TransportPGMQ {
		queue = pgmq.New(sqlDB)
	}
	transport, topic, closeTransport, err := pubsub.NewTransport(ctx, cfg, queue)
	if err != nil {
		logger.Fatal().Msgf("Failed to create events transport: %v", err)
	}
	defer func() {
		if err := closeTransport(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close events transport")
		}
	}()
	logger.Info().Str("transport", cfg.EventsTransport).Str("topic", topic).Msg("Events transport ready")
	events := pubsub.NewEventPublisher(transport, topic, m)

	// 5. Build router
	svcs := router.NewServices(pool, events, m, logger)
	handler := router.New(cfg, svcs, reg, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.SweepTimeout() + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Msgf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Msgf("Listen: %s", err)
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("Shutdown signal received, exiting...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
		os.Exit(1)
	}
	logger.Info().Msg("Server shut down gracefully")
}
