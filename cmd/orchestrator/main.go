package main

import (
	"context"
	"errors"
	"flag"
	"os/signal"
	"syscall"
	"time"

	"studybuddy/internal/config"
	"studybuddy/internal/logger"
	"studybuddy/internal/metrics"
	"studybuddy/internal/orchestrator/expiry"
	"studybuddy/internal/orchestrator/relay"
	"studybuddy/internal/pgmq"
	"studybuddy/internal/pubsub"
	"studybuddy/internal/repository"
	"studybuddy/internal/service"

	"github.com/go-redis/redis/v8"
	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

func main() {
	// Parse mode flag
	mode := flag.String("mode", "", "Orchestrator mode: expiry|expiry-once|relay")
	flag.Parse()

	logger := logger.New()

	if err := godotenv.Load(); err != nil {
		logger.Warn().Msg("Warning: no .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Msgf("Error loading config: %v", err)
	}

	// Set up context with graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DBConnectionString)
	if err != nil {
		logger.Fatal().Msgf("Failed to create DB pool: %v", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Msgf("Failed to ping DB: %v", err)
	}
	logger.Info().Msg("Database connection established")

	sqlDB := stdlib.OpenDBFromPool(pool)
	defer sqlDB.Close()
	queue := pgmq.New(sqlDB)

	m := metrics.New(prometheus.DefaultRegisterer)

	var runErr error
	switch *mode {
	case "expiry", "expiry-once":
		runner := newExpiryRunner(ctx, cfg, pool, queue, m, logger)
		if *mode == "expiry" {
			runErr = expiry.Run(ctx, runner, cfg.SweepSchedule)
			break
		}
		n, err := runner.RunOnce(ctx)
		if errors.Is(err, expiry.ErrLockHeld) {
			logger.Info().Msg("Another replica is sweeping; nothing to do")
			err = nil
		}
		runErr = err
		logger.Info().Int("expired_count", n).Msg("Expiry sweep finished")
	case "relay":
		pub, err := pubsub.NewPublisher(ctx, cfg)
		if err != nil {
			logger.Fatal().Msgf("Failed to create Pub/Sub publisher: %v", err)
		}
		defer pub.Close()
		if err := queue.CreateQueue(ctx, cfg.PGMQEventsDLQ); err != nil {
			logger.Fatal().Msgf("Failed to create dead-letter queue: %v", err)
		}
		runErr = relay.New(cfg, queue, pub, logger).Run(ctx)
	default:
		logger.Fatal().Msgf("Invalid mode: %s", *mode)
	}

	if runErr != nil {
		logger.Fatal().Msgf("%s orchestrator failed: %v", *mode, runErr)
	}

	logger.Info().Msgf("%s orchestrator stopped gracefully", *mode)
}

// newExpiryRunner wires the sweep service with the configured events
// transport and, when REDIS_ADDR is set, a redsync lock.
func newExpiryRunner(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, queue *pgmq.Client, m *metrics.EntitlementMetrics, log zerolog.Logger) *expiry.Runner {
	var q *pgmq.Client
	if cfg.EventsTransport == pubsub.TransportPGMQ {
		q = queue
	}
	transport, topic, _, err := pubsub.NewTransport(ctx, cfg, q)
	if err != nil {
		log.Fatal().Msgf("Failed to create events transport: %v", err)
	}
	events := pubsub.NewEventPublisher(transport, topic, m)
	svc := service.NewExpiryService(repository.NewSubscriptionRepo(pool), events, m, time.Now, log)

	var lock expiry.Locker
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		rs := redsync.New(goredis.NewPool(client))
		lock = rs.NewMutex(cfg.SweepLockKey,
			redsync.WithExpiry(cfg.SweepTimeout()+time.Minute),
			redsync.WithTries(1),
		)
		log.Info().Str("redis", cfg.RedisAddr).Str("key", cfg.SweepLockKey).Msg("Sweep lock enabled")
	}

	return expiry.NewRunner(svc, lock, cfg.SweepTimeout(), m, log)
}
