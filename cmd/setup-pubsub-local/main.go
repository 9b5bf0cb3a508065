// Command setup-pubsub-local creates the subscription events topic, its
// dead-letter topic and their subscriptions on the Pub/Sub emulator.
package main

import (
	"context"
	"flag"
	"time"

	"studybuddy/internal/config"
	"studybuddy/internal/logger"

	"cloud.google.com/go/pubsub"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

const (
	eventsRetention     = 7 * 24 * time.Hour
	maxDeliveryAttempts = 5
)

func main() {
	reset := flag.Bool("reset", false, "Delete every topic and subscription on the emulator first")
	pushEndpoint := flag.String("push-endpoint", "", "Push endpoint for the events subscription (pull when empty)")
	flag.Parse()

	logger := logger.New()
	if err := godotenv.Load(); err != nil {
		logger.Warn().Msg("Warning: no .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Msgf("Failed to load config: %v", err)
	}
	if cfg.GCPProjectID == "" {
		logger.Fatal().Msg("GCP_PROJECT_ID is not set")
	}
	if cfg.PubSubEmulatorHost == "" {
		logger.Fatal().Msg("PUBSUB_EMULATOR_HOST must be set; this tool only targets the emulator")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := pubsub.NewClient(ctx, cfg.GCPProjectID,
		option.WithEndpoint(cfg.PubSubEmulatorHost),
		option.WithoutAuthentication(),
	)
	if err != nil {
		logger.Fatal().Msgf("Failed to create Pub/Sub client: %v", err)
	}
	defer client.Close()

	if *reset {
		if err := resetEmulator(ctx, client, logger); err != nil {
			logger.Fatal().Msgf("Failed to reset emulator: %v", err)
		}
	}
	if err := ensureEventsTopology(ctx, client, cfg.PubSubEventsTopic, *pushEndpoint, logger); err != nil {
		logger.Fatal().Msgf("Failed to set up %s: %v", cfg.PubSubEventsTopic, err)
	}
	logger.Info().Str("topic", cfg.PubSubEventsTopic).Msg("Pub/Sub emulator ready")
}

func resetEmulator(ctx context.Context, client *pubsub.Client, logger zerolog.Logger) error {
	subs := client.Subscriptions(ctx)
	for {
		sub, err := subs.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return err
		}
		if err := sub.Delete(ctx); err != nil {
			logger.Warn().Err(err).Str("subscription", sub.ID()).Msg("Failed to delete subscription")
		}
	}

	topics := client.Topics(ctx)
	for {
		topic, err := topics.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return err
		}
		if err := topic.Delete(ctx); err != nil {
			logger.Warn().Err(err).Str("topic", topic.ID()).Msg("Failed to delete topic")
		}
	}
	return nil
}

// ensureEventsTopology creates <topic>, <topic>-dlq, <topic>-sub (dead
// lettering into the dlq) and <topic>-dlq-sub.
func ensureEventsTopology(ctx context.Context, client *pubsub.Client, topicID, pushEndpoint string, logger zerolog.Logger) error {
	dlq, err := ensureTopic(ctx, client, topicID+"-dlq", logger)
	if err != nil {
		return err
	}
	events, err := ensureTopic(ctx, client, topicID, logger)
	if err != nil {
		return err
	}

	retry := &pubsub.RetryPolicy{MinimumBackoff: 10 * time.Second, MaximumBackoff: 600 * time.Second}
	err = ensureSubscription(ctx, client, topicID+"-sub", pubsub.SubscriptionConfig{
		Topic:       events,
		PushConfig:  pubsub.PushConfig{Endpoint: pushEndpoint},
		AckDeadline: 60 * time.Second,
		RetryPolicy: retry,
		DeadLetterPolicy: &pubsub.DeadLetterPolicy{
			DeadLetterTopic:     dlq.String(),
			MaxDeliveryAttempts: maxDeliveryAttempts,
		},
	}, logger)
	if err != nil {
		return err
	}
	return ensureSubscription(ctx, client, topicID+"-dlq-sub", pubsub.SubscriptionConfig{
		Topic:       dlq,
		AckDeadline: 60 * time.Second,
		RetryPolicy: retry,
	}, logger)
}

func ensureTopic(ctx context.Context, client *pubsub.Client, id string, logger zerolog.Logger) (*pubsub.Topic, error) {
	topic := client.Topic(id)
	exists, err := topic.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if exists {
		logger.Info().Str("topic", id).Msg("Topic exists")
		return topic, nil
	}
	logger.Info().Str("topic", id).Dur("retention", eventsRetention).Msg("Creating topic")
	return client.CreateTopicWithConfig(ctx, id, &pubsub.TopicConfig{RetentionDuration: eventsRetention})
}

func ensureSubscription(ctx context.Context, client *pubsub.Client, id string, cfg pubsub.SubscriptionConfig, logger zerolog.Logger) error {
	sub := client.Subscription(id)
	exists, err := sub.Exists(ctx)
	if err != nil {
		return err
	}
	if !exists {
		logger.Info().Str("subscription", id).Str("endpoint", cfg.PushConfig.Endpoint).Msg("Creating subscription")
		_, err := client.CreateSubscription(ctx, id, cfg)
		return err
	}

	existing, err := sub.Config(ctx)
	if err != nil {
		return err
	}
	if existing.PushConfig.Endpoint == cfg.PushConfig.Endpoint && existing.AckDeadline == cfg.AckDeadline {
		logger.Info().Str("subscription", id).Msg("Subscription up to date")
		return nil
	}
	logger.Info().Str("subscription", id).Msg("Updating subscription")
	_, err = sub.Update(ctx, pubsub.SubscriptionConfigToUpdate{
		PushConfig:  &cfg.PushConfig,
		AckDeadline: cfg.AckDeadline,
		RetryPolicy: cfg.RetryPolicy,
	})
	return err
}
