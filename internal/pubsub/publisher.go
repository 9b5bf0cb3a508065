package pubsub

import (
	"context"
	"fmt"
	"strconv"

	"studybuddy/internal/config"
	"studybuddy/internal/pgmq"

	"cloud.google.com/go/pubsub"
)

// Publisher defines an interface for publishing messages.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) (string, error)
}

// PubSubPublisher is an implementation of Publisher using Google Pub/Sub.
type PubSubPublisher struct {
	client *pubsub.Client
}

// NewPublisher creates a new PubSubPublisher using the GCP project from config.
func NewPublisher(ctx context.Context, cfg *config.Config) (*PubSubPublisher, error) {
	client, err := pubsub.NewClient(ctx, cfg.GCPProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Pub/Sub client: %w", err)
	}
	return &PubSubPublisher{client: client}, nil
}

// Publish sends the payload to the given Pub/Sub topic and returns the message ID.
func (p *PubSubPublisher) Publish(ctx context.Context, topic string, payload []byte) (string, error) {
	t := p.client.Topic(topic)
	result := t.Publish(ctx, &pubsub.Message{Data: payload})
	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to publish message to topic %s: %w", topic, err)
	}
	return id, nil
}

// Close flushes pending messages and releases the client.
func (p *PubSubPublisher) Close() error {
	return p.client.Close()
}

// PGMQPublisher publishes into a pgmq queue named by topic.
type PGMQPublisher struct {
	client *pgmq.Client
}

// NewPGMQPublisher wraps a pgmq client as a Publisher.
func NewPGMQPublisher(client *pgmq.Client) *PGMQPublisher {
	return &PGMQPublisher{client: client}
}

// Publish sends the payload to the queue and returns the pgmq message id.
func (p *PGMQPublisher) Publish(ctx context.Context, topic string, payload []byte) (string, error) {
	id, err := p.client.Send(ctx, topic, payload)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(id, 10), nil
}

// NoopPublisher drops every message. Used when EVENTS_TRANSPORT=none.
type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, topic string, payload []byte) (string, error) {
	return "", nil
}
