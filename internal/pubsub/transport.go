package pubsub

import (
	"context"
	"fmt"

	"studybuddy/internal/config"
	"studybuddy/internal/pgmq"
)

// Transport names accepted in EVENTS_TRANSPORT.
const (
	TransportNone   = "none"
	TransportPubSub = "pubsub"
	TransportPGMQ   = "pgmq"
)

// NewTransport returns the Publisher selected by cfg.EventsTransport and the
// topic or queue name events go to. The close func is never nil.
func NewTransport(ctx context.Context, cfg *config.Config, queue *pgmq.Client) (Publisher, string, func() error, error) {
	noClose := func() error { return nil }
	switch cfg.EventsTransport {
	case "", TransportNone:
		return NoopPublisher{}, "", noClose, nil
	case TransportPubSub:
		p, err := NewPublisher(ctx, cfg)
		if err != nil {
			return nil, "", noClose, err
		}
		return p, cfg.PubSubEventsTopic, p.Close, nil
	case TransportPGMQ:
		if queue == nil {
			return nil, "", noClose, fmt.Errorf("pgmq transport requires a database connection")
		}
		if err := queue.CreateQueue(ctx, cfg.PGMQEventsQueue); err != nil {
			return nil, "", noClose, err
		}
		return NewPGMQPublisher(queue), cfg.PGMQEventsQueue, noClose, nil
	default:
		return nil, "", noClose, fmt.Errorf("unknown events transport %q", cfg.EventsTransport)
	}
}
