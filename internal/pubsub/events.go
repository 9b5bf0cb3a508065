package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"studybuddy/internal/metrics"
	"studybuddy/internal/model"
)

// EventPublisher serialises subscription events onto a topic.
type EventPublisher struct {
	pub     Publisher
	topic   string
	metrics *metrics.EntitlementMetrics
}

// NewEventPublisher publishes events to topic through pub. m may be nil.
func NewEventPublisher(pub Publisher, topic string, m *metrics.EntitlementMetrics) *EventPublisher {
	return &EventPublisher{pub: pub, topic: topic, metrics: m}
}

// PublishEvent marshals ev as JSON and publishes it.
func (p *EventPublisher) PublishEvent(ctx context.Context, ev model.SubscriptionEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", ev.Type, err)
	}
	_, err = p.pub.Publish(ctx, p.topic, payload)
	if p.metrics != nil {
		result := "success"
		if err != nil {
			result = "failed"
		}
		p.metrics.EventPublishTotal.WithLabelValues(string(ev.Type), result).Inc()
	}
	if err != nil {
		return fmt.Errorf("publish %s event for student %s: %w", ev.Type, ev.StudentID, err)
	}
	return nil
}
