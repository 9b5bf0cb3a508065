package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"studybuddy/internal/config"
	"studybuddy/internal/pgmq"
	"studybuddy/internal/pubsub"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
)

// Queue is the subset of the pgmq client the relay needs.
type Queue interface {
	ReadWithPoll(ctx context.Context, queue string, visibilitySec, timeoutSec, maxMessages int) ([]*pgmq.Message, error)
	Send(ctx context.Context, queue string, payload []byte) (int64, error)
	Delete(ctx context.Context, queue string, msgID int64) error
}

// deadLetter wraps an event that exhausted its publish attempts.
type deadLetter struct {
	Event    json.RawMessage `json:"event"`
	Error    string          `json:"error"`
	Attempts uint64          `json:"attempts"`
	FailedAt time.Time       `json:"failed_at"`
}

// Relay forwards subscription events queued in pgmq to a Pub/Sub topic.
type Relay struct {
	cfg    *config.Config
	queue  Queue
	pub    pubsub.Publisher
	logger zerolog.Logger
	// idle is how long to wait after a failed read.
	idle time.Duration
}

// New creates a Relay reading cfg.PGMQEventsQueue and publishing to
// cfg.PubSubEventsTopic.
func New(cfg *config.Config, queue Queue, pub pubsub.Publisher, logger zerolog.Logger) *Relay {
	return &Relay{
		cfg:    cfg,
		queue:  queue,
		pub:    pub,
		logger: logger.With().Str("orchestrator", "relay").Logger(),
		idle:   time.Second,
	}
}

func (r *Relay) backoff() retry.Backoff {
	b := retry.NewExponential(time.Duration(r.cfg.RelayBackoffInitialMs) * time.Millisecond)
	b = retry.WithCappedDuration(time.Duration(r.cfg.RelayBackoffMaxSec)*time.Second, b)
	if r.cfg.RelayMaxRetries > 1 {
		b = retry.WithMaxRetries(uint64(r.cfg.RelayMaxRetries-1), b)
	} else {
		b = retry.WithMaxRetries(0, b)
	}
	return b
}

// Run polls until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	r.logger.Info().
		Str("queue", r.cfg.PGMQEventsQueue).
		Str("topic", r.cfg.PubSubEventsTopic).
		Msg("Starting event relay")
	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("Shutting down event relay")
			return nil
		default:
		}
		if _, err := r.Poll(ctx); err != nil {
			if ctx.Err() != nil {
				continue
			}
			r.logger.Error().Err(err).Msg("Error reading event queue")
			select {
			case <-ctx.Done():
			case <-time.After(r.idle):
			}
		}
	}
}

// Poll reads one batch and forwards it. It returns how many messages were
// published; dead-lettered messages are not counted.
func (r *Relay) Poll(ctx context.Context) (int, error) {
	msgs, err := r.queue.ReadWithPoll(ctx, r.cfg.PGMQEventsQueue, r.cfg.RelayVisibilitySec, r.cfg.RelayPollTimeoutSec, r.cfg.RelayPollMaxMsg)
	if err != nil {
		return 0, err
	}
	published := 0
	for _, msg := range msgs {
		if r.forward(ctx, msg) {
			published++
		}
	}
	return published, nil
}

func (r *Relay) forward(ctx context.Context, msg *pgmq.Message) bool {
	log := r.logger.With().Int64("msg_id", msg.ID).Int("read_ct", msg.ReadCt).Logger()

	var attempts uint64
	pubErr := retry.Do(ctx, r.backoff(), func(ctx context.Context) error {
		attempts++
		id, err := r.pub.Publish(ctx, r.cfg.PubSubEventsTopic, msg.Data)
		if err != nil {
			log.Warn().Err(err).Uint64("attempt", attempts).Msg("Publish failed")
			return retry.RetryableError(err)
		}
		log.Debug().Str("pubsub_id", id).Msg("Event relayed")
		return nil
	})

	if pubErr != nil {
		if ctx.Err() != nil {
			// Leave the message; it becomes visible again after the timeout.
			return false
		}
		if err := r.deadLetter(ctx, msg, pubErr, attempts); err != nil {
			// Not acked; redelivered after the visibility timeout.
			log.Error().Err(err).Str("dlq", r.cfg.PGMQEventsDLQ).Msg("Failed to send event to dead-letter queue")
			return false
		}
		r.ack(ctx, msg)
		log.Warn().Uint64("attempts", attempts).Err(pubErr).Msg("Exhausted publish retries; moved event to DLQ")
		return false
	}

	r.ack(ctx, msg)
	return true
}

func (r *Relay) deadLetter(ctx context.Context, msg *pgmq.Message, cause error, attempts uint64) error {
	payload, err := json.Marshal(deadLetter{
		Event:    json.RawMessage(msg.Data),
		Error:    cause.Error(),
		Attempts: attempts,
		FailedAt: time.Now().UTC(),
	})
	if err != nil {
		// Data was not valid JSON; keep it as a string instead.
		payload, _ = json.Marshal(deadLetter{
			Event:    json.RawMessage(fmt.Sprintf("%q", string(msg.Data))),
			Error:    cause.Error(),
			Attempts: attempts,
			FailedAt: time.Now().UTC(),
		})
	}
	_, err = r.queue.Send(ctx, r.cfg.PGMQEventsDLQ, payload)
	return err
}

func (r *Relay) ack(ctx context.Context, msg *pgmq.Message) {
	if err := r.queue.Delete(ctx, r.cfg.PGMQEventsQueue, msg.ID); err != nil {
		r.logger.Error().Err(err).Int64("msg_id", msg.ID).Msg("Error deleting event message")
	}
}
