package relay

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"studybuddy/internal/config"
	"studybuddy/internal/pgmq"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQueue struct {
	mu      sync.Mutex
	batches [][]*pgmq.Message
	readErr error
	sendErr error
	sent    map[string][][]byte
	deleted []int64
}

func (q *fakeQueue) ReadWithPoll(ctx context.Context, queue string, visibilitySec, timeoutSec, maxMessages int) ([]*pgmq.Message, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.readErr != nil {
		return nil, q.readErr
	}
	if len(q.batches) == 0 {
		return nil, nil
	}
	b := q.batches[0]
	q.batches = q.batches[1:]
	return b, nil
}

func (q *fakeQueue) Send(ctx context.Context, queue string, payload []byte) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.sendErr != nil {
		return 0, q.sendErr
	}
	if q.sent == nil {
		q.sent = map[string][][]byte{}
	}
	q.sent[queue] = append(q.sent[queue], payload)
	return int64(len(q.sent[queue])), nil
}

func (q *fakeQueue) Delete(ctx context.Context, queue string, msgID int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.deleted = append(q.deleted, msgID)
	return nil
}

type fakePublisher struct {
	mu       sync.Mutex
	failures int
	calls    int
	topics   []string
}

func (p *fakePublisher) Publish(ctx context.Context, topic string, payload []byte) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.topics = append(p.topics, topic)
	if p.calls <= p.failures {
		return "", errors.New("unavailable")
	}
	return "ps-1", nil
}

func testConfig() *config.Config {
	return &config.Config{
		PGMQEventsQueue:       "subscription_events",
		PGMQEventsDLQ:         "subscription_events_dlq",
		PubSubEventsTopic:     "subscription-events",
		RelayPollTimeoutSec:   1,
		RelayVisibilitySec:    30,
		RelayPollMaxMsg:       10,
		RelayMaxRetries:       3,
		RelayBackoffInitialMs: 1,
		RelayBackoffMaxSec:    1,
	}
}

func TestPollForwardsAndAcks(t *testing.T) {
	q := &fakeQueue{batches: [][]*pgmq.Message{{
		{ID: 1, Data: []byte(`{"type":"upgrade_approved"}`)},
		{ID: 2, Data: []byte(`{"type":"plan_expired"}`)},
	}}}
	pub := &fakePublisher{}
	r := New(testConfig(), q, pub, zerolog.Nop())

	n, err := r.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []int64{1, 2}, q.deleted)
	assert.Equal(t, []string{"subscription-events", "subscription-events"}, pub.topics)
	assert.Empty(t, q.sent)
}

func TestPollRetriesTransientFailures(t *testing.T) {
	q := &fakeQueue{batches: [][]*pgmq.Message{{{ID: 7, Data: []byte(`{}`)}}}}
	pub := &fakePublisher{failures: 2}
	r := New(testConfig(), q, pub, zerolog.Nop())

	n, err := r.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 3, pub.calls)
	assert.Empty(t, q.sent)
}

func TestPollDeadLettersAfterRetries(t *testing.T) {
	q := &fakeQueue{batches: [][]*pgmq.Message{{{ID: 9, Data: []byte(`{"type":"student_blocked"}`)}}}}
	pub := &fakePublisher{failures: 100}
	r := New(testConfig(), q, pub, zerolog.Nop())

	n, err := r.Poll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 3, pub.calls)
	assert.Equal(t, []int64{9}, q.deleted)

	require.Len(t, q.sent["subscription_events_dlq"], 1)
	var dl deadLetter
	require.NoError(t, json.Unmarshal(q.sent["subscription_events_dlq"][0], &dl))
	assert.JSONEq(t, `{"type":"student_blocked"}`, string(dl.Event))
	assert.EqualValues(t, 3, dl.Attempts)
	assert.Equal(t, "unavailable", dl.Error)
}

func TestPollKeepsEventWhenDeadLetterQueueFails(t *testing.T) {
	q := &fakeQueue{
		batches: [][]*pgmq.Message{{{ID: 7, Data: []byte(`{"type":"upgrade_approved"}`)}}},
		sendErr: errors.New("dlq down"),
	}
	pub := &fakePublisher{failures: 100}
	r := New(testConfig(), q, pub, zerolog.Nop())

	n, err := r.Poll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 3, pub.calls)
	assert.Empty(t, q.deleted)
}

func TestRunStopsOnCancel(t *testing.T) {
	q := &fakeQueue{readErr: errors.New("connection refused")}
	r := New(testConfig(), q, &fakePublisher{}, zerolog.Nop())
	r.idle = 10 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	assert.NoError(t, r.Run(ctx))
}
