package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"studybuddy/internal/config"
	"studybuddy/internal/metrics"
	"studybuddy/internal/model"

	ps "cloud.google.com/go/pubsub"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, topic string, payload []byte) (string, error) {
	args := m.Called(ctx, topic, payload)
	return args.String(0), args.Error(1)
}

func TestNewPublisherInvalidProject(t *testing.T) {
	cfg := &config.Config{GCPProjectID: ""}
	_, err := NewPublisher(context.Background(), cfg)
	assert.Error(t, err, "expected error when project ID is empty")
}

func TestEventPublisherPublishesJSON(t *testing.T) {
	pub := new(mockPublisher)
	m := metrics.New(prometheus.NewRegistry())
	ev := model.SubscriptionEvent{
		ID:         "ev-1",
		Type:       model.EventUpgradeApproved,
		StudentID:  "stu-1",
		Plan:       model.PlanPro,
		OccurredAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	pub.On("Publish", mock.Anything, "subscription-events", mock.MatchedBy(func(b []byte) bool {
		var got model.SubscriptionEvent
		return json.Unmarshal(b, &got) == nil && got.Type == model.EventUpgradeApproved && got.StudentID == "stu-1"
	})).Return("msg-1", nil).Once()

	require.NoError(t, NewEventPublisher(pub, "subscription-events", m).PublishEvent(context.Background(), ev))
	pub.AssertExpectations(t)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventPublishTotal.WithLabelValues("upgrade_approved", "success")))
}

func TestEventPublisherWrapsFailure(t *testing.T) {
	pub := new(mockPublisher)
	pub.On("Publish", mock.Anything, "t", mock.Anything).Return("", errors.New("unavailable"))

	err := NewEventPublisher(pub, "t", nil).PublishEvent(context.Background(), model.SubscriptionEvent{Type: model.EventPlanExpired, StudentID: "s"})
	assert.ErrorContains(t, err, "publish plan_expired event for student s")
}

func TestNoopPublisher(t *testing.T) {
	id, err := NoopPublisher{}.Publish(context.Background(), "any", []byte("x"))
	assert.NoError(t, err)
	assert.Empty(t, id)
}

func TestPublishWithEmulator(t *testing.T) {
	emulator := os.Getenv("PUBSUB_EMULATOR_HOST")
	if emulator == "" {
		t.Skip("PUBSUB_EMULATOR_HOST is not set, skip emulator integration test")
	}

	ctx := context.Background()
	cfg := &config.Config{GCPProjectID: "test-project"}
	pub, err := NewPublisher(ctx, cfg)
	require.NoError(t, err)
	defer pub.Close()

	topicName := "test-subscription-events"
	topic, err := pub.client.CreateTopic(ctx, topicName)
	require.NoError(t, err)
	sub, err := pub.client.CreateSubscription(ctx, "test-subscription-events-sub", ps.SubscriptionConfig{Topic: topic})
	require.NoError(t, err)

	events := NewEventPublisher(pub, topicName, nil)
	require.NoError(t, events.PublishEvent(ctx, model.SubscriptionEvent{ID: "e1", Type: model.EventPlanCancelled, StudentID: "stu-9"}))

	recvCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	c := make(chan []byte, 1)
	go func() {
		_ = sub.Receive(recvCtx, func(ctx context.Context, m *ps.Message) {
			c <- m.Data
			m.Ack()
			cancel()
		})
	}()

	select {
	case data := <-c:
		var got model.SubscriptionEvent
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, "stu-9", got.StudentID)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for message from emulator subscription")
	}
}

func TestNewTransport(t *testing.T) {
	ctx := context.Background()

	pub, topic, closeFn, err := NewTransport(ctx, &config.Config{EventsTransport: "none"}, nil)
	require.NoError(t, err)
	assert.IsType(t, NoopPublisher{}, pub)
	assert.Empty(t, topic)
	assert.NoError(t, closeFn())

	_, _, _, err = NewTransport(ctx, &config.Config{EventsTransport: "pgmq"}, nil)
	assert.Error(t, err)

	_, _, closeFn, err = NewTransport(ctx, &config.Config{EventsTransport: "kafka"}, nil)
	assert.ErrorContains(t, err, "kafka")
	assert.NotNil(t, closeFn)
}
