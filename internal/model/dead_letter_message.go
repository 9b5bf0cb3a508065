package model

import "time"

// DeadLetterStatus tracks triage of a dead-lettered event.
type DeadLetterStatus string

const (
	DeadLetterUnprocessed DeadLetterStatus = "unprocessed"
	DeadLetterReplayed    DeadLetterStatus = "replayed"
	DeadLetterDiscarded   DeadLetterStatus = "discarded"
)

// DeadLetterEvent is a subscription event that exhausted delivery and was
// pushed back to us for safekeeping.
type DeadLetterEvent struct {
	ID               string           `db:"id"`
	SubscriptionName string           `db:"subscription_name"`
	MessageID        string           `db:"message_id"`
	EventType        *EventType       `db:"event_type"` // nil when the payload is not a SubscriptionEvent
	StudentID        *string          `db:"student_id"`
	Payload          string           `db:"payload"`
	Attributes       *string          `db:"attributes"` // JSON object
	DeliveryAttempt  int              `db:"delivery_attempt"`
	Status           DeadLetterStatus `db:"status"`
	CreatedAt        time.Time        `db:"created_at"`
}
