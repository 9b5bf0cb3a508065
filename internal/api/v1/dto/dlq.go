package dto

// PubSubPushRequest is the body Pub/Sub posts to a push endpoint.
type PubSubPushRequest struct {
	Message         PubSubMessage `json:"message" validate:"required"`
	Subscription    string        `json:"subscription" validate:"required"`
	DeliveryAttempt int           `json:"deliveryAttempt"`
}

// PubSubMessage carries the base64 payload and its attributes.
type PubSubMessage struct {
	Data        string            `json:"data"`
	MessageID   string            `json:"messageId" validate:"required"`
	PublishTime string            `json:"publishTime"`
	Attributes  map[string]string `json:"attributes"`
}
