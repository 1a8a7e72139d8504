// Package notifier delivers lifecycle notifications. Delivery is
// at-least-once and fire-and-forget from the core's perspective: the
// orchestrator never blocks on a notification succeeding.
package notifier

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Notifier interface {
	Publish(ctx context.Context, topic string, payload interface{}) error
}

// Topics emitted by the orchestrator.
const (
	TopicTransition = "incident.transition"
	TopicStep       = "incident.step"
	TopicEscalation = "incident.escalation"
	TopicResolved   = "incident.resolved"
)

type Message struct {
	ID          string          `json:"id"`
	Topic       string          `json:"topic"`
	Payload     json.RawMessage `json:"payload"`
	PublishedAt time.Time       `json:"published_at"`
}

func NewMessage(topic string, payload interface{}) (*Message, error) {
	data, err := json.Marshal(payload)

	if err != nil {
		return nil, err
	}

	return &Message{
		ID:          uuid.NewString(),
		Topic:       topic,
		Payload:     data,
		PublishedAt: time.Now(),
	}, nil
}

// NoOpNotifier is used when no sink is configured.
type NoOpNotifier struct{}

func (NoOpNotifier) Publish(ctx context.Context, topic string, payload interface{}) error {
	return nil
}
