package notifier

import (
	"context"
	"fmt"
	"net/http"

	"github.com/wpmend-dev/wpmend-agent/internal/logger"
	"github.com/wpmend-dev/wpmend-agent/pkg/httpclient"
)

// WebhookNotifier posts each message to a configured HTTP sink.
type WebhookNotifier struct {
	client *httpclient.Client
	logger *logger.Logger
}

func NewWebhookNotifier(client *httpclient.Client, l *logger.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		client: client,
		logger: l,
	}
}

func (n *WebhookNotifier) Publish(ctx context.Context, topic string, payload interface{}) error {
	msg, err := NewMessage(topic, payload)

	if err != nil {
		return err
	}

	return n.Deliver(msg)
}

// Deliver posts one message. Also used by the queue consumer for replay.
func (n *WebhookNotifier) Deliver(msg *Message) error {
	resp, err := n.client.Post("/notify", msg)

	if err != nil {
		return err
	}

	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("notification sink returned status %d", resp.StatusCode)
	}

	return nil
}
