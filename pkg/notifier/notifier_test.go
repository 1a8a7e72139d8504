package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/wpmend-dev/wpmend-agent/internal/logger"
	"github.com/wpmend-dev/wpmend-agent/pkg/httpclient"

	"github.com/stretchr/testify/assert"
)

func TestNewMessage(t *testing.T) {
	msg, err := NewMessage(TopicTransition, map[string]string{"incident_id": "abc"})

	assert.NoError(t, err)
	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, TopicTransition, msg.Topic)
	assert.False(t, msg.PublishedAt.IsZero())

	var payload map[string]string

	assert.NoError(t, json.Unmarshal(msg.Payload, &payload))
	assert.Equal(t, "abc", payload["incident_id"])
}

func TestNewMessageUnmarshalablePayload(t *testing.T) {
	_, err := NewMessage(TopicStep, make(chan int))

	assert.Error(t, err)
}

func TestWebhookNotifierDelivers(t *testing.T) {
	var received *Message

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/notify", r.URL.Path)

		received = &Message{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(received))

		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	webhook := NewWebhookNotifier(httpclient.NewClient(srv.URL, "test-token"), logger.NewConsole(false))

	err := webhook.Publish(context.Background(), TopicEscalation, map[string]string{"incident_id": "abc"})

	assert.NoError(t, err)
	assert.NotNil(t, received)
	assert.Equal(t, TopicEscalation, received.Topic)
}

func TestWebhookNotifierSinkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	webhook := NewWebhookNotifier(httpclient.NewClient(srv.URL, "test-token"), logger.NewConsole(false))

	err := webhook.Publish(context.Background(), TopicResolved, map[string]string{})

	assert.Error(t, err)
}

func TestNoOpNotifier(t *testing.T) {
	assert.NoError(t, NoOpNotifier{}.Publish(context.Background(), TopicStep, nil))
}
