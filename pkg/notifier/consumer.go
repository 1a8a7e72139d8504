package notifier

import (
	"context"
	"errors"
	"time"

	"github.com/wpmend-dev/wpmend-agent/internal/logger"
	sherrors "github.com/wpmend-dev/wpmend-agent/pkg/errors"
)

// Consumer drains the work queue and delivers each message to the webhook
// sink, requeueing on failure. Delivery is therefore at-least-once.
type Consumer struct {
	queue   *QueueClient
	webhook *WebhookNotifier
	logger  *logger.Logger

	interval time.Duration
	kill     chan struct{}
	done     chan struct{}
}

func NewConsumer(queue *QueueClient, webhook *WebhookNotifier, l *logger.Logger, interval time.Duration) *Consumer {
	return &Consumer{
		queue:    queue,
		webhook:  webhook,
		logger:   l,
		interval: interval,
	}
}

func (c *Consumer) Start() {
	c.kill = make(chan struct{})
	c.done = make(chan struct{})

	go func() {
		defer close(c.done)

		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		for {
			select {
			case <-c.kill:
				return
			case <-ticker.C:
				c.drain()
			}
		}
	}()
}

func (c *Consumer) Stop() {
	if c.kill == nil {
		return
	}

	close(c.kill)
	<-c.done
}

func (c *Consumer) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), c.interval)
	defer cancel()

	for {
		msg, score, err := c.queue.Dequeue(ctx)

		if err != nil {
			if !errors.Is(err, sherrors.NoPendingItemError) {
				c.logger.Warn().Msgf("could not read notification queue: %v", err)
			}

			return
		}

		if err := c.webhook.Deliver(msg); err != nil {
			c.logger.Warn().Msgf("notification %s delivery failed, requeueing: %v", msg.ID, err)

			if err := c.queue.Requeue(ctx, msg, score); err != nil {
				c.logger.Error().Msgf("could not requeue notification %s: %v", msg.ID, err)
			}

			return
		}

		c.logger.Debug().Msgf("delivered notification %s on topic %s", msg.ID, msg.Topic)
	}
}
