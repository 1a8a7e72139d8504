package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/wpmend-dev/wpmend-agent/internal/envconf"
	sherrors "github.com/wpmend-dev/wpmend-agent/pkg/errors"
)

const pendingKey = "notify:pending"

// QueueClient wraps the redis sorted set used as the notification work
// queue. Scores are publish timestamps, so the consumer drains oldest first
// and a failed delivery can be requeued with its original score preserved.
type QueueClient struct {
	client *goredis.Client
}

func NewQueueClient(conf *envconf.RedisConf) *QueueClient {
	return &QueueClient{
		client: goredis.NewClient(&goredis.Options{
			Addr:     fmt.Sprintf("%s:%s", conf.RedisHost, conf.RedisPort),
			Username: conf.RedisUsername,
			Password: conf.RedisPassword,
			DB:       conf.RedisDB,
		}),
	}
}

func (c *QueueClient) Enqueue(ctx context.Context, msg *Message) error {
	packed, err := json.Marshal(msg)

	if err != nil {
		return err
	}

	_, err = c.client.ZAdd(ctx, pendingKey, &goredis.Z{
		Score:  float64(msg.PublishedAt.Unix()),
		Member: packed,
	}).Result()

	return err
}

// Dequeue pops the oldest pending message. Returns NoPendingItemError when
// the queue is empty.
func (c *QueueClient) Dequeue(ctx context.Context) (*Message, float64, error) {
	count, err := c.client.Exists(ctx, pendingKey).Result()

	if err != nil {
		return nil, 0, err
	}

	if count == 0 {
		return nil, 0, sherrors.NoPendingItemError
	}

	values, err := c.client.ZPopMin(ctx, pendingKey).Result()

	if err != nil {
		return nil, 0, err
	}

	if len(values) == 0 {
		return nil, 0, sherrors.NoPendingItemError
	}

	rawBytes, ok := values[0].Member.(string)

	if !ok {
		return nil, 0, fmt.Errorf("cannot cast queue item to bytes, actual type: %T", values[0].Member)
	}

	msg := &Message{}

	if err := json.Unmarshal([]byte(rawBytes), msg); err != nil {
		return nil, 0, err
	}

	return msg, values[0].Score, nil
}

// Requeue puts a message back with its original score so ordering survives
// a failed delivery.
func (c *QueueClient) Requeue(ctx context.Context, msg *Message, score float64) error {
	packed, err := json.Marshal(msg)

	if err != nil {
		return err
	}

	_, err = c.client.ZAdd(ctx, pendingKey, &goredis.Z{
		Score:  score,
		Member: packed,
	}).Result()

	return err
}

func (c *QueueClient) Close() error {
	return c.client.Close()
}

// QueueNotifier enqueues messages for asynchronous delivery by the consumer.
type QueueNotifier struct {
	queue *QueueClient
}

func NewQueueNotifier(queue *QueueClient) *QueueNotifier {
	return &QueueNotifier{queue: queue}
}

func (n *QueueNotifier) Publish(ctx context.Context, topic string, payload interface{}) error {
	msg, err := NewMessage(topic, payload)

	if err != nil {
		return err
	}

	// enqueueing is bounded by the publish timestamp's second resolution;
	// retain a short deadline so a dead redis cannot stall the caller
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return n.queue.Enqueue(ctx, msg)
}
