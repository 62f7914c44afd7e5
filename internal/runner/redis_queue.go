package runner

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/ipvm-wg/homestar/internal/logging"
)

// RedisQueue backs Queue with Redis pub/sub, for a multi-node
// deployment where task-completion notifications must reach
// subscribers on every node's runner.
type RedisQueue struct {
	client *redis.Client
	log    *logging.Logger
}

// NewRedisQueue wraps an already-connected redis.Client.
func NewRedisQueue(client *redis.Client, log *logging.Logger) *RedisQueue {
	return &RedisQueue{client: client, log: log}
}

// Publish sends message on a Redis channel named after topic.
func (q *RedisQueue) Publish(ctx context.Context, topic string, message []byte) error {
	if err := q.client.Publish(ctx, topic, message).Err(); err != nil {
		return fmt.Errorf("runner: redis publish to %s: %w", topic, err)
	}
	return nil
}

// Subscribe subscribes to topic and drains it for the lifetime of ctx,
// mirroring the teacher's completion-supervisor subscribe loop: wait
// for subscription confirmation, then range over the delivery channel.
func (q *RedisQueue) Subscribe(ctx context.Context, topic string, handler MessageHandler) error {
	pubsub := q.client.Subscribe(ctx, topic)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return fmt.Errorf("runner: subscribe to %s: %w", topic, err)
	}

	go func() {
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-ch:
				if msg == nil {
					return
				}
				if err := handler(ctx, []byte(msg.Payload)); err != nil {
					q.log.Error("redis queue message handler failed", "topic", topic, "err", err)
				}
			}
		}
	}()
	return nil
}

// Close disconnects the underlying Redis client.
func (q *RedisQueue) Close() error {
	return q.client.Close()
}
