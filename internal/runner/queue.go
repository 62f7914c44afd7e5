package runner

import (
	"context"
	"sync"

	"github.com/ipvm-wg/homestar/internal/logging"
)

// Queue is the message-passing abstraction the runner relays
// task-completion notifications through, letting it use a Redis-backed
// deployment or stay in-process for a single-node MVP without changing
// its own code. Workflow submissions do not pass through it.
type Queue interface {
	Publish(ctx context.Context, topic string, message []byte) error
	Subscribe(ctx context.Context, topic string, handler MessageHandler) error
	Close() error
}

// MessageHandler processes one queued message.
type MessageHandler func(ctx context.Context, message []byte) error

// MemoryQueue is a topic-keyed set of buffered channels, suitable for
// a single-node deployment with no external broker.
type MemoryQueue struct {
	mu     sync.Mutex
	topics map[string]chan []byte
	log    *logging.Logger
}

// NewMemoryQueue builds an empty in-process queue.
func NewMemoryQueue(log *logging.Logger) *MemoryQueue {
	return &MemoryQueue{topics: make(map[string]chan []byte), log: log}
}

func (q *MemoryQueue) topic(name string) chan []byte {
	q.mu.Lock()
	defer q.mu.Unlock()
	ch, ok := q.topics[name]
	if !ok {
		ch = make(chan []byte, 1000)
		q.topics[name] = ch
	}
	return ch
}

// Publish enqueues message on topic, dropping it with an error log if
// the topic's buffer is full rather than blocking the caller.
func (q *MemoryQueue) Publish(ctx context.Context, topic string, message []byte) error {
	ch := q.topic(topic)
	select {
	case ch <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		q.log.Error("queue full, dropping message", "topic", topic)
		return nil
	}
}

// Subscribe starts a goroutine draining topic for the lifetime of ctx,
// invoking handler for each message.
func (q *MemoryQueue) Subscribe(ctx context.Context, topic string, handler MessageHandler) error {
	ch := q.topic(topic)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-ch:
				if err := handler(ctx, msg); err != nil {
					q.log.Error("queue message handler failed", "topic", topic, "err", err)
				}
			}
		}
	}()
	return nil
}

// Close is a no-op: MemoryQueue's channels are garbage-collected with
// the queue itself once every subscriber goroutine's ctx is done.
func (q *MemoryQueue) Close() error { return nil }
