package queue

import (
	"context"
	"sync"

	"github.com/loandesk/loanengine/common/logger"
)

// Queue carries committed ledger events to in-process subscribers
// (reporting collaborators). Delivery is best-effort; the database
// ledger is the source of truth.
type Queue interface {
	Publish(ctx context.Context, topic string, key string, message []byte) error
	Subscribe(ctx context.Context, topic string, handler MessageHandler) error
	Close() error
}

// MessageHandler consumes one message; key is the asset id the event
// belongs to.
type MessageHandler func(ctx context.Context, key string, value []byte) error

// topicBuffer bounds unconsumed events per topic. Publishing to a
// full topic drops the message rather than stalling a booking commit.
const topicBuffer = 1000

// Message is one published event.
type Message struct {
	Topic string
	Key   string
	Value []byte
}

// MemoryQueue is a channel-backed Queue for in-process delivery.
type MemoryQueue struct {
	mu     sync.Mutex
	topics map[string]chan *Message
	log    *logger.Logger
}

// NewMemoryQueue creates a new in-memory queue.
func NewMemoryQueue(log *logger.Logger) *MemoryQueue {
	return &MemoryQueue{
		topics: make(map[string]chan *Message),
		log:    log,
	}
}

func (q *MemoryQueue) topic(name string) chan *Message {
	q.mu.Lock()
	defer q.mu.Unlock()

	ch, ok := q.topics[name]
	if !ok {
		ch = make(chan *Message, topicBuffer)
		q.topics[name] = ch
	}
	return ch
}

// Publish enqueues a message on topic. A full topic drops the message
// with a warning instead of blocking the caller.
func (q *MemoryQueue) Publish(ctx context.Context, topic string, key string, message []byte) error {
	msg := &Message{Topic: topic, Key: key, Value: message}

	select {
	case q.topic(topic) <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		q.log.Warn("queue full, dropping message", "topic", topic, "key", key)
		return nil
	}
}

// Subscribe runs handler for every message on topic until ctx ends.
// Handler errors are logged and consumption continues.
func (q *MemoryQueue) Subscribe(ctx context.Context, topic string, handler MessageHandler) error {
	ch := q.topic(topic)
	q.log.Info("subscribing to topic", "topic", topic)

	go func() {
		for {
			select {
			case <-ctx.Done():
				q.log.Info("subscription cancelled", "topic", topic)
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if err := handler(ctx, msg.Key, msg.Value); err != nil {
					q.log.Error("message handler error", "topic", topic, "key", msg.Key, "error", err)
				}
			}
		}
	}()

	return nil
}

// Close closes all topic channels. Pending messages still drain to
// their subscribers.
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for topic, ch := range q.topics {
		close(ch)
		q.log.Info("closed topic", "topic", topic)
	}
	q.topics = make(map[string]chan *Message)

	return nil
}
