package events

import (
	"context"
	"sync"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"go.uber.org/zap"
)

// Handler processes one event read from a topic.
type Handler func(ctx context.Context, e cloudevents.Event) error

// Reader delivers the events of a topic to a handler until ctx is done.
type Reader interface {
	Consume(ctx context.Context, topic string, h Handler) error
}

const memoryTopicCapacity = 1024

// MemoryBus is an in process Writer and Reader. Each topic is a queue shared by its consumers,
// so an event is handled by exactly one of them. Events written before anyone consumes are kept.
type MemoryBus struct {
	mu     sync.Mutex
	topics map[string]chan cloudevents.Event
}

var (
	_ Writer = (*MemoryBus)(nil)
	_ Reader = (*MemoryBus)(nil)
)

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{topics: make(map[string]chan cloudevents.Event)}
}

func (b *MemoryBus) queue(topic string) chan cloudevents.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	q, found := b.topics[topic]
	if !found {
		q = make(chan cloudevents.Event, memoryTopicCapacity)
		b.topics[topic] = q
	}
	return q
}

// Write blocks while the topic queue is full.
func (b *MemoryBus) Write(ctx context.Context, topic string, e cloudevents.Event) error {
	select {
	case b.queue(topic) <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *MemoryBus) Consume(ctx context.Context, topic string, h Handler) error {
	q := b.queue(topic)
	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-q:
			if err := h(ctx, e); err != nil {
				zap.S().Named("memory_bus").Errorw("failed to handle event", "error", err, "topic", topic, "event_type", e.Type(), "event_id", e.ID())
			}
		}
	}
}

// Pending returns the number of events waiting on topic.
func (b *MemoryBus) Pending(topic string) int {
	return len(b.queue(topic))
}

func (b *MemoryBus) Close(_ context.Context) error {
	return nil
}
