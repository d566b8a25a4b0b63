package events

import (
	"context"
	"fmt"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
)

const defaultPublishTimeout = 10 * time.Second

// Publisher writes one event synchronously and reports the outcome to the caller.
// Unlike EventProducer it does not buffer: a failed or timed out write is returned as an error.
type Publisher struct {
	writer  Writer
	topics  map[string]string
	timeout time.Duration
}

func NewPublisher(w Writer, opts ...PublisherOptions) *Publisher {
	p := &Publisher{
		writer:  w,
		topics:  make(map[string]string),
		timeout: defaultPublishTimeout,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Publish encodes payload as json and writes it as an event of the given kind.
func (p *Publisher) Publish(ctx context.Context, kind string, payload any) error {
	e := newEvent(kind)
	if err := e.SetData(cloudevents.ApplicationJSON, payload); err != nil {
		return fmt.Errorf("encoding %s event: %w", kind, err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- p.writer.Write(ctx, p.topicFor(kind), e)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("publishing %s event: %w", kind, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("publishing %s event: %w", kind, ctx.Err())
	}
}

func (p *Publisher) topicFor(kind string) string {
	if topic, found := p.topics[kind]; found {
		return topic
	}
	return defaultTopic
}
