package events

import "time"

type ProducerOptions func(e *EventProducer)

func WithOutputTopic(topic string) ProducerOptions {
	return func(e *EventProducer) {
		e.topic = topic
	}
}

// WithCloseTimeout bounds the time Close waits for pending events.
func WithCloseTimeout(timeout time.Duration) ProducerOptions {
	return func(e *EventProducer) {
		if timeout > 0 {
			e.closeTimeout = timeout
		}
	}
}

type PublisherOptions func(p *Publisher)

// WithTopic routes messages of kind to topic. Kinds without a route go to the default topic.
func WithTopic(kind, topic string) PublisherOptions {
	return func(p *Publisher) {
		p.topics[kind] = topic
	}
}

func WithPublishTimeout(timeout time.Duration) PublisherOptions {
	return func(p *Publisher) {
		if timeout > 0 {
			p.timeout = timeout
		}
	}
}
