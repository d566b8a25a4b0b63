package events

import (
	"context"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"go.uber.org/zap"
)

// StdoutWriter logs the events instead of delivering them. It stands in for the work request
// topic when no broker is configured, since no external worker could pick the requests up.
type StdoutWriter struct{}

var _ Writer = (*StdoutWriter)(nil)

func (s *StdoutWriter) Write(ctx context.Context, topic string, e cloudevents.Event) error {
	zap.S().Named("stdout_writer").Infow("event wrote", "event_id", e.ID(), "event_type", e.Type(), "topic", topic, "data", string(e.Data()))
	return nil
}

func (s *StdoutWriter) Close(_ context.Context) error {
	return nil
}
