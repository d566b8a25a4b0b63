package events

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	eventSource  string = "rentscope.market-planner"
	defaultTopic string = "rentscope.scraping"
)

// Writer is the interface to be implemented by the underlying writer.
type Writer interface {
	Write(ctx context.Context, topic string, e cloudevents.Event) error
	Close(ctx context.Context) error
}

var errProducerClosed = errors.New("event producer is closed")

const defaultCloseTimeout = 5 * time.Second

// EventProducer is a wrapper around a Writer with the buffer.
// It has a buffer to store pending events to not block the caller if the writer takes time to write the event.
// Delivery is best effort: write errors are logged and the event is dropped.
type EventProducer struct {
	buffer       *buffer
	wakeCh       chan struct{}
	stopCh       chan struct{}
	doneCh       chan struct{}
	closeOnce    sync.Once
	ctx          context.Context
	cancel       context.CancelFunc
	writer       Writer
	topic        string
	closeTimeout time.Duration
}

func NewEventProducer(w Writer, opts ...ProducerOptions) *EventProducer {
	ctx, cancel := context.WithCancel(context.Background())
	ep := &EventProducer{
		buffer:       newBuffer(),
		wakeCh:       make(chan struct{}, 1),
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
		ctx:          ctx,
		cancel:       cancel,
		writer:       w,
		topic:        defaultTopic,
		closeTimeout: defaultCloseTimeout,
	}

	for _, o := range opts {
		o(ep)
	}

	go ep.run()
	return ep
}

func (ep *EventProducer) Write(ctx context.Context, kind string, body io.Reader) error {
	select {
	case <-ep.stopCh:
		return errProducerClosed
	default:
	}

	d, err := io.ReadAll(body)
	if err != nil {
		return err
	}

	if err := ep.buffer.PushBack(&message{
		Kind: kind,
		Data: d,
	}); err != nil {
		return err
	}

	// wake up the consumer without waiting for it
	select {
	case ep.wakeCh <- struct{}{}:
	default:
	}

	return nil
}

// Close stops accepting events, gives the pending ones closeTimeout to be written and closes the
// writer. Events still buffered after that are dropped.
func (ep *EventProducer) Close() error {
	logger := zap.S().Named("event_producer")

	closeCtx, cancel := context.WithTimeout(context.Background(), ep.closeTimeout)
	defer cancel()

	ep.closeOnce.Do(func() { close(ep.stopCh) })

	select {
	case <-ep.doneCh:
	case <-closeCtx.Done():
		logger.Warnw("dropping pending events", "count", ep.buffer.Size())
	}
	ep.cancel()

	if err := ep.writer.Close(closeCtx); err != nil {
		logger.Errorf("event producer closed with error: %s", err)
		return err
	}

	logger.Info("event producer closed")

	return nil
}

func (ep *EventProducer) run() {
	defer close(ep.doneCh)

	for {
		for msg := ep.buffer.Pop(); msg != nil; msg = ep.buffer.Pop() {
			ep.send(msg)
		}

		select {
		case <-ep.wakeCh:
		case <-ep.stopCh:
			if ep.buffer.Size() == 0 {
				return
			}
		case <-ep.ctx.Done():
			return
		}
	}
}

func (ep *EventProducer) send(msg *message) {
	e := newEvent(msg.Kind)
	_ = e.SetData(cloudevents.ApplicationJSON, msg.Data)

	if err := ep.writer.Write(ep.ctx, ep.topic, e); err != nil {
		zap.S().Named("event_producer").Errorw("failed to send message", "error", err, "event_id", e.ID(), "event_type", e.Type(), "topic", ep.topic)
	}
}

func newEvent(kind string) cloudevents.Event {
	e := cloudevents.NewEvent()
	e.SetID(uuid.NewString())
	e.SetSource(eventSource)
	e.SetType(kind)
	e.SetTime(time.Now().UTC())
	return e
}
