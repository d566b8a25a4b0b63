package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	cloudevents "github.com/cloudevents/sdk-go/v2"
	pkgerrors "github.com/pkg/errors"
	"go.uber.org/zap"
)

const structuredContentType = "application/cloudevents+json"

// KafkaConfig holds what the kafka writer and reader need to reach the brokers.
type KafkaConfig struct {
	Brokers       []string
	ClientID      string
	ConsumerGroup string
	WriteTimeout  time.Duration
}

func (c KafkaConfig) saramaConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.ClientID = c.ClientID
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 0 // a failed publish fails the job, retries are explicit
	if c.WriteTimeout > 0 {
		cfg.Producer.Timeout = c.WriteTimeout
		cfg.Net.WriteTimeout = c.WriteTimeout
	}
	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	cfg.Consumer.Return.Errors = true
	return cfg
}

// KafkaWriter writes events in structured mode: the record value is the json encoded event and the
// record key is the event id.
type KafkaWriter struct {
	producer sarama.SyncProducer
}

var _ Writer = (*KafkaWriter)(nil)

func NewKafkaWriter(cfg KafkaConfig) (*KafkaWriter, error) {
	producer, err := sarama.NewSyncProducer(cfg.Brokers, cfg.saramaConfig())
	if err != nil {
		return nil, pkgerrors.Wrap(err, "creating kafka producer")
	}
	return &KafkaWriter{producer: producer}, nil
}

func (k *KafkaWriter) Write(ctx context.Context, topic string, e cloudevents.Event) error {
	value, err := json.Marshal(e)
	if err != nil {
		return pkgerrors.Wrap(err, "encoding event")
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(e.ID()),
		Value: sarama.ByteEncoder(value),
		Headers: []sarama.RecordHeader{
			{Key: []byte("content-type"), Value: []byte(structuredContentType)},
		},
	}

	errCh := make(chan error, 1)
	go func() {
		_, _, err := k.producer.SendMessage(msg)
		errCh <- err
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return pkgerrors.Wrapf(err, "sending event %s to %s", e.ID(), topic)
		}
		return nil
	case <-ctx.Done():
		return pkgerrors.Wrapf(ctx.Err(), "sending event %s to %s", e.ID(), topic)
	}
}

func (k *KafkaWriter) Close(_ context.Context) error {
	return k.producer.Close()
}

// KafkaReader consumes topics through consumer groups. Each topic gets its own group named
// "<consumer group>.<topic>" so topics rebalance independently.
type KafkaReader struct {
	cfg KafkaConfig
}

var _ Reader = (*KafkaReader)(nil)

func NewKafkaReader(cfg KafkaConfig) *KafkaReader {
	return &KafkaReader{cfg: cfg}
}

func (k *KafkaReader) Consume(ctx context.Context, topic string, h Handler) error {
	groupID := fmt.Sprintf("%s.%s", k.cfg.ConsumerGroup, topic)
	group, err := sarama.NewConsumerGroup(k.cfg.Brokers, groupID, k.cfg.saramaConfig())
	if err != nil {
		return pkgerrors.Wrapf(err, "creating consumer group %s", groupID)
	}
	defer group.Close()

	logger := zap.S().Named("kafka_reader").With("topic", topic, "group", groupID)
	go func() {
		for err := range group.Errors() {
			logger.Errorw("consumer group error", "error", err)
		}
	}()

	handler := &groupHandler{topic: topic, handler: h, logger: logger}
	for {
		// Consume returns on every rebalance and has to be called again.
		if err := group.Consume(ctx, []string{topic}, handler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			return pkgerrors.Wrapf(err, "consuming %s", topic)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

type groupHandler struct {
	topic   string
	handler Handler
	logger  *zap.SugaredLogger
}

func (g *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (g *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim marks a record only after it was handled. A record whose handler fails is marked
// too: the failure is logged and recovery goes through the job retry path.
func (g *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			e := cloudevents.NewEvent()
			if err := json.Unmarshal(msg.Value, &e); err != nil {
				g.logger.Errorw("dropping undecodable record", "error", err, "offset", msg.Offset, "partition", msg.Partition)
				session.MarkMessage(msg, "")
				continue
			}
			if err := g.handler(session.Context(), e); err != nil {
				g.logger.Errorw("failed to handle event", "error", err, "event_type", e.Type(), "event_id", e.ID())
			}
			session.MarkMessage(msg, "")
		case <-session.Context().Done():
			return nil
		}
	}
}
