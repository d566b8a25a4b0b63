package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	cloudevents "github.com/cloudevents/sdk-go/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("kafka", func() {
	Context("config", func() {
		It("waits for every replica and never retries", func() {
			cfg := KafkaConfig{ClientID: "planner", WriteTimeout: 3 * time.Second}.saramaConfig()
			Expect(cfg.ClientID).To(Equal("planner"))
			Expect(cfg.Producer.RequiredAcks).To(Equal(sarama.WaitForAll))
			Expect(cfg.Producer.Retry.Max).To(Equal(0))
			Expect(cfg.Producer.Timeout).To(Equal(3 * time.Second))
			Expect(cfg.Consumer.Offsets.Initial).To(Equal(sarama.OffsetOldest))
		})
	})

	Context("writer", func() {
		It("writes the event in structured mode", func() {
			producer := mocks.NewSyncProducer(GinkgoT(), nil)
			producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
				e := cloudevents.NewEvent()
				if err := json.Unmarshal(val, &e); err != nil {
					return err
				}
				if e.Type() != WorkRequestMessageKind {
					return errors.New("unexpected event type " + e.Type())
				}
				return nil
			})
			w := &KafkaWriter{producer: producer}

			e := newEvent(WorkRequestMessageKind)
			Expect(e.SetData(cloudevents.ApplicationJSON, WorkRequest{LocationName: "Lisbon"})).To(Succeed())
			Expect(w.Write(context.TODO(), "work", e)).To(Succeed())
			Expect(w.Close(context.TODO())).To(Succeed())
		})

		It("wraps producer errors", func() {
			producer := mocks.NewSyncProducer(GinkgoT(), nil)
			producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
			w := &KafkaWriter{producer: producer}

			err := w.Write(context.TODO(), "work", newEvent(WorkRequestMessageKind))
			Expect(errors.Is(err, sarama.ErrOutOfBrokers)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("sending event"))
			Expect(w.Close(context.TODO())).To(Succeed())
		})
	})
})
