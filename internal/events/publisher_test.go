package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("publisher", func() {
	It("routes the event to the topic of its kind", func() {
		w := newTestWriter()
		p := NewPublisher(w, WithTopic(WorkRequestMessageKind, "work-requests"))

		req := WorkRequest{JobID: uuid.New(), LocationName: "Porto"}
		Expect(p.Publish(context.TODO(), WorkRequestMessageKind, req)).To(Succeed())

		Expect(w.Topics()).To(Equal([]string{"work-requests"}))
		e := w.Events()[0]
		Expect(e.Type()).To(Equal(WorkRequestMessageKind))

		var got WorkRequest
		Expect(e.DataAs(&got)).To(Succeed())
		Expect(got.JobID).To(Equal(req.JobID))
		Expect(got.LocationName).To(Equal("Porto"))
	})

	It("uses the default topic for unrouted kinds", func() {
		w := newTestWriter()
		p := NewPublisher(w)
		Expect(p.Publish(context.TODO(), DataUpdatedMessageKind, DataUpdatedNotification{})).To(Succeed())
		Expect(w.Topics()).To(Equal([]string{defaultTopic}))
	})

	It("returns the writer error", func() {
		w := newTestWriter()
		w.err = errors.New("broker down")
		p := NewPublisher(w)

		err := p.Publish(context.TODO(), WorkRequestMessageKind, WorkRequest{})
		Expect(err).To(MatchError(ContainSubstring("broker down")))
	})

	It("times out slow writes", func() {
		w := newTestWriter()
		w.delay = time.Second
		p := NewPublisher(w, WithPublishTimeout(50*time.Millisecond))

		err := p.Publish(context.TODO(), WorkRequestMessageKind, WorkRequest{})
		Expect(errors.Is(err, context.DeadlineExceeded)).To(BeTrue())
	})
})
