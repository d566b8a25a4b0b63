package events

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("memory bus", func() {
	It("keeps events written before a consumer starts", func() {
		bus := NewMemoryBus()
		Expect(bus.Write(context.TODO(), "t", newEvent(CompletedMessageKind))).To(Succeed())
		Expect(bus.Pending("t")).To(Equal(1))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var handled atomic.Int32
		go func() {
			_ = bus.Consume(ctx, "t", func(_ context.Context, e cloudevents.Event) error {
				handled.Add(1)
				return nil
			})
		}()

		Eventually(handled.Load).WithTimeout(time.Second).Should(BeEquivalentTo(1))
		Expect(bus.Pending("t")).To(Equal(0))
	})

	It("keeps consuming after a handler error", func() {
		bus := NewMemoryBus()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var handled atomic.Int32
		go func() {
			_ = bus.Consume(ctx, "t", func(_ context.Context, e cloudevents.Event) error {
				handled.Add(1)
				return errors.New("bad event")
			})
		}()

		for i := 0; i < 3; i++ {
			Expect(bus.Write(context.TODO(), "t", newEvent(FailedMessageKind))).To(Succeed())
		}
		Eventually(handled.Load).WithTimeout(time.Second).Should(BeEquivalentTo(3))
	})

	It("isolates topics", func() {
		bus := NewMemoryBus()
		Expect(bus.Write(context.TODO(), "a", newEvent(CompletedMessageKind))).To(Succeed())
		Expect(bus.Pending("a")).To(Equal(1))
		Expect(bus.Pending("b")).To(Equal(0))
	})

	It("stops consuming when the context is cancelled", func() {
		bus := NewMemoryBus()
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() {
			done <- bus.Consume(ctx, "t", func(context.Context, cloudevents.Event) error { return nil })
		}()
		cancel()
		Eventually(done).WithTimeout(time.Second).Should(Receive(BeNil()))
	})
})
