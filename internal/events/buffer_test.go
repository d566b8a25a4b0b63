package events

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("buffer", Ordered, func() {
	Context("buffer", func() {
		It("add successfully", func() {
			buffer := newBuffer()

			err := buffer.PushBack(&message{Kind: DataUpdatedMessageKind, Data: []byte("msg1")})
			Expect(err).To(BeNil())
			Expect(buffer.Size()).To(Equal(1))
			Expect(buffer.head).To(Equal(buffer.tail))

			err = buffer.PushBack(&message{Kind: DataUpdatedMessageKind, Data: []byte("msg2")})
			Expect(err).To(BeNil())
			err = buffer.PushBack(&message{Kind: DataUpdatedMessageKind, Data: []byte("msg3")})
			Expect(err).To(BeNil())
			Expect(buffer.Size()).To(Equal(3))

			Expect(buffer.head.Data).To(Equal([]byte("msg1")))
			Expect(buffer.tail.Data).To(Equal([]byte("msg3")))
		})

		It("pops in insertion order", func() {
			buffer := newBuffer()
			for _, d := range []string{"msg1", "msg2", "msg3"} {
				Expect(buffer.PushBack(&message{Kind: DataUpdatedMessageKind, Data: []byte(d)})).To(BeNil())
			}

			for i, d := range []string{"msg1", "msg2", "msg3"} {
				m := buffer.Pop()
				Expect(m).NotTo(BeNil())
				Expect(m.Data).To(Equal([]byte(d)))
				Expect(m.prev).To(BeNil())
				Expect(buffer.Size()).To(Equal(2 - i))
			}

			Expect(buffer.head).To(BeNil())
			Expect(buffer.tail).To(BeNil())
			Expect(buffer.Pop()).To(BeNil())
		})
	})
})
