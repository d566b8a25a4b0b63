package events

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var _ = Describe("stdout writer", func() {
	It("logs the event instead of delivering it", func() {
		core, logs := observer.New(zapcore.InfoLevel)
		restore := zap.ReplaceGlobals(zap.New(core))
		defer restore()

		e := newEvent(WorkRequestMessageKind)
		w := &StdoutWriter{}
		Expect(w.Write(context.TODO(), "scraping.work-requests", e)).To(Succeed())
		Expect(w.Close(context.TODO())).To(Succeed())

		Expect(logs.Len()).To(Equal(1))
		fields := logs.All()[0].ContextMap()
		Expect(fields["event_id"]).To(Equal(e.ID()))
		Expect(fields["topic"]).To(Equal("scraping.work-requests"))
	})
})
