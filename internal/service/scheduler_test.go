package service_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/rentscope/market-planner/internal/config"
	"github.com/rentscope/market-planner/internal/service"
	"github.com/rentscope/market-planner/internal/store"
	"github.com/rentscope/market-planner/internal/store/model"
	"gorm.io/gorm"
)

// fakeAnalyzer records the locations it is asked to analyze.
type fakeAnalyzer struct {
	mu      sync.Mutex
	calls   []uuid.UUID
	failing map[uuid.UUID]bool
	empty   map[uuid.UUID]bool
	panicOn uuid.UUID
}

func newFakeAnalyzer() *fakeAnalyzer {
	return &fakeAnalyzer{failing: map[uuid.UUID]bool{}, empty: map[uuid.UUID]bool{}}
}

func (f *fakeAnalyzer) OrchestrateLocationAnalysis(_ context.Context, id uuid.UUID) ([]model.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, id)
	switch {
	case id == f.panicOn:
		panic("analyzer exploded")
	case f.failing[id]:
		return nil, errors.New("location rejected")
	case f.empty[id]:
		return nil, nil
	}
	return []model.Job{{ID: uuid.New(), LocationID: id}}, nil
}

func (f *fakeAnalyzer) Calls() []uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uuid.UUID{}, f.calls...)
}

var _ = Describe("batch scheduler", Ordered, func() {
	var (
		s        store.Store
		gormDB   *gorm.DB
		analyzer *fakeAnalyzer
		clock    *fakeClock
		now      = time.Date(2026, 5, 10, 3, 0, 0, 0, time.UTC)

		fresh, stale, never *model.Location
	)

	BeforeAll(func() {
		s, gormDB = newTestStore()
	})

	AfterAll(func() {
		s.Close()
	})

	BeforeEach(func() {
		analyzer = newFakeAnalyzer()
		clock = newFakeClock(now)

		fresh = createLocation(s, "Faro", true)
		Expect(s.Location().Touch(context.TODO(), fresh.ID, now.Add(-24*time.Hour))).To(Succeed())
		stale = createLocation(s, "Braga", true)
		Expect(s.Location().Touch(context.TODO(), stale.ID, now.Add(-10*24*time.Hour))).To(Succeed())
		never = createLocation(s, "Coimbra", false)
	})

	AfterEach(func() {
		cleanTables(gormDB)
	})

	newScheduler := func(strategy config.BatchStrategy, delay time.Duration) *service.BatchScheduler {
		return service.NewBatchScheduler(s, analyzer, strategy, delay, 7*24*time.Hour, service.WithBatchClock(clock.Now))
	}

	It("starts as not started", func() {
		status := newScheduler(config.BatchStrategyStaleOnly, 0).Status()
		Expect(status.State).To(Equal(service.BatchStateNotStarted))
		Expect(status.Total).To(Equal(0))
		Expect(status.StartedAt).To(BeNil())
		Expect(status.EstimatedCompletion).To(BeNil())
	})

	It("only schedules stale locations with STALE_ONLY", func() {
		scheduler := newScheduler(config.BatchStrategyStaleOnly, 0)

		status, err := scheduler.Trigger(context.TODO())
		Expect(err).To(BeNil())
		Expect(status.Total).To(Equal(2))

		scheduler.Wait()
		Expect(analyzer.Calls()).To(ConsistOf(stale.ID, never.ID))

		status = scheduler.Status()
		Expect(status.State).To(Equal(service.BatchStateCompleted))
		Expect(status.Completed).To(Equal(2))
		Expect(status.Failed).To(Equal(0))
		Expect(status.FinishedAt).NotTo(BeNil())
		Expect(status.EstimatedCompletion).To(BeNil())
	})

	It("schedules every location with ALL_LOCATIONS", func() {
		scheduler := newScheduler(config.BatchStrategyAllLocations, 0)

		_, err := scheduler.Trigger(context.TODO())
		Expect(err).To(BeNil())
		scheduler.Wait()

		Expect(analyzer.Calls()).To(ConsistOf(fresh.ID, stale.ID, never.ID))
		Expect(scheduler.Status().Completed).To(Equal(3))
	})

	It("counts failed locations without failing the batch", func() {
		analyzer.failing[stale.ID] = true
		analyzer.empty[never.ID] = true
		scheduler := newScheduler(config.BatchStrategyAllLocations, 0)

		_, err := scheduler.Trigger(context.TODO())
		Expect(err).To(BeNil())
		scheduler.Wait()

		status := scheduler.Status()
		Expect(status.State).To(Equal(service.BatchStateCompleted))
		Expect(status.Total).To(Equal(3))
		Expect(status.Completed).To(Equal(1))
		Expect(status.Failed).To(Equal(2))
	})

	It("reports FAILED when the driver crashes", func() {
		analyzer.panicOn = stale.ID
		scheduler := newScheduler(config.BatchStrategyStaleOnly, 0)

		_, err := scheduler.Trigger(context.TODO())
		Expect(err).To(BeNil())
		scheduler.Wait()

		status := scheduler.Status()
		Expect(status.State).To(Equal(service.BatchStateFailed))
		Expect(status.Error).To(ContainSubstring("analyzer exploded"))
	})

	It("rejects an unknown strategy", func() {
		scheduler := newScheduler(config.BatchStrategy("SOME"), 0)
		_, err := scheduler.Trigger(context.TODO())
		Expect(service.StatusCode(err)).To(Equal(http.StatusBadRequest))
		Expect(scheduler.Status().State).To(Equal(service.BatchStateNotStarted))
	})

	It("paces locations and estimates the completion", func() {
		scheduler := newScheduler(config.BatchStrategyAllLocations, time.Hour)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		status, err := scheduler.Trigger(ctx)
		Expect(err).To(BeNil())
		Expect(status.State).To(Equal(service.BatchStateRunning))

		Eventually(func() int { return len(analyzer.Calls()) }).Should(Equal(1))
		Consistently(func() int { return len(analyzer.Calls()) }, 200*time.Millisecond).Should(Equal(1))

		status = scheduler.Status()
		Expect(status.State).To(Equal(service.BatchStateRunning))
		Expect(status.Completed).To(Equal(1))
		Expect(status.EstimatedCompletion).NotTo(BeNil())
		Expect(*status.EstimatedCompletion).To(BeTemporally("==", now.Add(2*time.Hour)))

		_, err = scheduler.Trigger(ctx)
		Expect(service.StatusCode(err)).To(Equal(http.StatusConflict))

		cancel()
		scheduler.Wait()
		status = scheduler.Status()
		Expect(status.State).To(Equal(service.BatchStateFailed))
		Expect(status.Error).To(ContainSubstring("interrupted"))
	})

	It("rejects concurrent triggers while a batch runs", func() {
		scheduler := newScheduler(config.BatchStrategyAllLocations, time.Hour)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		_, err := scheduler.Trigger(ctx)
		Expect(err).To(BeNil())

		var wg sync.WaitGroup
		errs := make([]error, 8)
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = scheduler.Trigger(ctx)
			}(i)
		}
		wg.Wait()

		for _, err := range errs {
			Expect(service.StatusCode(err)).To(Equal(http.StatusConflict))
			Expect(err.Error()).To(ContainSubstring(now.Format(time.RFC3339)))
		}

		cancel()
		scheduler.Wait()
	})

	It("can run again once a batch is over", func() {
		scheduler := newScheduler(config.BatchStrategyStaleOnly, 0)
		_, err := scheduler.Trigger(context.TODO())
		Expect(err).To(BeNil())
		scheduler.Wait()

		_, err = scheduler.Trigger(context.TODO())
		Expect(err).To(BeNil())
		scheduler.Wait()
		Expect(analyzer.Calls()).To(HaveLen(4))
	})
})
