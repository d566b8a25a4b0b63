package store_test

import (
	"context"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	st "github.com/rentscope/market-planner/internal/store"
	"github.com/rentscope/market-planner/internal/store/model"
	"gorm.io/gorm"
)

var _ = Describe("job store", Ordered, func() {
	var (
		store      st.Store
		gormDB     *gorm.DB
		locationID uuid.UUID
		now        = time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	)

	newJob := func(platform model.Platform) *model.Job {
		job, err := model.NewJob(uuid.New(), locationID, platform, model.JobTypeFullProfile, model.NewDateWindow(now.AddDate(0, 0, 30), 7))
		Expect(err).To(BeNil())
		return job
	}

	BeforeAll(func() {
		store, gormDB = newTestStore()
		locationID = uuid.New()
	})

	AfterAll(func() {
		store.Close()
	})

	AfterEach(func() {
		gormDB.Exec("DELETE FROM jobs;")
	})

	Context("create and get", func() {
		It("persists a pending job", func() {
			job := newJob(model.PlatformAirbnb)
			_, err := store.Job().Create(context.TODO(), job)
			Expect(err).To(BeNil())

			got, err := store.Job().Get(context.TODO(), job.ID)
			Expect(err).To(BeNil())
			Expect(got.Status).To(Equal(model.JobStatusPending))
			Expect(got.Platform).To(Equal(model.PlatformAirbnb))
			Expect(got.LocationID).To(Equal(locationID))
			Expect(got.StartedAt).To(BeNil())
			Expect(got.Window().Nights()).To(Equal(7))
		})

		It("returns ErrRecordNotFound for unknown ids", func() {
			_, err := store.Job().Get(context.TODO(), uuid.New())
			Expect(err).To(MatchError(st.ErrRecordNotFound))
		})
	})

	Context("update", func() {
		It("writes lifecycle fields and clears them on retry", func() {
			job := newJob(model.PlatformVrbo)
			_, err := store.Job().Create(context.TODO(), job)
			Expect(err).To(BeNil())

			Expect(job.Start(now)).To(BeNil())
			Expect(job.Fail("timed out", now.Add(time.Hour))).To(BeNil())
			_, err = store.Job().Update(context.TODO(), job)
			Expect(err).To(BeNil())

			got, err := store.Job().Get(context.TODO(), job.ID)
			Expect(err).To(BeNil())
			Expect(got.Status).To(Equal(model.JobStatusFailed))
			Expect(*got.ErrorMessage).To(Equal("timed out"))
			Expect(got.StartedAt).NotTo(BeNil())

			Expect(got.Retry()).To(BeNil())
			_, err = store.Job().Update(context.TODO(), got)
			Expect(err).To(BeNil())

			got, err = store.Job().Get(context.TODO(), job.ID)
			Expect(err).To(BeNil())
			Expect(got.Status).To(Equal(model.JobStatusPending))
			Expect(got.ErrorMessage).To(BeNil())
			Expect(got.StartedAt).To(BeNil())
			Expect(got.CompletedAt).To(BeNil())
		})

		It("fails for a job that was never created", func() {
			_, err := store.Job().Update(context.TODO(), newJob(model.PlatformBooking))
			Expect(err).To(MatchError(st.ErrRecordNotFound))
		})
	})

	Context("list", func() {
		It("selects in progress jobs started before a deadline", func() {
			old := newJob(model.PlatformAirbnb)
			recent := newJob(model.PlatformVrbo)
			pending := newJob(model.PlatformBooking)
			for _, j := range []*model.Job{old, recent, pending} {
				_, err := store.Job().Create(context.TODO(), j)
				Expect(err).To(BeNil())
			}

			Expect(old.Start(now.Add(-3 * time.Hour))).To(BeNil())
			Expect(recent.Start(now.Add(-10 * time.Minute))).To(BeNil())
			for _, j := range []*model.Job{old, recent} {
				_, err := store.Job().Update(context.TODO(), j)
				Expect(err).To(BeNil())
			}

			filter := st.NewJobQueryFilter().
				ByStatus(model.JobStatusInProgress).
				StartedBefore(now.Add(-2 * time.Hour))
			jobs, err := store.Job().List(context.TODO(), filter, st.NewJobQueryOptions().WithSortOrder(st.SortByStartedTime))
			Expect(err).To(BeNil())
			Expect(jobs).To(HaveLen(1))
			Expect(jobs[0].ID).To(Equal(old.ID))
		})

		It("counts jobs by status", func() {
			for _, p := range model.Platforms() {
				_, err := store.Job().Create(context.TODO(), newJob(p))
				Expect(err).To(BeNil())
			}

			stats, err := store.Statistics(context.TODO())
			Expect(err).To(BeNil())
			Expect(stats.ByStatus[model.JobStatusPending]).To(Equal(3))
			Expect(stats.ByStatus[model.JobStatusCompleted]).To(Equal(0))
		})
	})

	Context("transaction", func() {
		It("rolls back a created job", func() {
			ctx, err := store.NewTransactionContext(context.TODO())
			Expect(err).To(BeNil())

			job := newJob(model.PlatformAirbnb)
			_, err = store.Job().Create(ctx, job)
			Expect(err).To(BeNil())

			_, err = st.Rollback(ctx)
			Expect(err).To(BeNil())

			_, err = store.Job().Get(context.TODO(), job.ID)
			Expect(err).To(MatchError(st.ErrRecordNotFound))
		})

		It("commits a created job", func() {
			ctx, err := store.NewTransactionContext(context.TODO())
			Expect(err).To(BeNil())

			job := newJob(model.PlatformAirbnb)
			_, err = store.Job().Create(ctx, job)
			Expect(err).To(BeNil())

			_, err = st.Commit(ctx)
			Expect(err).To(BeNil())

			count := 0
			err = gormDB.Raw("SELECT COUNT(*) FROM jobs;").Scan(&count).Error
			Expect(err).To(BeNil())
			Expect(count).To(Equal(1))
		})
	})
})
