package service_test

import (
	"context"
	"errors"
	"net/http"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/rentscope/market-planner/internal/events"
	"github.com/rentscope/market-planner/internal/service"
	"github.com/rentscope/market-planner/internal/store"
	"github.com/rentscope/market-planner/internal/store/model"
	"gorm.io/gorm"
)

func newCloudEvent(kind string, data []byte) cloudevents.Event {
	e := cloudevents.NewEvent()
	e.SetID(uuid.NewString())
	e.SetSource("test")
	e.SetType(kind)
	if data != nil {
		_ = e.SetData(cloudevents.ApplicationJSON, data)
	}
	return e
}

type failingCache struct {
	store.AnalysisCache
}

func (failingCache) Evict(context.Context, uuid.UUID) error {
	return errors.New("cache unreachable")
}

// evictingStore runs onSnapshotRead once, after the samples of a location were read.
type evictingStore struct {
	store.Store
	onSnapshotRead func()
}

func (e *evictingStore) Property() store.Property {
	return &evictingProperty{Property: e.Store.Property(), parent: e}
}

type evictingProperty struct {
	store.Property
	parent *evictingStore
}

func (p *evictingProperty) ListAvailabilitySnapshots(ctx context.Context, locationID uuid.UUID) ([]model.AvailabilitySnapshot, error) {
	if hook := p.parent.onSnapshotRead; hook != nil {
		p.parent.onSnapshotRead = nil
		hook()
	}
	return p.Property.ListAvailabilitySnapshots(ctx, locationID)
}

var _ = Describe("analytics", Ordered, func() {
	var (
		s        store.Store
		gormDB   *gorm.DB
		location *model.Location
		property *model.Property
		month    = func(m time.Month) time.Time { return time.Date(2026, m, 1, 0, 0, 0, 0, time.UTC) }
	)

	addSample := func(price float64, start time.Time, nights int) {
		sample := model.NewPriceSample(property.ID, price, "EUR", model.NewDateWindow(start, nights), start)
		Expect(s.Property().AddPriceSamples(context.TODO(), []model.PriceSample{sample})).To(Succeed())
	}

	BeforeAll(func() {
		s, gormDB = newTestStore()
	})

	AfterAll(func() {
		s.Close()
	})

	BeforeEach(func() {
		location = createLocation(s, "Madeira", true)
		var err error
		property, err = s.Property().Upsert(context.TODO(), &model.Property{
			LocationID: location.ID,
			Platform:   model.PlatformAirbnb,
			PlatformID: "abc",
		})
		Expect(err).To(BeNil())
	})

	AfterEach(func() {
		cleanTables(gormDB)
	})

	Context("analyze", func() {
		It("computes the metrics from every stored sample", func() {
			addSample(100, month(time.January), 2)
			addSample(150, month(time.February), 3)
			addSample(90, month(time.March), 1)
			Expect(s.Property().AddAvailabilitySnapshots(context.TODO(), []model.AvailabilitySnapshot{
				{PropertyID: property.ID, Month: month(time.January), TotalDays: 10, BookedDays: 5, ScrapedAt: month(time.January)},
				{PropertyID: property.ID, Month: month(time.January), TotalDays: 10, BookedDays: 7, ScrapedAt: month(time.February)},
				{PropertyID: property.ID, Month: month(time.February), TotalDays: 10, BookedDays: 9, ScrapedAt: month(time.February)},
			})).To(Succeed())

			srv := service.NewAnalyticsService(s, store.NewMemoryAnalysisCache())
			analysis, err := srv.Analyze(context.TODO(), location.ID)
			Expect(err).To(BeNil())
			Expect(analysis.LocationID).To(Equal(location.ID))
			Expect(*analysis.AverageDailyRate).To(Equal(50.0))
			Expect(analysis.SeasonalityIndex).To(Equal(0.0))
			Expect(*analysis.OccupancyRate).To(Equal(0.7))
			Expect(analysis.SampleCount).To(Equal(3))
			Expect(analysis.SnapshotCount).To(Equal(3))
		})

		It("reports unavailable metrics for a location without data", func() {
			srv := service.NewAnalyticsService(s, store.NewMemoryAnalysisCache())
			analysis, err := srv.Analyze(context.TODO(), location.ID)
			Expect(err).To(BeNil())
			Expect(analysis.AverageDailyRate).To(BeNil())
			Expect(analysis.OccupancyRate).To(BeNil())
			Expect(analysis.SeasonalityIndex).To(Equal(0.0))
		})

		It("serves the cached analysis until it is evicted", func() {
			cache := store.NewMemoryAnalysisCache()
			srv := service.NewAnalyticsService(s, cache)

			addSample(40, month(time.June), 1)
			first, err := srv.Analyze(context.TODO(), location.ID)
			Expect(err).To(BeNil())
			Expect(*first.AverageDailyRate).To(Equal(40.0))

			addSample(60, month(time.June), 1)
			cached, err := srv.Analyze(context.TODO(), location.ID)
			Expect(err).To(BeNil())
			Expect(*cached.AverageDailyRate).To(Equal(40.0))

			Expect(cache.Evict(context.TODO(), location.ID)).To(Succeed())
			fresh, err := srv.Analyze(context.TODO(), location.ID)
			Expect(err).To(BeNil())
			Expect(*fresh.AverageDailyRate).To(Equal(50.0))
		})

		It("does not cache an analysis read before an eviction", func() {
			cache := store.NewMemoryAnalysisCache()
			addSample(40, month(time.June), 1)

			// a completion commits new samples and evicts the location while the analysis reads
			racing := &evictingStore{Store: s, onSnapshotRead: func() {
				addSample(60, month(time.June), 1)
				Expect(cache.Evict(context.TODO(), location.ID)).To(Succeed())
			}}
			first, err := service.NewAnalyticsService(racing, cache).Analyze(context.TODO(), location.ID)
			Expect(err).To(BeNil())
			Expect(*first.AverageDailyRate).To(Equal(40.0))
			Expect(cache.Len()).To(Equal(0))

			next, err := service.NewAnalyticsService(s, cache).Analyze(context.TODO(), location.ID)
			Expect(err).To(BeNil())
			Expect(*next.AverageDailyRate).To(Equal(50.0))
		})

		It("fails with not found for an unknown location", func() {
			srv := service.NewAnalyticsService(s, store.NewMemoryAnalysisCache())
			_, err := srv.Analyze(context.TODO(), uuid.New())
			Expect(service.StatusCode(err)).To(Equal(http.StatusNotFound))
		})
	})

	Context("cache invalidation listener", func() {
		It("evicts the location named by the notification", func() {
			cache := store.NewMemoryAnalysisCache()
			_, err := cache.Set(context.TODO(), model.MarketAnalysis{LocationID: location.ID}, 0)
			Expect(err).To(BeNil())
			other := uuid.New()
			_, err = cache.Set(context.TODO(), model.MarketAnalysis{LocationID: other}, 0)
			Expect(err).To(BeNil())

			listener := service.NewCacheInvalidationListener(cache, events.NewMemoryBus(), "data-updated")
			e := newCloudEvent(events.DataUpdatedMessageKind, nil)
			Expect(e.SetData(cloudevents.ApplicationJSON, events.DataUpdatedNotification{LocationID: location.ID, PropertiesAffected: 4})).To(Succeed())

			Expect(listener.Handle(context.TODO(), e)).To(Succeed())
			_, _, found := cache.Get(context.TODO(), location.ID)
			Expect(found).To(BeFalse())
			_, _, found = cache.Get(context.TODO(), other)
			Expect(found).To(BeTrue())
		})

		It("swallows eviction and decoding failures", func() {
			listener := service.NewCacheInvalidationListener(failingCache{store.NewMemoryAnalysisCache()}, events.NewMemoryBus(), "data-updated")

			e := newCloudEvent(events.DataUpdatedMessageKind, nil)
			Expect(e.SetData(cloudevents.ApplicationJSON, events.DataUpdatedNotification{LocationID: location.ID})).To(Succeed())
			Expect(listener.Handle(context.TODO(), e)).To(Succeed())

			bad := newCloudEvent(events.DataUpdatedMessageKind, []byte("{"))
			Expect(listener.Handle(context.TODO(), bad)).To(Succeed())
		})
	})
})
