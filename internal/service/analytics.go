package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rentscope/market-planner/internal/analytics"
	"github.com/rentscope/market-planner/internal/store"
	"github.com/rentscope/market-planner/internal/store/model"
	"github.com/rentscope/market-planner/pkg/log"
)

// AnalyticsService serves market analysis of locations, computed from every stored sample and kept
// in the cache until the data of the location changes.
type AnalyticsService struct {
	store  store.Store
	cache  store.AnalysisCache
	now    func() time.Time
	logger *log.StructuredLogger
}

func NewAnalyticsService(s store.Store, cache store.AnalysisCache) *AnalyticsService {
	return &AnalyticsService{
		store:  s,
		cache:  cache,
		now:    time.Now,
		logger: log.NewDebugLogger("analytics_service"),
	}
}

func (a *AnalyticsService) Analyze(ctx context.Context, locationID uuid.UUID) (*model.MarketAnalysis, error) {
	tracer := a.logger.WithContext(ctx).Operation("analyze_location").WithUUID("location_id", locationID).Build()

	cached, generation, found := a.cache.Get(ctx, locationID)
	if found {
		tracer.Success().WithBool("cached", true).Log()
		return cached, nil
	}

	if _, err := a.store.Location().Get(ctx, locationID); err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrLocationNotFound(locationID)
		}
		tracer.Error(err).Log()
		return nil, err
	}

	samples, err := a.store.Property().ListPriceSamples(ctx, locationID)
	if err != nil {
		tracer.Error(err).Log()
		return nil, err
	}
	snapshots, err := a.store.Property().ListAvailabilitySnapshots(ctx, locationID)
	if err != nil {
		tracer.Error(err).Log()
		return nil, err
	}

	analysis := analytics.Analyze(locationID, samples, snapshots, a.now().UTC())
	// the data read above may predate an eviction, in which case the analysis is not kept
	stored, err := a.cache.Set(ctx, analysis, generation)
	if err != nil {
		tracer.Warn("failed to cache analysis").WithParam("error", err).Log()
	}

	tracer.Success().
		WithBool("cached", false).
		WithBool("stored", stored).
		WithInt("samples", analysis.SampleCount).
		WithInt("snapshots", analysis.SnapshotCount).
		Log()
	return &analysis, nil
}
