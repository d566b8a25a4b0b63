package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lthibault/jitterbug/v2"
	"github.com/rentscope/market-planner/internal/config"
	"github.com/rentscope/market-planner/internal/store"
	"github.com/rentscope/market-planner/internal/store/model"
	"github.com/rentscope/market-planner/pkg/log"
	"github.com/rentscope/market-planner/pkg/metrics"
	"github.com/thoas/go-funk"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type BatchState string

const (
	BatchStateNotStarted BatchState = "NOT_STARTED"
	BatchStateRunning    BatchState = "RUNNING"
	BatchStateCompleted  BatchState = "COMPLETED"
	BatchStateFailed     BatchState = "FAILED"
)

var legalStrategies = []config.BatchStrategy{config.BatchStrategyAllLocations, config.BatchStrategyStaleOnly}

// BatchStatus is a snapshot of the last batch run.
type BatchStatus struct {
	State               BatchState
	Strategy            config.BatchStrategy
	Total               int
	Completed           int
	Failed              int
	StartedAt           *time.Time
	FinishedAt          *time.Time
	EstimatedCompletion *time.Time
	Error               string
}

func (s BatchStatus) remaining() int {
	return s.Total - s.Completed - s.Failed
}

// LocationAnalyzer starts the analysis of one location.
type LocationAnalyzer interface {
	OrchestrateLocationAnalysis(ctx context.Context, locationID uuid.UUID) ([]model.Job, error)
}

// BatchScheduler feeds candidate locations to the analyzer one at a time, waiting delay between
// two locations. Only one batch runs at a time.
type BatchScheduler struct {
	store          store.Store
	analyzer       LocationAnalyzer
	strategy       config.BatchStrategy
	delay          time.Duration
	staleThreshold time.Duration
	interval       time.Duration
	now            func() time.Time
	logger         *log.StructuredLogger

	mu     sync.Mutex
	status BatchStatus
	done   chan struct{}
}

type BatchOption func(b *BatchScheduler)

func WithBatchClock(now func() time.Time) BatchOption {
	return func(b *BatchScheduler) {
		b.now = now
	}
}

// WithBatchInterval enables the periodic trigger of Run.
func WithBatchInterval(interval time.Duration) BatchOption {
	return func(b *BatchScheduler) {
		b.interval = interval
	}
}

func NewBatchScheduler(s store.Store, analyzer LocationAnalyzer, strategy config.BatchStrategy, delay, staleThreshold time.Duration, opts ...BatchOption) *BatchScheduler {
	b := &BatchScheduler{
		store:          s,
		analyzer:       analyzer,
		strategy:       strategy,
		delay:          delay,
		staleThreshold: staleThreshold,
		now:            time.Now,
		logger:         log.NewInfoLogger("batch_scheduler"),
		status:         BatchStatus{State: BatchStateNotStarted, Strategy: strategy},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Status returns the state of the current or last batch. The estimated completion is only set
// while a batch runs.
func (b *BatchScheduler) Status() BatchStatus {
	b.mu.Lock()
	defer b.mu.Unlock()

	status := b.status
	if status.State == BatchStateRunning && status.StartedAt != nil {
		eta := status.StartedAt.Add(time.Duration(status.remaining()) * b.delay)
		status.EstimatedCompletion = &eta
	}
	return status
}

// Trigger selects the candidate locations and starts a batch over them in the background. It fails
// with ErrInvalidState when a batch is already running. ctx bounds the whole batch.
func (b *BatchScheduler) Trigger(ctx context.Context) (BatchStatus, error) {
	tracer := b.logger.WithContext(ctx).Operation("trigger_batch").
		WithString("strategy", string(b.strategy)).
		WithDuration("delay", b.delay).
		Build()

	if !funk.Contains(legalStrategies, b.strategy) {
		return b.Status(), NewErrValidation("unknown batch strategy %q", b.strategy)
	}

	b.mu.Lock()
	if b.status.State == BatchStateRunning {
		running := fmt.Errorf("a batch started at %s is still running", b.status.StartedAt.Format(time.RFC3339))
		b.mu.Unlock()
		return b.Status(), &ErrInvalidState{running}
	}
	startedAt := b.clock()
	b.status = BatchStatus{State: BatchStateRunning, Strategy: b.strategy, StartedAt: &startedAt}
	b.done = make(chan struct{})
	b.mu.Unlock()

	locations, err := b.candidates(ctx, startedAt)
	if err != nil {
		b.finish(err)
		tracer.Error(err).Log()
		return b.Status(), err
	}

	b.mu.Lock()
	b.status.Total = len(locations)
	b.mu.Unlock()

	tracer.Success().WithInt("locations", len(locations)).Log()

	go b.run(ctx, locations)
	return b.Status(), nil
}

// Wait blocks until the current batch, if any, is over.
func (b *BatchScheduler) Wait() {
	b.mu.Lock()
	done := b.done
	b.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Run triggers a batch right away and then once per interval until ctx is done. A tick that finds
// a batch still running is skipped.
func (b *BatchScheduler) Run(ctx context.Context) error {
	logger := zap.S().Named("batch_scheduler")
	b.triggerLogged(ctx, logger)

	if b.interval <= 0 {
		logger.Info("periodic batch trigger disabled")
		<-ctx.Done()
		return nil
	}

	ticker := jitterbug.New(b.interval, &jitterbug.Norm{Stdev: time.Second, Mean: 0})
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			b.triggerLogged(ctx, logger)
		}
	}
}

func (b *BatchScheduler) triggerLogged(ctx context.Context, logger *zap.SugaredLogger) {
	status, err := b.Trigger(ctx)
	if err != nil {
		logger.Warnw("batch not started", "error", err)
		return
	}
	logger.Infow("batch started", "strategy", status.Strategy, "locations", status.Total)
}

func (b *BatchScheduler) candidates(ctx context.Context, now time.Time) (model.LocationList, error) {
	var filter *store.LocationQueryFilter
	if b.strategy == config.BatchStrategyStaleOnly {
		filter = store.NewLocationQueryFilter().StaleSince(now.Add(-b.staleThreshold))
	}
	return b.store.Location().List(ctx, filter)
}

func (b *BatchScheduler) run(ctx context.Context, locations model.LocationList) {
	var crash error
	defer func() {
		if r := recover(); r != nil {
			crash = fmt.Errorf("batch driver crashed: %v", r)
		}
		b.finish(crash)
	}()

	// one token per location, so two locations are at least delay apart
	pacer := rate.NewLimiter(rate.Every(b.delay), 1)
	for _, location := range locations {
		if err := pacer.Wait(ctx); err != nil {
			crash = fmt.Errorf("batch interrupted: %w", err)
			return
		}
		b.analyze(ctx, location)
	}
}

func (b *BatchScheduler) analyze(ctx context.Context, location model.Location) {
	jobs, err := b.analyzer.OrchestrateLocationAnalysis(ctx, location.ID)
	if err == nil && len(jobs) == 0 {
		err = fmt.Errorf("no job could be started for location %s", location.ID)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.status.Failed++
		metrics.IncreaseBatchLocationsMetric("failed")
		zap.S().Named("batch_scheduler").Errorw("failed to schedule location", "error", err, "location_id", location.ID, "location", location.Name)
		return
	}
	b.status.Completed++
	metrics.IncreaseBatchLocationsMetric("completed")
}

func (b *BatchScheduler) finish(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	finishedAt := b.clock()
	b.status.FinishedAt = &finishedAt
	b.status.State = BatchStateCompleted
	if err != nil {
		b.status.State = BatchStateFailed
		b.status.Error = err.Error()
		zap.S().Named("batch_scheduler").Errorw("batch failed", "error", err)
	}
	if b.done != nil {
		close(b.done)
		b.done = nil
	}
}

func (b *BatchScheduler) clock() time.Time {
	return b.now().UTC()
}
