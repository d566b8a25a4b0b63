package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
	"github.com/rentscope/market-planner/internal/events"
	"github.com/rentscope/market-planner/internal/store"
	"github.com/rentscope/market-planner/internal/store/model"
	"github.com/rentscope/market-planner/pkg/metrics"
	"github.com/rentscope/market-planner/pkg/requestid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Notifier accepts events that must not delay the caller.
type Notifier interface {
	Write(ctx context.Context, kind string, body io.Reader) error
}

// CompleteJob applies a completion notification. The job is completed and the scraped properties,
// price samples and availability snapshots are stored in one transaction. A notification for a job
// that is already terminal is a redelivery and is ignored. When notifier is not nil a data updated
// notification is emitted once the transaction is committed.
func (o *Orchestrator) CompleteJob(ctx context.Context, n events.CompletionNotification, notifier Notifier) (*model.Job, error) {
	tracer := o.logger.WithContext(ctx).Operation("complete_job").
		WithUUID("job_id", n.JobID).
		WithInt("properties", len(n.Properties)).
		Build()

	unlock := o.locks.Lock(n.JobID)
	defer unlock()

	job, err := o.store.Job().Get(ctx, n.JobID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrJobNotFound(n.JobID)
		}
		tracer.Error(err).Log()
		return nil, err
	}
	if job.IsTerminal() {
		entry := tracer.Warn("duplicate notification for terminal job ignored").WithString("status", string(job.Status))
		if job.Status == model.JobStatusFailed && job.ErrorMessage != nil {
			// a worker may still finish a job that was failed meanwhile (publish timeout, job timeout)
			entry = entry.WithString("failure_reason", *job.ErrorMessage)
		}
		entry.Log()
		return job, nil
	}

	now := o.clock()
	if err := job.Complete(n.PropertiesFound, now); err != nil {
		tracer.Error(err).Log()
		return nil, asServiceError(err)
	}

	txCtx, err := o.store.NewTransactionContext(ctx)
	if err != nil {
		tracer.Error(err).Log()
		return nil, err
	}
	if err := o.storeCompletion(txCtx, job, n); err != nil {
		_, _ = store.Rollback(txCtx)
		tracer.Error(err).Log()
		return nil, err
	}
	if _, err := store.Commit(txCtx); err != nil {
		tracer.Error(err).Log()
		return nil, err
	}
	metrics.IncreaseJobTransitionsMetric(string(job.Status))

	if notifier != nil {
		o.notifyDataUpdated(ctx, notifier, job.LocationID, len(n.Properties))
	}

	tracer.Success().
		WithInt("properties_found", n.PropertiesFound).
		WithInt("duplicates_removed", n.DuplicatesRemoved).
		WithInt("filtered_out_of_bounds", n.FilteredOutOfBounds).
		Log()
	return job, nil
}

func (o *Orchestrator) storeCompletion(ctx context.Context, job *model.Job, n events.CompletionNotification) error {
	if _, err := o.store.Job().Update(ctx, job); err != nil {
		return err
	}

	var (
		samples   []model.PriceSample
		snapshots []model.AvailabilitySnapshot
	)
	for _, scraped := range n.Properties {
		property, err := o.store.Property().Upsert(ctx, toProperty(job, scraped))
		if err != nil {
			return err
		}
		if sample, ok := toPriceSample(property.ID, scraped.PriceSample, *job.CompletedAt); ok {
			samples = append(samples, sample)
		}
		for _, record := range scraped.Availability {
			snapshots = append(snapshots, toSnapshot(property.ID, record, *job.CompletedAt))
		}
	}

	if err := o.store.Property().AddPriceSamples(ctx, samples); err != nil {
		return err
	}
	if err := o.store.Property().AddAvailabilitySnapshots(ctx, snapshots); err != nil {
		return err
	}
	return o.store.Location().Touch(ctx, job.LocationID, *job.CompletedAt)
}

func (o *Orchestrator) notifyDataUpdated(ctx context.Context, notifier Notifier, locationID uuid.UUID, affected int) {
	body, err := json.Marshal(events.DataUpdatedNotification{LocationID: locationID, PropertiesAffected: affected})
	if err == nil {
		err = notifier.Write(ctx, events.DataUpdatedMessageKind, bytes.NewReader(body))
	}
	if err != nil {
		zap.S().Named("orchestrator").Warnw("failed to emit data updated notification", "error", err, "location_id", locationID)
	}
}

// FailJob applies a failure notification. Terminal jobs are left untouched.
func (o *Orchestrator) FailJob(ctx context.Context, n events.FailureNotification) (*model.Job, error) {
	tracer := o.logger.WithContext(ctx).Operation("fail_job").
		WithUUID("job_id", n.JobID).
		WithString("error_type", n.ErrorType).
		Build()

	unlock := o.locks.Lock(n.JobID)
	defer unlock()

	job, err := o.store.Job().Get(ctx, n.JobID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrJobNotFound(n.JobID)
		}
		tracer.Error(err).Log()
		return nil, err
	}
	if job.IsTerminal() {
		entry := tracer.Warn("duplicate notification for terminal job ignored").WithString("status", string(job.Status))
		if job.Status == model.JobStatusFailed && job.ErrorMessage != nil {
			// a worker may still finish a job that was failed meanwhile (publish timeout, job timeout)
			entry = entry.WithString("failure_reason", *job.ErrorMessage)
		}
		entry.Log()
		return job, nil
	}

	message := n.ErrorMessage
	if n.ErrorType != "" {
		message = fmt.Sprintf("%s: %s", n.ErrorType, n.ErrorMessage)
	}
	if err := o.failJob(ctx, job, message); err != nil {
		tracer.Error(err).Log()
		return nil, err
	}

	tracer.Success().Log()
	return job, nil
}

func toProperty(job *model.Job, s events.ScrapedProperty) *model.Property {
	platform := s.Platform
	if !platform.Valid() {
		platform = job.Platform
	}
	p := &model.Property{
		LocationID:   job.LocationID,
		Platform:     platform,
		PlatformID:   s.PlatformID,
		Title:        s.Title,
		PropertyType: s.PropertyType,
		Latitude:     s.Latitude,
		Longitude:    s.Longitude,
		Bedrooms:     s.Bedrooms,
		Bathrooms:    s.Bathrooms,
		Beds:         s.Beds,
		MaxGuests:    s.MaxGuests,
		Rating:       s.Rating,
		ReviewCount:  s.ReviewCount,
		Superhost:    s.Superhost,
		ImageURL:     s.ImageURL,
		ListingURL:   s.ListingURL,
		DataComplete: s.DataCompleteness == events.DataCompletenessFull,
		PdpScrapedAt: s.PdpScrapedAt,
	}
	if s.Price != nil && *s.Price > 0 {
		p.ListingPrice = s.Price
		p.ListingCurrency = s.Currency
	}
	if len(s.Amenities) > 0 {
		p.Amenities = model.MakeJSONField(s.Amenities)
	}
	return p
}

func toPriceSample(propertyID uuid.UUID, r *events.PriceSampleRecord, sampledAt time.Time) (model.PriceSample, bool) {
	if r == nil || r.Price <= 0 {
		return model.PriceSample{}, false
	}
	window := model.DateWindow{Start: r.SearchDateStart, End: r.SearchDateEnd}
	if err := window.Validate(); err != nil {
		return model.PriceSample{}, false
	}
	return model.NewPriceSample(propertyID, r.Price, r.Currency, window, sampledAt), true
}

func toSnapshot(propertyID uuid.UUID, r events.AvailabilityRecord, scrapedAt time.Time) model.AvailabilitySnapshot {
	return model.AvailabilitySnapshot{
		PropertyID:    propertyID,
		Month:         r.Month.UTC(),
		TotalDays:     r.TotalDays,
		AvailableDays: r.AvailableDays,
		BookedDays:    r.BookedDays,
		BlockedDays:   r.BlockedDays,
		ScrapedAt:     scrapedAt,
	}
}

// CompletionConsumer reads worker notifications from the bus and hands them to the orchestrator.
type CompletionConsumer struct {
	orchestrator    *Orchestrator
	reader          events.Reader
	notifier        Notifier
	completionTopic string
	failureTopic    string
}

func NewCompletionConsumer(o *Orchestrator, reader events.Reader, notifier Notifier, completionTopic, failureTopic string) *CompletionConsumer {
	return &CompletionConsumer{
		orchestrator:    o,
		reader:          reader,
		notifier:        notifier,
		completionTopic: completionTopic,
		failureTopic:    failureTopic,
	}
}

// Run consumes both topics until ctx is done.
func (c *CompletionConsumer) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.reader.Consume(ctx, c.completionTopic, c.Handle)
	})
	g.Go(func() error {
		return c.reader.Consume(ctx, c.failureTopic, c.Handle)
	})
	return g.Wait()
}

// Handle dispatches one event on its type.
func (c *CompletionConsumer) Handle(ctx context.Context, e cloudevents.Event) error {
	ctx = requestid.ToContext(ctx, e.ID())
	switch e.Type() {
	case events.CompletedMessageKind:
		var n events.CompletionNotification
		if err := e.DataAs(&n); err != nil {
			return fmt.Errorf("decoding completion notification %s: %w", e.ID(), err)
		}
		_, err := c.orchestrator.CompleteJob(ctx, n, c.notifier)
		return err
	case events.FailedMessageKind:
		var n events.FailureNotification
		if err := e.DataAs(&n); err != nil {
			return fmt.Errorf("decoding failure notification %s: %w", e.ID(), err)
		}
		_, err := c.orchestrator.FailJob(ctx, n)
		return err
	default:
		zap.S().Named("completion_consumer").Debugw("skipping event", "event_type", e.Type(), "event_id", e.ID())
		return nil
	}
}
