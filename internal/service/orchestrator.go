package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rentscope/market-planner/internal/events"
	"github.com/rentscope/market-planner/internal/sampling"
	"github.com/rentscope/market-planner/internal/store"
	"github.com/rentscope/market-planner/internal/store/model"
	"github.com/rentscope/market-planner/pkg/log"
	"github.com/rentscope/market-planner/pkg/metrics"
)

// WorkPublisher delivers a message to the bus and reports whether it was accepted.
type WorkPublisher interface {
	Publish(ctx context.Context, kind string, payload any) error
}

// Orchestrator owns the job records: it creates them, publishes their work requests and applies
// every lifecycle transition. Mutations of one record are serialized by a per job lock.
type Orchestrator struct {
	store     store.Store
	publisher WorkPublisher
	locks     *jobLocks
	now       func() time.Time
	logger    *log.StructuredLogger
}

type OrchestratorOption func(o *Orchestrator)

// WithClock replaces the wall clock. Times returned by now are stored as UTC.
func WithClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) {
		o.now = now
	}
}

func NewOrchestrator(s store.Store, publisher WorkPublisher, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		store:     s,
		publisher: publisher,
		locks:     newJobLocks(),
		now:       time.Now,
		logger:    log.NewDebugLogger("orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) clock() time.Time {
	return o.now().UTC()
}

// CreateJob persists a PENDING job and publishes its work request. The job is IN_PROGRESS when the
// publish succeeds. When it fails the job is persisted as FAILED and an *ErrJobCreation is returned.
func (o *Orchestrator) CreateJob(ctx context.Context, locationID uuid.UUID, platform model.Platform, jobType model.JobType, window model.DateWindow) (*model.Job, error) {
	if err := validateJobKind(platform, jobType); err != nil {
		return nil, err
	}
	location, err := o.location(ctx, locationID, unknownLocation)
	if err != nil {
		return nil, err
	}
	return o.createJob(ctx, location, platform, jobType, window)
}

// FanOutAllPlatforms creates one job per platform. A platform that fails is logged and skipped;
// the jobs that were started are returned.
func (o *Orchestrator) FanOutAllPlatforms(ctx context.Context, locationID uuid.UUID, jobType model.JobType) ([]model.Job, error) {
	if !jobType.Valid() {
		return nil, NewErrValidation("unknown job type %q", jobType)
	}
	location, err := o.location(ctx, locationID, unknownLocation)
	if err != nil {
		return nil, err
	}
	return o.fanOut(ctx, location, jobType, sampling.DefaultSearchRange(o.clock())), nil
}

// OrchestrateLocationAnalysis starts a full profile of the location on every platform and the
// price sample plan on every platform. Individual failures are tolerated.
func (o *Orchestrator) OrchestrateLocationAnalysis(ctx context.Context, locationID uuid.UUID) ([]model.Job, error) {
	tracer := o.logger.WithContext(ctx).Operation("orchestrate_location_analysis").
		WithUUID("location_id", locationID).
		Build()

	location, err := o.location(ctx, locationID, unknownLocation)
	if err != nil {
		tracer.Error(err).Log()
		return nil, err
	}

	now := o.clock()
	jobs := o.fanOut(ctx, location, model.JobTypeFullProfile, sampling.DefaultSearchRange(now))
	tracer.Step("full_profile_fan_out").WithInt("jobs", len(jobs)).Log()

	plan := sampling.Plan(now)
	for _, window := range plan {
		jobs = append(jobs, o.fanOut(ctx, location, model.JobTypePriceSample, window)...)
	}

	expected := len(model.Platforms()) * (len(plan) + 1)
	entry := tracer.Success()
	if len(jobs) < expected {
		entry = tracer.Warn("some jobs could not be started")
	}
	entry.WithInt("jobs", len(jobs)).WithInt("expected", expected).Log()

	return jobs, nil
}

// RetryJob resets a FAILED job and publishes its work request again, with the same outcome
// handling as CreateJob.
func (o *Orchestrator) RetryJob(ctx context.Context, id uuid.UUID) (*model.Job, error) {
	tracer := o.logger.WithContext(ctx).Operation("retry_job").WithUUID("job_id", id).Build()

	unlock := o.locks.Lock(id)
	defer unlock()

	job, err := o.store.Job().Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrJobNotFound(id)
		}
		tracer.Error(err).Log()
		return nil, err
	}

	if err := job.Retry(); err != nil {
		return nil, asServiceError(err)
	}
	if _, err := o.store.Job().Update(ctx, job); err != nil {
		tracer.Error(err).Log()
		return nil, err
	}
	metrics.IncreaseJobTransitionsMetric(string(job.Status))
	tracer.Step("job_reset").Log()

	location, err := o.location(ctx, job.LocationID, missingLocation)
	if err != nil {
		// the job cannot be sent anywhere, keep the record consistent with the answer
		if failErr := o.failJob(ctx, job, err.Error()); failErr != nil {
			tracer.Error(failErr).Log()
			return nil, failErr
		}
		return nil, err
	}

	job, err = o.publishAndStart(ctx, location, job)
	if err != nil {
		tracer.Error(err).Log()
		return nil, err
	}
	tracer.Success().Log()
	return job, nil
}

// HandleTimedOutJobs fails every IN_PROGRESS job started before now - timeout and returns how many
// were failed. Jobs that reach a terminal status while the scan runs are left alone.
func (o *Orchestrator) HandleTimedOutJobs(ctx context.Context, timeout time.Duration) (int, error) {
	tracer := o.logger.WithContext(ctx).Operation("handle_timed_out_jobs").
		WithDuration("timeout", timeout).
		Build()

	deadline := o.clock().Add(-timeout)
	filter := store.NewJobQueryFilter().ByStatus(model.JobStatusInProgress).StartedBefore(deadline)
	candidates, err := o.store.Job().List(ctx, filter, store.NewJobQueryOptions().WithSortOrder(store.SortByStartedTime))
	if err != nil {
		tracer.Error(err).Log()
		return 0, err
	}

	message := fmt.Sprintf("timed out after %s", timeout)
	count := 0
	for _, candidate := range candidates {
		failed, err := o.failTimedOut(ctx, candidate.ID, deadline, message)
		if err != nil {
			tracer.Error(err).WithUUID("job_id", candidate.ID).Log()
			continue
		}
		if failed {
			count++
		}
	}

	metrics.AddJobsTimedOutMetric(count)
	tracer.Success().WithInt("candidates", len(candidates)).WithInt("timed_out", count).Log()
	return count, nil
}

func (o *Orchestrator) failTimedOut(ctx context.Context, id uuid.UUID, deadline time.Time, message string) (bool, error) {
	unlock := o.locks.Lock(id)
	defer unlock()

	// the listing is a snapshot, the job may have moved on since
	job, err := o.store.Job().Get(ctx, id)
	if err != nil {
		return false, err
	}
	if job.Status != model.JobStatusInProgress || job.StartedAt == nil || !job.StartedAt.Before(deadline) {
		return false, nil
	}
	if err := o.failJob(ctx, job, message); err != nil {
		return false, err
	}
	return true, nil
}

func (o *Orchestrator) fanOut(ctx context.Context, location *model.Location, jobType model.JobType, window model.DateWindow) []model.Job {
	jobs := make([]model.Job, 0, len(model.Platforms()))
	for _, platform := range model.Platforms() {
		job, err := o.createJob(ctx, location, platform, jobType, window)
		if err != nil {
			o.logger.WithContext(ctx).Operation("fan_out").
				WithUUID("location_id", location.ID).
				WithString("platform", string(platform)).
				WithString("job_type", string(jobType)).
				WithString("window", window.String()).
				Build().
				Error(err).
				Log()
			continue
		}
		jobs = append(jobs, *job)
	}
	return jobs
}

func (o *Orchestrator) createJob(ctx context.Context, location *model.Location, platform model.Platform, jobType model.JobType, window model.DateWindow) (*model.Job, error) {
	tracer := o.logger.WithContext(ctx).Operation("create_job").
		WithUUID("location_id", location.ID).
		WithString("platform", string(platform)).
		WithString("job_type", string(jobType)).
		WithString("window", window.String()).
		Build()

	job, err := model.NewJob(uuid.New(), location.ID, platform, jobType, window)
	if err != nil {
		return nil, NewErrValidation("%s", err)
	}

	unlock := o.locks.Lock(job.ID)
	defer unlock()

	if _, err := o.store.Job().Create(ctx, job); err != nil {
		tracer.Error(err).Log()
		return nil, err
	}
	metrics.IncreaseJobsCreatedMetric(string(platform), string(jobType))
	tracer.Step("job_created").WithUUID("job_id", job.ID).Log()

	job, err = o.publishAndStart(ctx, location, job)
	if err != nil {
		tracer.Error(err).Log()
		return nil, err
	}
	tracer.Success().WithUUID("job_id", job.ID).Log()
	return job, nil
}

// publishAndStart publishes the work request of a PENDING job. The caller holds the job lock.
func (o *Orchestrator) publishAndStart(ctx context.Context, location *model.Location, job *model.Job) (*model.Job, error) {
	request := events.WorkRequest{
		JobID:           job.ID,
		LocationID:      location.ID,
		LocationName:    location.Name,
		JobType:         job.JobType,
		Platform:        job.Platform,
		BoundingBox:     location.BoundingBox(),
		SearchDateStart: job.SearchDateStart,
		SearchDateEnd:   job.SearchDateEnd,
		OccurredAt:      o.clock(),
	}
	if request.BoundingBox == nil {
		o.logger.WithContext(ctx).Operation("publish_work_request").
			WithUUID("job_id", job.ID).
			WithUUID("location_id", location.ID).
			Build().
			Warn("location has no bounding box, results will not be filtered by area").
			Log()
	}

	if err := o.publisher.Publish(ctx, events.WorkRequestMessageKind, request); err != nil {
		metrics.IncreasePublishFailuresMetric(string(job.Platform))
		publishErr := NewErrPublish(err)
		if failErr := o.failJob(ctx, job, publishErr.Error()); failErr != nil {
			return nil, errors.Join(publishErr, failErr)
		}
		return nil, NewErrJobCreation(job, publishErr)
	}

	if err := job.Start(o.clock()); err != nil {
		return nil, asServiceError(err)
	}
	if _, err := o.store.Job().Update(ctx, job); err != nil {
		// the request is out but the record would stay PENDING, out of reach of the timeout
		// scanner and of retries. Fail it so the record and the caller agree.
		startErr := fmt.Errorf("recording job start: %w", err)
		if failErr := o.failJob(ctx, job, startErr.Error()); failErr != nil {
			return nil, errors.Join(startErr, failErr)
		}
		return nil, NewErrJobCreation(job, startErr)
	}
	metrics.IncreaseJobTransitionsMetric(string(job.Status))
	return job, nil
}

// failJob moves a non terminal job to FAILED and persists it. The caller holds the job lock.
func (o *Orchestrator) failJob(ctx context.Context, job *model.Job, message string) error {
	if err := job.Fail(message, o.clock()); err != nil {
		return asServiceError(err)
	}
	if _, err := o.store.Job().Update(ctx, job); err != nil {
		return err
	}
	metrics.IncreaseJobTransitionsMetric(string(job.Status))
	return nil
}

func (o *Orchestrator) location(ctx context.Context, id uuid.UUID, notFound func(uuid.UUID) error) (*model.Location, error) {
	location, err := o.store.Location().Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, notFound(id)
		}
		return nil, err
	}
	return location, nil
}

func unknownLocation(id uuid.UUID) error { return NewErrUnknownLocation(id) }

func missingLocation(id uuid.UUID) error { return NewErrLocationNotFound(id) }

func validateJobKind(platform model.Platform, jobType model.JobType) error {
	if !platform.Valid() {
		return NewErrValidation("unknown platform %q", platform)
	}
	if !jobType.Valid() {
		return NewErrValidation("unknown job type %q", jobType)
	}
	return nil
}

func asServiceError(err error) error {
	var transition *model.ErrInvalidTransition
	if errors.As(err, &transition) {
		return NewErrInvalidState(transition)
	}
	return err
}
