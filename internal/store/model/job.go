package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Job is one unit of scraping work. Status and the timestamp/result fields are only changed
// through Start, Complete, Fail and Retry.
type Job struct {
	ID              uuid.UUID `gorm:"primaryKey;column:id;type:VARCHAR(36);"`
	LocationID      uuid.UUID `gorm:"not null;type:VARCHAR(36);index:jobs_location_id_idx"`
	Platform        Platform  `gorm:"not null;type:VARCHAR(32)"`
	JobType         JobType   `gorm:"not null;type:VARCHAR(32)"`
	Status          JobStatus `gorm:"not null;type:VARCHAR(32);index:jobs_status_started_at_idx,priority:1"`
	SearchDateStart time.Time `gorm:"not null"`
	SearchDateEnd   time.Time `gorm:"not null"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
	StartedAt       *time.Time `gorm:"index:jobs_status_started_at_idx,priority:2"`
	CompletedAt     *time.Time
	PropertiesFound *int
	ErrorMessage    *string
}

type JobList []Job

// NewJob returns a fully formed PENDING job.
func NewJob(id, locationID uuid.UUID, platform Platform, jobType JobType, window DateWindow) (*Job, error) {
	if !platform.Valid() {
		return nil, fmt.Errorf("unknown platform %q", platform)
	}
	if !jobType.Valid() {
		return nil, fmt.Errorf("unknown job type %q", jobType)
	}
	if err := window.Validate(); err != nil {
		return nil, err
	}
	return &Job{
		ID:              id,
		LocationID:      locationID,
		Platform:        platform,
		JobType:         jobType,
		Status:          JobStatusPending,
		SearchDateStart: window.Start,
		SearchDateEnd:   window.End,
	}, nil
}

func (j *Job) Window() DateWindow {
	return DateWindow{Start: j.SearchDateStart, End: j.SearchDateEnd}
}

func (j *Job) IsTerminal() bool {
	return j.Status.IsTerminal()
}

// Start moves a PENDING job to IN_PROGRESS.
func (j *Job) Start(now time.Time) error {
	if j.Status != JobStatusPending {
		return newErrInvalidTransition(j, "start")
	}
	j.Status = JobStatusInProgress
	j.StartedAt = &now
	return nil
}

// Complete moves an IN_PROGRESS job to COMPLETED.
func (j *Job) Complete(propertiesFound int, now time.Time) error {
	if j.Status != JobStatusInProgress {
		return newErrInvalidTransition(j, "complete")
	}
	j.Status = JobStatusCompleted
	j.CompletedAt = &now
	j.PropertiesFound = &propertiesFound
	return nil
}

// Fail moves any non terminal job to FAILED.
func (j *Job) Fail(message string, now time.Time) error {
	if j.IsTerminal() {
		return newErrInvalidTransition(j, "fail")
	}
	j.Status = JobStatusFailed
	j.CompletedAt = &now
	j.ErrorMessage = &message
	return nil
}

// Retry resets a FAILED job to PENDING and clears everything a previous attempt recorded.
func (j *Job) Retry() error {
	if j.Status != JobStatusFailed {
		return newErrInvalidTransition(j, "retry")
	}
	j.Status = JobStatusPending
	j.StartedAt = nil
	j.CompletedAt = nil
	j.ErrorMessage = nil
	j.PropertiesFound = nil
	return nil
}

func (j Job) String() string {
	val, _ := json.Marshal(j)
	return string(val)
}

// ErrInvalidTransition reports a lifecycle transition that is not allowed from the job's current status.
type ErrInvalidTransition struct {
	JobID  uuid.UUID
	From   JobStatus
	Action string
}

func newErrInvalidTransition(j *Job, action string) *ErrInvalidTransition {
	return &ErrInvalidTransition{JobID: j.ID, From: j.Status, Action: action}
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("cannot %s job %s in status %s", e.Action, e.JobID, e.From)
}
