package service

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/rentscope/market-planner/internal/store/model"
)

type ErrValidation struct {
	error
}

func NewErrValidation(format string, args ...any) *ErrValidation {
	return &ErrValidation{fmt.Errorf(format, args...)}
}

func NewErrUnknownLocation(id uuid.UUID) *ErrValidation {
	return NewErrValidation("location %s does not exist", id)
}

type ErrResourceNotFound struct {
	error
}

func NewErrResourceNotFound(id uuid.UUID, resourceType string) *ErrResourceNotFound {
	return &ErrResourceNotFound{fmt.Errorf("%s %s not found", resourceType, id)}
}

func NewErrJobNotFound(id uuid.UUID) *ErrResourceNotFound {
	return NewErrResourceNotFound(id, "job")
}

func NewErrLocationNotFound(id uuid.UUID) *ErrResourceNotFound {
	return NewErrResourceNotFound(id, "location")
}

type ErrInvalidState struct {
	error
}

func NewErrInvalidState(err *model.ErrInvalidTransition) *ErrInvalidState {
	return &ErrInvalidState{err}
}

func (e *ErrInvalidState) Unwrap() error {
	return e.error
}

type ErrPublish struct {
	error
}

func NewErrPublish(err error) *ErrPublish {
	return &ErrPublish{fmt.Errorf("publishing work request: %w", err)}
}

func (e *ErrPublish) Unwrap() error {
	return e.error
}

// ErrJobCreation is returned when the job was persisted but its work request could not be
// published. Job is the record as persisted, already FAILED.
type ErrJobCreation struct {
	error
	Job *model.Job
}

func NewErrJobCreation(job *model.Job, err error) *ErrJobCreation {
	return &ErrJobCreation{error: fmt.Errorf("job %s failed: %w", job.ID, err), Job: job}
}

func (e *ErrJobCreation) Unwrap() error {
	return e.error
}

// StatusCode maps an error returned by this package to the HTTP status class an API layer should answer with.
func StatusCode(err error) int {
	var (
		validation *ErrValidation
		notFound   *ErrResourceNotFound
		state      *ErrInvalidState
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &state):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
