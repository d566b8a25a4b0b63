package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rentscope/market-planner/internal/store/model"
	"gorm.io/gorm"
)

// lifecycleColumns are the only columns a job update writes.
var lifecycleColumns = []string{"status", "started_at", "completed_at", "properties_found", "error_message", "updated_at"}

type Job interface {
	Create(ctx context.Context, job *model.Job) (*model.Job, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Job, error)
	List(ctx context.Context, filter *JobQueryFilter, opts *JobQueryOptions) (model.JobList, error)
	Update(ctx context.Context, job *model.Job) (*model.Job, error)
	CountByStatus(ctx context.Context) (map[model.JobStatus]int, error)
}

type JobStore struct {
	db *gorm.DB
}

// Make sure we conform to Job interface
var _ Job = (*JobStore)(nil)

func NewJobStore(db *gorm.DB) Job {
	return &JobStore{db: db}
}

func (s *JobStore) Create(ctx context.Context, job *model.Job) (*model.Job, error) {
	result := s.getDB(ctx).Create(job)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateKey
		}
		return nil, fmt.Errorf("creating job: %w", result.Error)
	}
	return job, nil
}

func (s *JobStore) Get(ctx context.Context, id uuid.UUID) (*model.Job, error) {
	var job model.Job
	result := s.getDB(ctx).First(&job, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying job: %w", result.Error)
	}
	return &job, nil
}

func (s *JobStore) List(ctx context.Context, filter *JobQueryFilter, opts *JobQueryOptions) (model.JobList, error) {
	var jobs model.JobList
	tx := s.getDB(ctx).Model(&jobs)

	if filter != nil {
		tx = apply(tx, filter.QueryFn)
	}
	if opts != nil {
		tx = apply(tx, opts.QueryFn)
	}

	if result := tx.Find(&jobs); result.Error != nil {
		return nil, fmt.Errorf("listing jobs: %w", result.Error)
	}
	return jobs, nil
}

// Update persists the lifecycle fields of the job. Immutable fields are never written.
func (s *JobStore) Update(ctx context.Context, job *model.Job) (*model.Job, error) {
	result := s.getDB(ctx).Model(job).Select(lifecycleColumns).Updates(job)
	if result.Error != nil {
		return nil, fmt.Errorf("updating job: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrRecordNotFound
	}
	return job, nil
}

func (s *JobStore) CountByStatus(ctx context.Context) (map[model.JobStatus]int, error) {
	var rows []struct {
		Status model.JobStatus
		Total  int
	}
	result := s.getDB(ctx).Model(&model.Job{}).Select("status, count(*) as total").Group("status").Scan(&rows)
	if result.Error != nil {
		return nil, fmt.Errorf("counting jobs: %w", result.Error)
	}

	counts := make(map[model.JobStatus]int, len(model.JobStatuses()))
	for _, status := range model.JobStatuses() {
		counts[status] = 0
	}
	for _, r := range rows {
		counts[r.Status] = r.Total
	}
	return counts, nil
}

func (s *JobStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return s.db.WithContext(ctx)
}
