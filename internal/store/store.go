package store

import (
	"context"

	"github.com/rentscope/market-planner/internal/store/model"
	"gorm.io/gorm"
)

type Store interface {
	NewTransactionContext(ctx context.Context) (context.Context, error)
	Job() Job
	Location() Location
	Property() Property
	InitialMigration() error
	Statistics(ctx context.Context) (model.JobStats, error)
	Close() error
}

type DataStore struct {
	db       *gorm.DB
	job      Job
	location Location
	property Property
}

func NewStore(db *gorm.DB) Store {
	return &DataStore{
		job:      NewJobStore(db),
		location: NewLocationStore(db),
		property: NewPropertyStore(db),
		db:       db,
	}
}

func (s *DataStore) NewTransactionContext(ctx context.Context) (context.Context, error) {
	return newTransactionContext(ctx, s.db)
}

func (s *DataStore) Job() Job {
	return s.job
}

func (s *DataStore) Location() Location {
	return s.location
}

func (s *DataStore) Property() Property {
	return s.property
}

func (s *DataStore) InitialMigration() error {
	return s.db.AutoMigrate(
		&model.Location{},
		&model.Job{},
		&model.Property{},
		&model.PriceSample{},
		&model.AvailabilitySnapshot{},
	)
}

func (s *DataStore) Statistics(ctx context.Context) (model.JobStats, error) {
	counts, err := s.Job().CountByStatus(ctx)
	if err != nil {
		return model.JobStats{}, err
	}
	return model.JobStats{ByStatus: counts}, nil
}

func (s *DataStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
