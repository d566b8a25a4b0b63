package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rentscope/market-planner/internal/store/model"
	"gorm.io/gorm"
)

type Location interface {
	Create(ctx context.Context, location model.Location) (*model.Location, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Location, error)
	List(ctx context.Context, filter *LocationQueryFilter) (model.LocationList, error)
	Touch(ctx context.Context, id uuid.UUID, scrapedAt time.Time) error
}

type LocationStore struct {
	db *gorm.DB
}

var _ Location = (*LocationStore)(nil)

func NewLocationStore(db *gorm.DB) Location {
	return &LocationStore{db: db}
}

func (s *LocationStore) Create(ctx context.Context, location model.Location) (*model.Location, error) {
	if location.ID == uuid.Nil {
		location.ID = uuid.New()
	}
	if result := s.getDB(ctx).Create(&location); result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateKey
		}
		return nil, fmt.Errorf("creating location: %w", result.Error)
	}
	return &location, nil
}

func (s *LocationStore) Get(ctx context.Context, id uuid.UUID) (*model.Location, error) {
	var location model.Location
	result := s.getDB(ctx).First(&location, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying location: %w", result.Error)
	}
	return &location, nil
}

func (s *LocationStore) List(ctx context.Context, filter *LocationQueryFilter) (model.LocationList, error) {
	var locations model.LocationList
	tx := s.getDB(ctx).Model(&locations)
	if filter != nil {
		tx = apply(tx, filter.QueryFn)
	}
	if result := tx.Order("name").Find(&locations); result.Error != nil {
		return nil, fmt.Errorf("listing locations: %w", result.Error)
	}
	return locations, nil
}

// Touch records a successful scrape of the location.
func (s *LocationStore) Touch(ctx context.Context, id uuid.UUID, scrapedAt time.Time) error {
	result := s.getDB(ctx).Model(&model.Location{}).Where("id = ?", id).Update("last_scraped_at", scrapedAt)
	if result.Error != nil {
		return fmt.Errorf("touching location: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (s *LocationStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return s.db.WithContext(ctx)
}
