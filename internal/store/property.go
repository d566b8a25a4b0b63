package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rentscope/market-planner/internal/store/model"
	"gorm.io/gorm"
)

var propertyColumns = []string{
	"title", "property_type", "latitude", "longitude", "bedrooms", "bathrooms", "beds", "max_guests",
	"rating", "review_count", "superhost", "listing_price", "listing_currency", "image_url", "listing_url",
	"amenities", "data_complete",
	"pdp_scraped_at", "updated_at",
}

// Property gives access to properties and the samples attached to them. Samples and snapshots are append only.
type Property interface {
	Upsert(ctx context.Context, property *model.Property) (*model.Property, error)
	List(ctx context.Context, locationID uuid.UUID) ([]model.Property, error)
	AddPriceSamples(ctx context.Context, samples []model.PriceSample) error
	AddAvailabilitySnapshots(ctx context.Context, snapshots []model.AvailabilitySnapshot) error
	ListPriceSamples(ctx context.Context, locationID uuid.UUID) ([]model.PriceSample, error)
	ListAvailabilitySnapshots(ctx context.Context, locationID uuid.UUID) ([]model.AvailabilitySnapshot, error)
}

type PropertyStore struct {
	db *gorm.DB
}

var _ Property = (*PropertyStore)(nil)

func NewPropertyStore(db *gorm.DB) Property {
	return &PropertyStore{db: db}
}

// Upsert matches properties on (platform, platform id). The stored id wins over the one supplied.
func (s *PropertyStore) Upsert(ctx context.Context, property *model.Property) (*model.Property, error) {
	db := s.getDB(ctx)

	var existing model.Property
	result := db.Select("id", "location_id").
		Where("platform = ? AND platform_id = ?", property.Platform, property.PlatformID).
		First(&existing)
	switch {
	case result.Error == nil:
		property.ID = existing.ID
		property.LocationID = existing.LocationID
		if err := db.Model(property).Omit("PriceSamples", "AvailabilityLog").Select(propertyColumns).Updates(property).Error; err != nil {
			return nil, fmt.Errorf("updating property: %w", err)
		}
		return property, nil
	case errors.Is(result.Error, gorm.ErrRecordNotFound):
		if property.ID == uuid.Nil {
			property.ID = uuid.New()
		}
		if err := db.Omit("PriceSamples", "AvailabilityLog").Create(property).Error; err != nil {
			return nil, fmt.Errorf("creating property: %w", err)
		}
		return property, nil
	default:
		return nil, fmt.Errorf("querying property: %w", result.Error)
	}
}

func (s *PropertyStore) List(ctx context.Context, locationID uuid.UUID) ([]model.Property, error) {
	var properties []model.Property
	if err := s.getDB(ctx).Where("location_id = ?", locationID).Order("platform, platform_id").Find(&properties).Error; err != nil {
		return nil, fmt.Errorf("listing properties: %w", err)
	}
	return properties, nil
}

func (s *PropertyStore) AddPriceSamples(ctx context.Context, samples []model.PriceSample) error {
	if len(samples) == 0 {
		return nil
	}
	if err := s.getDB(ctx).Create(&samples).Error; err != nil {
		return fmt.Errorf("adding price samples: %w", err)
	}
	return nil
}

func (s *PropertyStore) AddAvailabilitySnapshots(ctx context.Context, snapshots []model.AvailabilitySnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}
	if err := s.getDB(ctx).Create(&snapshots).Error; err != nil {
		return fmt.Errorf("adding availability snapshots: %w", err)
	}
	return nil
}

func (s *PropertyStore) ListPriceSamples(ctx context.Context, locationID uuid.UUID) ([]model.PriceSample, error) {
	var samples []model.PriceSample
	err := s.getDB(ctx).
		Joins("JOIN properties ON properties.id = price_samples.property_id").
		Where("properties.location_id = ?", locationID).
		Order("price_samples.id").
		Find(&samples).Error
	if err != nil {
		return nil, fmt.Errorf("listing price samples: %w", err)
	}
	return samples, nil
}

func (s *PropertyStore) ListAvailabilitySnapshots(ctx context.Context, locationID uuid.UUID) ([]model.AvailabilitySnapshot, error) {
	var snapshots []model.AvailabilitySnapshot
	err := s.getDB(ctx).
		Joins("JOIN properties ON properties.id = availability_snapshots.property_id").
		Where("properties.location_id = ?", locationID).
		Order("availability_snapshots.id").
		Find(&snapshots).Error
	if err != nil {
		return nil, fmt.Errorf("listing availability snapshots: %w", err)
	}
	return snapshots, nil
}

func (s *PropertyStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return s.db.WithContext(ctx)
}
