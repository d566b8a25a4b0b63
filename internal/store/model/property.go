package model

import (
	"math"
	"time"

	"github.com/google/uuid"
)

type Property struct {
	ID              uuid.UUID `gorm:"primaryKey;column:id;type:VARCHAR(36);"`
	LocationID      uuid.UUID `gorm:"not null;type:VARCHAR(36);index:properties_location_id_idx"`
	Platform        Platform  `gorm:"not null;type:VARCHAR(32);uniqueIndex:properties_platform_platform_id"`
	PlatformID      string    `gorm:"not null;uniqueIndex:properties_platform_platform_id"`
	Title           string
	PropertyType    string
	Latitude        *float64
	Longitude       *float64
	Bedrooms        *int
	Bathrooms       *float64
	Beds            *int
	MaxGuests       *int
	Rating          *float64
	ReviewCount     int
	Superhost       bool
	ListingPrice    *float64
	ListingCurrency string `gorm:"type:VARCHAR(3)"`
	ImageURL        string
	ListingURL      string
	Amenities       *JSONField[[]string] `gorm:"type:jsonb"`
	DataComplete    bool
	PdpScrapedAt    *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
	PriceSamples    []PriceSample          `gorm:"foreignKey:PropertyID;references:ID;constraint:OnDelete:CASCADE;"`
	AvailabilityLog []AvailabilitySnapshot `gorm:"foreignKey:PropertyID;references:ID;constraint:OnDelete:CASCADE;"`
}

type PriceSample struct {
	ID              uint      `gorm:"primaryKey;autoIncrement"`
	PropertyID      uuid.UUID `gorm:"not null;type:VARCHAR(36);index:price_samples_property_id_idx"`
	Price           float64   `gorm:"not null"`
	Currency        string    `gorm:"not null;type:VARCHAR(3)"`
	SearchDateStart time.Time `gorm:"not null"`
	SearchDateEnd   time.Time `gorm:"not null"`
	NumberOfNights  int       `gorm:"not null"`
	SampledAt       time.Time `gorm:"not null"`
}

// NewPriceSample derives the night count from the search window as the worker sent it, then
// stores the window in UTC.
func NewPriceSample(propertyID uuid.UUID, price float64, currency string, window DateWindow, sampledAt time.Time) PriceSample {
	stored := window.UTC()
	return PriceSample{
		PropertyID:      propertyID,
		Price:           price,
		Currency:        currency,
		SearchDateStart: stored.Start,
		SearchDateEnd:   stored.End,
		NumberOfNights:  window.Nights(),
		SampledAt:       sampledAt,
	}
}

// AverageDailyRate is price per night rounded half-up to cents. ok is false when the sample has no nights.
func (p PriceSample) AverageDailyRate() (rate float64, ok bool) {
	if p.NumberOfNights <= 0 {
		return 0, false
	}
	return RoundHalfUp(p.Price/float64(p.NumberOfNights), 2), true
}

type AvailabilitySnapshot struct {
	ID            uint      `gorm:"primaryKey;autoIncrement"`
	PropertyID    uuid.UUID `gorm:"not null;type:VARCHAR(36);index:availability_snapshots_property_id_idx"`
	Month         time.Time `gorm:"not null"`
	TotalDays     int       `gorm:"not null"`
	AvailableDays int       `gorm:"not null"`
	BookedDays    int       `gorm:"not null"`
	BlockedDays   int       `gorm:"not null"`
	ScrapedAt     time.Time `gorm:"not null"`
}

// EstimatedOccupancy is booked days over bookable days, 0 when nothing was bookable.
func (s AvailabilitySnapshot) EstimatedOccupancy() float64 {
	bookable := s.TotalDays - s.BlockedDays
	if bookable <= 0 {
		return 0
	}
	return float64(s.BookedDays) / float64(bookable)
}

// RoundHalfUp rounds positive values half-up at the given number of decimals.
func RoundHalfUp(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	// the epsilon absorbs representation error such as 2.675 being stored as 2.67499..
	return math.Floor(v*p+0.5+1e-9) / p
}
