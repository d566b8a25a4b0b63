package model

import (
	"time"

	"github.com/google/uuid"
)

type Location struct {
	ID            uuid.UUID `gorm:"primaryKey;column:id;type:VARCHAR(36);"`
	Name          string    `gorm:"not null"`
	SwLng         *float64
	SwLat         *float64
	NeLng         *float64
	NeLat         *float64
	LastScrapedAt *time.Time `gorm:"index:locations_last_scraped_at_idx"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type LocationList []Location

type BoundingBox struct {
	SwLng float64 `json:"sw_lng"`
	SwLat float64 `json:"sw_lat"`
	NeLng float64 `json:"ne_lng"`
	NeLat float64 `json:"ne_lat"`
}

// BoundingBox returns nil unless all four corners are known.
func (l *Location) BoundingBox() *BoundingBox {
	if l.SwLng == nil || l.SwLat == nil || l.NeLng == nil || l.NeLat == nil {
		return nil
	}
	return &BoundingBox{SwLng: *l.SwLng, SwLat: *l.SwLat, NeLng: *l.NeLng, NeLat: *l.NeLat}
}

func (l *Location) SetBoundingBox(b BoundingBox) {
	l.SwLng, l.SwLat, l.NeLng, l.NeLat = &b.SwLng, &b.SwLat, &b.NeLng, &b.NeLat
}
