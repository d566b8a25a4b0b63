package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/rentscope/market-planner/internal/store/model"
)

const (
	WorkRequestMessageKind string = "rentscope.scraping.work-request"
	CompletedMessageKind   string = "rentscope.scraping.completed"
	FailedMessageKind      string = "rentscope.scraping.failed"
	DataUpdatedMessageKind string = "rentscope.scraping.data-updated"
)

// WorkRequest asks a worker to scrape one platform for one location. A request whose publish
// timed out may still be delivered. The job is FAILED by then and the completion the worker sends
// for it is dropped, so workers must not rely on every completion being recorded.
type WorkRequest struct {
	JobID           uuid.UUID          `json:"job_id"`
	LocationID      uuid.UUID          `json:"location_id"`
	LocationName    string             `json:"location_name"`
	JobType         model.JobType      `json:"job_type"`
	Platform        model.Platform     `json:"platform"`
	BoundingBox     *model.BoundingBox `json:"bounding_box,omitempty"`
	SearchDateStart time.Time          `json:"search_date_start"`
	SearchDateEnd   time.Time          `json:"search_date_end"`
	OccurredAt      time.Time          `json:"occurred_at"`
}

// CompletionNotification is emitted by a worker once a job produced its results.
type CompletionNotification struct {
	JobID               uuid.UUID         `json:"job_id"`
	JobType             model.JobType     `json:"job_type"`
	LocationID          uuid.UUID         `json:"location_id"`
	SearchDateStart     time.Time         `json:"search_date_start"`
	SearchDateEnd       time.Time         `json:"search_date_end"`
	PropertiesFound     int               `json:"properties_found"`
	Properties          []ScrapedProperty `json:"properties"`
	DuplicatesRemoved   int               `json:"duplicates_removed"`
	FilteredOutOfBounds int               `json:"filtered_out_of_bounds"`
	OccurredAt          time.Time         `json:"occurred_at"`
}

type ScrapedProperty struct {
	PlatformID       string               `json:"platform_id"`
	Platform         model.Platform       `json:"platform"`
	Latitude         *float64             `json:"latitude,omitempty"`
	Longitude        *float64             `json:"longitude,omitempty"`
	Title            string               `json:"title"`
	PropertyType     string               `json:"property_type"`
	Price            *float64             `json:"price,omitempty"`
	Currency         string               `json:"currency,omitempty"`
	Bedrooms         *int                 `json:"bedrooms,omitempty"`
	Bathrooms        *float64             `json:"bathrooms,omitempty"`
	Beds             *int                 `json:"beds,omitempty"`
	MaxGuests        *int                 `json:"max_guests,omitempty"`
	Rating           *float64             `json:"rating,omitempty"`
	ReviewCount      int                  `json:"review_count"`
	Superhost        bool                 `json:"superhost"`
	ImageURL         string               `json:"image_url,omitempty"`
	ListingURL       string               `json:"listing_url,omitempty"`
	Amenities        []string             `json:"amenities,omitempty"`
	Availability     []AvailabilityRecord `json:"availability,omitempty"`
	PriceSample      *PriceSampleRecord   `json:"price_sample,omitempty"`
	DataCompleteness string               `json:"data_completeness,omitempty"`
	PdpScrapedAt     *time.Time           `json:"pdp_scraped_at,omitempty"`
}

const DataCompletenessFull = "FULL"

type AvailabilityRecord struct {
	// Month is the first day of the calendar month.
	Month         time.Time `json:"month"`
	TotalDays     int       `json:"total_days"`
	AvailableDays int       `json:"available_days"`
	BookedDays    int       `json:"booked_days"`
	BlockedDays   int       `json:"blocked_days"`
}

type PriceSampleRecord struct {
	Price           float64   `json:"price"`
	Currency        string    `json:"currency"`
	SearchDateStart time.Time `json:"search_date_start"`
	SearchDateEnd   time.Time `json:"search_date_end"`
}

// FailureNotification is emitted by a worker when a job could not be processed.
type FailureNotification struct {
	JobID        uuid.UUID `json:"job_id"`
	ErrorMessage string    `json:"error_message"`
	ErrorType    string    `json:"error_type"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// DataUpdatedNotification tells derived data owners that the samples of a location changed.
type DataUpdatedNotification struct {
	LocationID         uuid.UUID `json:"location_id"`
	PropertiesAffected int       `json:"properties_affected"`
}
