package model

import "fmt"

// Platform is the closed set of listing sources. Adding a value requires updating every switch
// over Platform in the repository; Platforms() is the only place the set is enumerated.
type Platform string

const (
	PlatformAirbnb  Platform = "AIRBNB"
	PlatformVrbo    Platform = "VRBO"
	PlatformBooking Platform = "BOOKING"
)

func Platforms() []Platform {
	return []Platform{PlatformAirbnb, PlatformVrbo, PlatformBooking}
}

func (p Platform) Valid() bool {
	switch p {
	case PlatformAirbnb, PlatformVrbo, PlatformBooking:
		return true
	default:
		return false
	}
}

func ParsePlatform(s string) (Platform, error) {
	p := Platform(s)
	if !p.Valid() {
		return "", fmt.Errorf("unknown platform %q", s)
	}
	return p, nil
}

type JobType string

const (
	// JobTypeFullProfile enriches properties and collects availability.
	JobTypeFullProfile JobType = "FULL_PROFILE"
	// JobTypePriceSample collects prices for a single date window.
	JobTypePriceSample JobType = "PRICE_SAMPLE"
)

func (t JobType) Valid() bool {
	switch t {
	case JobTypeFullProfile, JobTypePriceSample:
		return true
	default:
		return false
	}
}

func ParseJobType(s string) (JobType, error) {
	t := JobType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown job type %q", s)
	}
	return t, nil
}

type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusInProgress JobStatus = "IN_PROGRESS"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
)

func JobStatuses() []JobStatus {
	return []JobStatus{JobStatusPending, JobStatusInProgress, JobStatusCompleted, JobStatusFailed}
}

func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}
