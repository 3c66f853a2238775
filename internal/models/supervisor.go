package models

import "time"

// AvailabilityStatus is derived from supervisor capacity.
type AvailabilityStatus string

const (
	AvailabilityAvailable   AvailabilityStatus = "available"
	AvailabilityLimited     AvailabilityStatus = "limited"
	AvailabilityUnavailable AvailabilityStatus = "unavailable"
)

// MaxSupervisorCapacity bounds admin capacity edits.
const MaxSupervisorCapacity = 50

// Supervisor is a supervisor profile. 0 <= CurrentCapacity <= MaxCapacity.
type Supervisor struct {
	ID                 string             `json:"id"`
	Name               string             `json:"name"`
	Email              string             `json:"email"`
	Department         string             `json:"department"`
	CurrentCapacity    int                `json:"currentCapacity"`
	MaxCapacity        int                `json:"maxCapacity"`
	AvailabilityStatus AvailabilityStatus `json:"availabilityStatus"`
	IsActive           bool               `json:"isActive"`
	IsApproved         bool               `json:"isApproved"`
	CreatedAt          time.Time          `json:"createdAt"`
	UpdatedAt          time.Time          `json:"updatedAt"`
}

// HasCapacity reports whether one more student can be accepted.
func (s *Supervisor) HasCapacity() bool {
	return s.CurrentCapacity < s.MaxCapacity
}

// DeriveAvailability maps capacity to the cached availability label.
func DeriveAvailability(current, maxCapacity int) AvailabilityStatus {
	switch {
	case current >= maxCapacity:
		return AvailabilityUnavailable
	case maxCapacity-current <= 1:
		return AvailabilityLimited
	default:
		return AvailabilityAvailable
	}
}
