package model

import (
	"fmt"
	"time"
)

// BreakdownStatus is the lifecycle state of a breakdown request.
type BreakdownStatus string

const (
	StatusPending          BreakdownStatus = "PENDING"
	StatusSearching        BreakdownStatus = "SEARCHING"
	StatusAccepted         BreakdownStatus = "ACCEPTED"
	StatusEnRoute          BreakdownStatus = "EN_ROUTE"
	StatusArrived          BreakdownStatus = "ARRIVED"
	StatusDiagnosing       BreakdownStatus = "DIAGNOSING"
	StatusEstimateSent     BreakdownStatus = "ESTIMATE_SENT"
	StatusEstimateApproved BreakdownStatus = "ESTIMATE_APPROVED"
	StatusInProgress       BreakdownStatus = "IN_PROGRESS"
	StatusCompleted        BreakdownStatus = "COMPLETED"
	StatusCancelled        BreakdownStatus = "CANCELLED"
)

// Terminal reports whether no further transitions are permitted.
func (s BreakdownStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// ParseBreakdownStatus validates a wire value against the known statuses.
func ParseBreakdownStatus(v string) (BreakdownStatus, error) {
	switch s := BreakdownStatus(v); s {
	case StatusPending, StatusSearching, StatusAccepted, StatusEnRoute,
		StatusArrived, StatusDiagnosing, StatusEstimateSent,
		StatusEstimateApproved, StatusInProgress, StatusCompleted,
		StatusCancelled:
		return s, nil
	}
	return "", fmt.Errorf("unknown breakdown status %q", v)
}

// EmergencyCategory classifies what went wrong with the vehicle.
type EmergencyCategory string

const (
	CategoryFlatTire    EmergencyCategory = "FLAT_TIRE"
	CategoryDeadBattery EmergencyCategory = "DEAD_BATTERY"
	CategoryEngine      EmergencyCategory = "ENGINE"
	CategoryLockout     EmergencyCategory = "LOCKOUT"
	CategoryFuel        EmergencyCategory = "FUEL"
	CategoryAccident    EmergencyCategory = "ACCIDENT"
	CategoryOther       EmergencyCategory = "OTHER"
)

// ParseEmergencyCategory validates a wire value against the known categories.
func ParseEmergencyCategory(v string) (EmergencyCategory, error) {
	switch c := EmergencyCategory(v); c {
	case CategoryFlatTire, CategoryDeadBattery, CategoryEngine,
		CategoryLockout, CategoryFuel, CategoryAccident, CategoryOther:
		return c, nil
	}
	return "", fmt.Errorf("unknown emergency category %q", v)
}

// Breakdown represents a rider's single roadside-assistance incident.
//
// MechanicID is set if and only if the status has progressed past SEARCHING.
// EstimatedPrice must be set before ESTIMATE_APPROVED, FinalPrice before
// COMPLETED. Once the status is terminal the record is immutable.
type Breakdown struct {
	ID             string            `json:"id"`
	Number         string            `json:"number"`
	RiderID        string            `json:"rider_id"`
	MechanicID     *string           `json:"mechanic_id,omitempty"`
	Status         BreakdownStatus   `json:"status"`
	Latitude       float64           `json:"latitude"`
	Longitude      float64           `json:"longitude"`
	Address        string            `json:"address,omitempty"`
	Category       EmergencyCategory `json:"category"`
	Notes          string            `json:"notes,omitempty"`
	PhotoIDs       []string          `json:"photo_ids,omitempty"`
	EstimatedPrice *float64          `json:"estimated_price,omitempty"`
	FinalPrice     *float64          `json:"final_price,omitempty"`
	CancelReason   *string           `json:"cancel_reason,omitempty"`
	RequestedAt    time.Time         `json:"requested_at"`
	AcceptedAt     *time.Time        `json:"accepted_at,omitempty"`
	CompletedAt    *time.Time        `json:"completed_at,omitempty"`
	CancelledAt    *time.Time        `json:"cancelled_at,omitempty"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// ValidateCoordinates checks that lat/lng form a plausible WGS-84 point.
func ValidateCoordinates(lat, lng float64) error {
	if lat < -90 || lat > 90 {
		return fmt.Errorf("latitude must be between -90 and 90, got %v", lat)
	}
	if lng < -180 || lng > 180 {
		return fmt.Errorf("longitude must be between -180 and 180, got %v", lng)
	}
	return nil
}
