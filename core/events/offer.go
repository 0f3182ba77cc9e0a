package events

import "time"

// OfferEvent is published when an offer is sent to a candidate mechanic.
type OfferEvent struct {
	OfferID     string
	BreakdownID string
	MechanicID  string
	DistanceKm  float64
	ExpiresAt   time.Time
}

// OfferOutcome is published for each offer resolution.
// Outcome is "accepted", "declined", "expired" or "invalidated".
type OfferOutcome struct {
	OfferID     string
	BreakdownID string
	MechanicID  string
	Outcome     string
	Latency     time.Duration
	Err         error
}
