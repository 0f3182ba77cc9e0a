// Package notify defines the transport used to deliver offers to mechanics
// and lifecycle notifications to riders. The engine only depends on this
// interface; MQTT and mock implementations live under infra.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/openroad/roadassist/core/model"
)

// Offer is the payload delivered to a candidate mechanic.
type Offer struct {
	OfferID     string                  `json:"offer_id"`
	BreakdownID string                  `json:"breakdown_id"`
	Number      string                  `json:"number"`
	MechanicID  string                  `json:"mechanic_id"`
	Category    model.EmergencyCategory `json:"category"`
	Latitude    float64                 `json:"latitude"`
	Longitude   float64                 `json:"longitude"`
	Address     string                  `json:"address,omitempty"`
	DistanceKm  float64                 `json:"distance_km"`
	ExpiresAt   time.Time               `json:"expires_at"`
}

// Notifier delivers offers and notifications. Implementations must not
// block on slow receivers; delivery failures are reported, not retried.
type Notifier interface {
	// SendOffer delivers the offer to its mechanic.
	SendOffer(ctx context.Context, offer Offer) error
	// CancelOffer tells the mechanic an outstanding offer is void.
	CancelOffer(ctx context.Context, mechanicID, offerID string) error
	// NotifyRider informs the rider of a lifecycle event.
	NotifyRider(ctx context.Context, riderID, event string, payload any) error
}

// Mock records every delivery and can invoke a hook per offer, which tests
// use to simulate mechanic responses.
type Mock struct {
	mu      sync.Mutex
	offers  []Offer
	cancels []string
	riders  []string

	// OnOffer, when set, runs in its own goroutine for each offer.
	OnOffer func(Offer)
	// FailSend, when set, makes SendOffer return this error.
	FailSend error
}

// NewMock creates an empty mock notifier.
func NewMock() *Mock { return &Mock{} }

func (m *Mock) SendOffer(_ context.Context, offer Offer) error {
	m.mu.Lock()
	fail := m.FailSend
	if fail == nil {
		m.offers = append(m.offers, offer)
	}
	hook := m.OnOffer
	m.mu.Unlock()
	if fail != nil {
		return fail
	}
	if hook != nil {
		go hook(offer)
	}
	return nil
}

func (m *Mock) CancelOffer(_ context.Context, mechanicID, offerID string) error {
	m.mu.Lock()
	m.cancels = append(m.cancels, offerID)
	m.mu.Unlock()
	return nil
}

func (m *Mock) NotifyRider(_ context.Context, riderID, event string, _ any) error {
	m.mu.Lock()
	m.riders = append(m.riders, riderID+":"+event)
	m.mu.Unlock()
	return nil
}

// Offers returns a copy of the delivered offers.
func (m *Mock) Offers() []Offer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Offer(nil), m.offers...)
}

// Cancelled returns the ids of cancelled offers.
func (m *Mock) Cancelled() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.cancels...)
}

// RiderEvents returns "riderID:event" entries in delivery order.
func (m *Mock) RiderEvents() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.riders...)
}
