// Package payment defines the charge/refund capability consumed by the
// lifecycle engine. The engine never talks to a specific gateway; the HTTP
// client lives under infra/payment and tests use the Mock.
package payment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ChargeInput describes a charge to create when a breakdown completes.
type ChargeInput struct {
	BreakdownID string  `json:"breakdown_id"`
	RiderID     string  `json:"rider_id"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
}

// Charge is the gateway's record of a created charge.
type Charge struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Gateway is the injected payment capability.
type Gateway interface {
	CreateCharge(ctx context.Context, in ChargeInput) (Charge, error)
	Refund(ctx context.Context, chargeID string, amount float64) error
}

// Mock records charges and refunds in memory.
type Mock struct {
	mu      sync.Mutex
	charges []ChargeInput
	refunds map[string]float64

	// FailNext, when set, makes the next call return this error.
	FailNext error
}

// NewMock creates an empty mock gateway.
func NewMock() *Mock { return &Mock{refunds: make(map[string]float64)} }

func (m *Mock) CreateCharge(_ context.Context, in ChargeInput) (Charge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailNext != nil {
		err := m.FailNext
		m.FailNext = nil
		return Charge{}, err
	}
	if in.Amount <= 0 {
		return Charge{}, fmt.Errorf("charge amount must be positive, got %v", in.Amount)
	}
	m.charges = append(m.charges, in)
	return Charge{ID: uuid.NewString(), Status: "created", CreatedAt: time.Now()}, nil
}

func (m *Mock) Refund(_ context.Context, chargeID string, amount float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailNext != nil {
		err := m.FailNext
		m.FailNext = nil
		return err
	}
	m.refunds[chargeID] += amount
	return nil
}

// Charges returns a copy of the recorded charges.
func (m *Mock) Charges() []ChargeInput {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ChargeInput(nil), m.charges...)
}
