package breakdown

import (
	"errors"
	"fmt"
	"time"

	"github.com/openroad/roadassist/core/events"
	"github.com/openroad/roadassist/core/logger"
	"github.com/openroad/roadassist/core/model"
	"github.com/openroad/roadassist/internal/eventbus"
)

var (
	// ErrInvalidTransition is returned for edges absent from the table.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrEstimateRequired guards ESTIMATE_APPROVED.
	ErrEstimateRequired = errors.New("estimated price must be set first")
	// ErrFinalPriceRequired guards COMPLETED.
	ErrFinalPriceRequired = errors.New("final price must be set first")
	// ErrAssignmentManaged is returned when a caller tries to reach
	// ACCEPTED through the generic transition path. Assignment binds a
	// reserved mechanic and belongs to the dispatch coordinator.
	ErrAssignmentManaged = errors.New("acceptance is managed by the dispatch coordinator")
)

// next is the single-step forward transition table. CANCELLED is reachable
// from every non-terminal state and is handled separately.
var next = map[model.BreakdownStatus]model.BreakdownStatus{
	model.StatusPending:          model.StatusSearching,
	model.StatusSearching:        model.StatusAccepted,
	model.StatusAccepted:         model.StatusEnRoute,
	model.StatusEnRoute:          model.StatusArrived,
	model.StatusArrived:          model.StatusDiagnosing,
	model.StatusDiagnosing:       model.StatusEstimateSent,
	model.StatusEstimateSent:     model.StatusEstimateApproved,
	model.StatusEstimateApproved: model.StatusInProgress,
	model.StatusInProgress:       model.StatusCompleted,
}

// CanTransition reports whether from→to is a legal edge: one step forward,
// or the cancellation edge from any non-terminal state.
func CanTransition(from, to model.BreakdownStatus) bool {
	if from.Terminal() {
		return false
	}
	if to == model.StatusCancelled {
		return true
	}
	return next[from] == to
}

// Machine validates and applies status transitions with their guards, and
// emits a StatusChanged event for every committed edge. Side effects
// (notifications, mechanic release, charging) are performed by bus
// subscribers, never synchronously here.
type Machine struct {
	store Store
	bus   eventbus.EventBus
	log   logger.Logger
}

// NewMachine wires the state machine to its store and event bus.
func NewMachine(store Store, bus eventbus.EventBus, log logger.Logger) *Machine {
	return &Machine{store: store, bus: bus, log: log}
}

// Transition advances the breakdown one step forward. ACCEPTED and
// CANCELLED have dedicated entry points (Assign, Cancel) because they
// carry extra bindings.
func (m *Machine) Transition(id string, target model.BreakdownStatus, actor string) (model.Breakdown, error) {
	if target == model.StatusAccepted {
		return model.Breakdown{}, ErrAssignmentManaged
	}
	if target == model.StatusCancelled {
		return model.Breakdown{}, fmt.Errorf("%w: cancellation requires a reason", ErrInvalidTransition)
	}

	cur, err := m.store.Get(id)
	if err != nil {
		return model.Breakdown{}, err
	}
	if cur.Status.Terminal() {
		return model.Breakdown{}, ErrTerminal
	}
	if !CanTransition(cur.Status, target) {
		return model.Breakdown{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, cur.Status, target)
	}
	if target == model.StatusEstimateApproved && cur.EstimatedPrice == nil {
		return model.Breakdown{}, ErrEstimateRequired
	}
	if target == model.StatusCompleted && cur.FinalPrice == nil {
		return model.Breakdown{}, ErrFinalPriceRequired
	}

	updated, err := m.store.UpdateIf(id, cur.Status, func(b *model.Breakdown) {
		b.Status = target
		if target == model.StatusCompleted {
			now := time.Now()
			b.CompletedAt = &now
		}
	})
	if err != nil {
		return model.Breakdown{}, err
	}
	m.emit(cur.Status, updated, actor)
	return updated, nil
}

// Assign performs the SEARCHING→ACCEPTED compare-and-set, binding the
// mechanic. The caller must hold a successful reservation for mechanicID;
// a CAS miss means the breakdown was cancelled or already assigned.
func (m *Machine) Assign(id, mechanicID, actor string) (model.Breakdown, error) {
	updated, err := m.store.UpdateIf(id, model.StatusSearching, func(b *model.Breakdown) {
		now := time.Now()
		b.Status = model.StatusAccepted
		b.MechanicID = &mechanicID
		b.AcceptedAt = &now
	})
	if err != nil {
		return model.Breakdown{}, err
	}
	m.emit(model.StatusSearching, updated, actor)
	return updated, nil
}

// Cancel applies the cancellation edge from any non-terminal state and
// records the reason.
func (m *Machine) Cancel(id, actor, reason string) (model.Breakdown, error) {
	cur, err := m.store.Get(id)
	if err != nil {
		return model.Breakdown{}, err
	}
	if cur.Status.Terminal() {
		return model.Breakdown{}, ErrTerminal
	}
	updated, err := m.store.UpdateIf(id, cur.Status, func(b *model.Breakdown) {
		now := time.Now()
		b.Status = model.StatusCancelled
		b.CancelReason = &reason
		b.CancelledAt = &now
	})
	if err != nil {
		return model.Breakdown{}, err
	}
	m.emit(cur.Status, updated, actor)
	return updated, nil
}

// CancelIf applies the cancellation edge only while the record is still in
// expect. Callers that must not cancel past a certain point (a rider cancel
// racing an acceptance) use this instead of Cancel so the compare-and-set
// settles the race.
func (m *Machine) CancelIf(id string, expect model.BreakdownStatus, actor, reason string) (model.Breakdown, error) {
	if expect.Terminal() {
		return model.Breakdown{}, ErrTerminal
	}
	updated, err := m.store.UpdateIf(id, expect, func(b *model.Breakdown) {
		now := time.Now()
		b.Status = model.StatusCancelled
		b.CancelReason = &reason
		b.CancelledAt = &now
	})
	if err != nil {
		return model.Breakdown{}, err
	}
	m.emit(expect, updated, actor)
	return updated, nil
}

// SetEstimate records the estimated price. Permitted once a mechanic is
// assigned and before the estimate has been approved.
func (m *Machine) SetEstimate(id string, price float64, actor string) (model.Breakdown, error) {
	if price <= 0 {
		return model.Breakdown{}, fmt.Errorf("estimate must be positive, got %v", price)
	}
	return m.store.Update(id, func(b *model.Breakdown) error {
		switch b.Status {
		case model.StatusAccepted, model.StatusEnRoute, model.StatusArrived,
			model.StatusDiagnosing, model.StatusEstimateSent:
			b.EstimatedPrice = &price
			return nil
		default:
			return fmt.Errorf("%w: cannot set estimate in %s", ErrInvalidTransition, b.Status)
		}
	})
}

// SetFinalPrice records the final price ahead of the COMPLETED transition.
func (m *Machine) SetFinalPrice(id string, price float64, actor string) (model.Breakdown, error) {
	if price <= 0 {
		return model.Breakdown{}, fmt.Errorf("final price must be positive, got %v", price)
	}
	return m.store.Update(id, func(b *model.Breakdown) error {
		if b.Status != model.StatusInProgress {
			return fmt.Errorf("%w: cannot set final price in %s", ErrInvalidTransition, b.Status)
		}
		b.FinalPrice = &price
		return nil
	})
}

func (m *Machine) emit(from model.BreakdownStatus, b model.Breakdown, actor string) {
	if m.log != nil {
		m.log.Infof("breakdown %s: %s -> %s (by %s)", b.Number, from, b.Status, actor)
	}
	if m.bus == nil {
		return
	}
	mech := ""
	if b.MechanicID != nil {
		mech = *b.MechanicID
	}
	m.bus.Publish(events.StatusChanged{
		BreakdownID: b.ID,
		Number:      b.Number,
		RiderID:     b.RiderID,
		MechanicID:  mech,
		From:        from,
		To:          b.Status,
		Actor:       actor,
		At:          b.UpdatedAt,
	})
}
