package dispatch

import (
	"context"
	"errors"

	"github.com/openroad/roadassist/core/availability"
	"github.com/openroad/roadassist/core/breakdown"
	"github.com/openroad/roadassist/core/events"
	"github.com/openroad/roadassist/core/logger"
	"github.com/openroad/roadassist/core/model"
	"github.com/openroad/roadassist/core/notify"
	"github.com/openroad/roadassist/core/payment"
	infralog "github.com/openroad/roadassist/infra/logger"
	"github.com/openroad/roadassist/internal/eventbus"
)

// Reactor consumes lifecycle events from the bus and performs the side
// effects that must never run inside a transition: rider notifications,
// releasing the mechanic when a job ends, and charging on completion.
type Reactor struct {
	bus      eventbus.EventBus
	store    breakdown.Store
	reserver Reserver
	notifier notify.Notifier
	payments payment.Gateway
	log      logger.Logger
}

// NewReactor wires the reactor. Payments may be nil when charging is
// disabled.
func NewReactor(bus eventbus.EventBus, store breakdown.Store, r Reserver, n notify.Notifier, p payment.Gateway, log logger.Logger) *Reactor {
	if log == nil {
		log = infralog.NopLogger{}
	}
	return &Reactor{bus: bus, store: store, reserver: r, notifier: n, payments: p, log: log}
}

// Run consumes the bus until the context ends or the bus closes.
func (r *Reactor) Run(ctx context.Context) {
	sub := r.bus.Subscribe()
	defer sub.Cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-sub.C:
			if !ok {
				return
			}
			if sc, isStatus := e.(events.StatusChanged); isStatus {
				r.onStatusChanged(ctx, sc)
			}
		}
	}
}

func (r *Reactor) onStatusChanged(ctx context.Context, sc events.StatusChanged) {
	if r.notifier != nil && sc.To != model.StatusAccepted {
		// Acceptance already carries its own richer notification.
		if err := r.notifier.NotifyRider(ctx, sc.RiderID, "status_"+string(sc.To), sc); err != nil {
			r.log.Warnf("reactor %s: rider notify failed: %v", sc.Number, err)
		}
	}

	if !sc.To.Terminal() {
		return
	}
	if sc.MechanicID != "" {
		err := r.reserver.Release(sc.MechanicID, model.MechanicOnline)
		if err != nil && !errors.Is(err, availability.ErrNotReserved) {
			r.log.Warnf("reactor %s: release of %s failed: %v", sc.Number, sc.MechanicID, err)
		}
	}
	if sc.To == model.StatusCompleted && r.payments != nil {
		r.charge(ctx, sc)
	}
}

func (r *Reactor) charge(ctx context.Context, sc events.StatusChanged) {
	b, err := r.store.Get(sc.BreakdownID)
	if err != nil {
		r.log.Errorf("reactor %s: load for charge failed: %v", sc.Number, err)
		return
	}
	if b.FinalPrice == nil {
		r.log.Errorf("reactor %s: completed without final price", sc.Number)
		return
	}
	ch, err := r.payments.CreateCharge(ctx, payment.ChargeInput{
		BreakdownID: b.ID,
		RiderID:     b.RiderID,
		Amount:      *b.FinalPrice,
		Currency:    "EUR",
	})
	if err != nil {
		r.log.Errorf("reactor %s: charge failed: %v", sc.Number, err)
		return
	}
	r.log.Infof("reactor %s: charge %s created for %.2f", sc.Number, ch.ID, *b.FinalPrice)
}
