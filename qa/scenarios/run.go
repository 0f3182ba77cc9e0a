package scenarios

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/openroad/roadassist/core/availability"
	"github.com/openroad/roadassist/core/breakdown"
	"github.com/openroad/roadassist/core/dispatch"
	"github.com/openroad/roadassist/core/dispatch/logging"
	"github.com/openroad/roadassist/core/geo"
	"github.com/openroad/roadassist/core/model"
	"github.com/openroad/roadassist/core/notify"
	"github.com/openroad/roadassist/internal/eventbus"
)

type memAudit struct {
	mu   sync.Mutex
	recs []logging.RoundRecord
}

func (s *memAudit) Append(_ context.Context, rec logging.RoundRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = append(s.recs, rec)
	return nil
}

func (s *memAudit) Query(_ context.Context, q logging.LogQuery) ([]logging.RoundRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []logging.RoundRecord
	for _, r := range s.recs {
		if q.Matches(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memAudit) Close() error { return nil }

// RunScenario builds a fresh engine, plays the scenario's fleet against one
// submitted breakdown and asserts the expected terminal state.
func RunScenario(t *testing.T, sc *Scenario) {
	t.Helper()

	index := geo.NewIndex()
	avail := availability.NewManager(index)
	store := breakdown.NewMemoryStore()
	bus := eventbus.New()
	defer bus.Close()
	machine := breakdown.NewMachine(store, bus, nil)
	audit := &memAudit{}

	byID := make(map[string]MechanicDef, len(sc.Mechanics))
	for _, def := range sc.Mechanics {
		m, err := def.ToModel()
		if err != nil {
			t.Fatalf("mechanic %s: %v", def.ID, err)
		}
		if _, err := avail.Register(m); err != nil {
			t.Fatalf("register %s: %v", def.ID, err)
		}
		byID[def.ID] = def
	}

	notif := notify.NewMock()
	coord, err := dispatch.NewCoordinator(sc.Dispatch, dispatch.Deps{
		Index:    index,
		Reserver: avail,
		Machine:  machine,
		Store:    store,
		Notifier: notif,
		Bus:      bus,
		Audit:    audit,
	})
	if err != nil {
		t.Fatalf("coordinator: %v", err)
	}
	defer coord.Close()

	notif.OnOffer = func(offer notify.Offer) {
		def, ok := byID[offer.MechanicID]
		if !ok || def.IgnoreIt {
			return
		}
		time.Sleep(def.Delay())
		if def.Accept {
			_, _ = coord.Accept(context.Background(), offer.BreakdownID, offer.MechanicID)
		} else {
			_ = coord.Decline(offer.BreakdownID, offer.MechanicID)
		}
	}

	b, err := coord.Submit(context.Background(), dispatch.SubmitInput{
		RiderID:   sc.Breakdown.RiderID,
		Latitude:  sc.Breakdown.Lat,
		Longitude: sc.Breakdown.Lng,
		Category:  model.EmergencyCategory(sc.Breakdown.Category),
		Address:   sc.Breakdown.Address,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	want := model.BreakdownStatus(sc.Expected.Status)
	got := waitForStatus(t, store, b.ID, want, scenarioDeadline(sc))

	if sc.Expected.AssignedTo != "" {
		if got.MechanicID == nil || *got.MechanicID != sc.Expected.AssignedTo {
			t.Errorf("scenario %s: expected assignment to %s, got %v", sc.Name, sc.Expected.AssignedTo, got.MechanicID)
		}
	}
	if sc.Expected.CancelReason != "" {
		if got.CancelReason == nil || *got.CancelReason != sc.Expected.CancelReason {
			t.Errorf("scenario %s: expected cancel reason %q, got %v", sc.Name, sc.Expected.CancelReason, got.CancelReason)
		}
	}
	if sc.Expected.MinRounds > 0 {
		recs, _ := audit.Query(context.Background(), logging.LogQuery{BreakdownID: b.ID})
		if len(recs) < sc.Expected.MinRounds {
			t.Errorf("scenario %s: expected at least %d rounds, got %d", sc.Name, sc.Expected.MinRounds, len(recs))
		}
	}
}

// scenarioDeadline bounds the wait by the worst case: every round runs its
// full ack window, plus slack for scheduling.
func scenarioDeadline(sc *Scenario) time.Duration {
	cfg := sc.Dispatch
	cfg.SetDefaults()
	rounds := time.Duration(cfg.MaxRetries+1) * cfg.AckWindow()
	return rounds + 3*time.Second
}

func waitForStatus(t *testing.T, store breakdown.Store, id string, want model.BreakdownStatus, timeout time.Duration) model.Breakdown {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		b, err := store.Get(id)
		if err != nil {
			t.Fatalf("get %s: %v", id, err)
		}
		if b.Status == want {
			return b
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s, stuck at %s", want, b.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
