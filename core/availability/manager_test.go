package availability

import (
	"sync"
	"testing"
	"time"

	"github.com/openroad/roadassist/core/model"
)

func register(t *testing.T, mgr *Manager, id string, status model.MechanicStatus) {
	t.Helper()
	if _, err := mgr.Register(model.Mechanic{ID: id, UserID: "u-" + id, Status: status}); err != nil {
		t.Fatalf("register %s: %v", id, err)
	}
}

func TestTryReserve_OnlineOnly(t *testing.T) {
	mgr := NewManager(nil)
	register(t, mgr, "m1", model.MechanicOffline)
	if err := mgr.TryReserve("m1"); err != ErrNotReservable {
		t.Fatalf("reserve offline: got %v, want ErrNotReservable", err)
	}
	if _, err := mgr.SetStatus("m1", model.MechanicOnline); err != nil {
		t.Fatalf("set online: %v", err)
	}
	if err := mgr.TryReserve("m1"); err != nil {
		t.Fatalf("reserve online: %v", err)
	}
	if err := mgr.TryReserve("m1"); err != ErrNotReservable {
		t.Fatalf("second reserve: got %v, want ErrNotReservable", err)
	}
}

func TestTryReserve_ConcurrentSingleWinner(t *testing.T) {
	mgr := NewManager(nil)
	register(t, mgr, "m1", model.MechanicOnline)

	const attempts = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := mgr.TryReserve("m1"); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("got %d winners, want exactly 1", wins)
	}
	m, _ := mgr.Get("m1")
	if m.Status != model.MechanicBusy || m.IsOnline {
		t.Fatalf("state after reserve: %+v", m)
	}
}

func TestRelease_RoundTrip(t *testing.T) {
	mgr := NewManager(nil)
	register(t, mgr, "m1", model.MechanicOnline)
	if err := mgr.Release("m1", model.MechanicOnline); err != ErrNotReserved {
		t.Fatalf("release unreserved: got %v", err)
	}
	if err := mgr.TryReserve("m1"); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := mgr.Release("m1", model.MechanicOnline); err != nil {
		t.Fatalf("release: %v", err)
	}
	// Reservable again after release.
	if err := mgr.TryReserve("m1"); err != nil {
		t.Fatalf("re-reserve after release: %v", err)
	}
}

func TestSetStatus_BusyIsEngineOwned(t *testing.T) {
	mgr := NewManager(nil)
	register(t, mgr, "m1", model.MechanicOnline)
	if _, err := mgr.SetStatus("m1", model.MechanicBusy); err != ErrReservedByEngine {
		t.Fatalf("set busy: got %v", err)
	}
	if err := mgr.TryReserve("m1"); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if _, err := mgr.SetStatus("m1", model.MechanicOffline); err != ErrReservedByEngine {
		t.Fatalf("leave busy via SetStatus: got %v", err)
	}
}

func TestRegister_BusySurvivesReRegistration(t *testing.T) {
	rec := &recordingSync{}
	mgr := NewManager(rec)
	register(t, mgr, "m1", model.MechanicOnline)
	if err := mgr.TryReserve("m1"); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	// The mechanic's app restarts mid-job and re-registers.
	m, err := mgr.Register(model.Mechanic{ID: "m1", UserID: "u-m1", Name: "after restart", Status: model.MechanicOnline})
	if err != nil {
		t.Fatalf("re-register: %v", err)
	}
	if m.Status != model.MechanicBusy || m.IsOnline {
		t.Fatalf("re-registration cleared the reservation: %+v", m)
	}
	if m.Name != "after restart" {
		t.Fatalf("profile update lost: %+v", m)
	}
	if err := mgr.TryReserve("m1"); err != ErrNotReservable {
		t.Fatalf("a reserved mechanic must not be reservable again, got %v", err)
	}
	if rec.available["m1"] {
		t.Fatal("reserved mechanic re-entered the index")
	}
	if err := mgr.Release("m1", model.MechanicOnline); err != nil {
		t.Fatalf("release after re-registration: %v", err)
	}
}

func TestRegister_RejectsBusyStatus(t *testing.T) {
	mgr := NewManager(nil)
	if _, err := mgr.Register(model.Mechanic{ID: "m1", Status: model.MechanicBusy}); err != ErrReservedByEngine {
		t.Fatalf("register busy: got %v, want ErrReservedByEngine", err)
	}
}

type recordingSync struct {
	NopSync
	mu        sync.Mutex
	available map[string]bool
}

func (r *recordingSync) SetAvailable(id string, av bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.available == nil {
		r.available = map[string]bool{}
	}
	r.available[id] = av
}

func TestManager_SyncsIndexAvailability(t *testing.T) {
	rec := &recordingSync{}
	mgr := NewManager(rec)
	register(t, mgr, "m1", model.MechanicOnline)
	if !rec.available["m1"] {
		t.Fatal("register online should mark available")
	}
	if err := mgr.TryReserve("m1"); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if rec.available["m1"] {
		t.Fatal("reserved mechanic must leave the index")
	}
	if err := mgr.Release("m1", model.MechanicOnline); err != nil {
		t.Fatalf("release: %v", err)
	}
	if !rec.available["m1"] {
		t.Fatal("released mechanic should be queryable again")
	}
}

func TestUpdateLocation(t *testing.T) {
	mgr := NewManager(nil)
	register(t, mgr, "m1", model.MechanicOnline)
	at := time.Now()
	m, err := mgr.UpdateLocation("m1", 48.85, 2.35, at)
	if err != nil {
		t.Fatalf("update location: %v", err)
	}
	if m.Latitude != 48.85 || m.Longitude != 2.35 || !m.ObservedAt.Equal(at) {
		t.Fatalf("location not recorded: %+v", m)
	}
	if _, err := mgr.UpdateLocation("m1", 91, 0, at); err == nil {
		t.Fatal("invalid latitude accepted")
	}
	if _, err := mgr.UpdateLocation("ghost", 0, 0, at); err != ErrUnknownMechanic {
		t.Fatalf("unknown mechanic: got %v", err)
	}
}

func TestList_Filter(t *testing.T) {
	mgr := NewManager(nil)
	v := true
	if _, err := mgr.Register(model.Mechanic{ID: "a", Status: model.MechanicOnline, Skills: []string{"ENGINE"}, Verified: true}); err != nil {
		t.Fatal(err)
	}
	if _, err := mgr.Register(model.Mechanic{ID: "b", Status: model.MechanicOffline}); err != nil {
		t.Fatal(err)
	}
	out := mgr.List(Filter{Status: model.MechanicOnline})
	if len(out) != 1 || out[0].ID != "a" {
		t.Fatalf("status filter: %#v", out)
	}
	out = mgr.List(Filter{Skill: "ENGINE", Verified: &v})
	if len(out) != 1 || out[0].ID != "a" {
		t.Fatalf("skill+verified filter: %#v", out)
	}
	if got := mgr.List(Filter{}); len(got) != 2 || got[0].ID != "a" {
		t.Fatalf("list all sorted: %#v", got)
	}
}
