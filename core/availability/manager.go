// Package availability owns each mechanic's ONLINE/OFFLINE/BUSY state and
// enforces the one-active-job exclusivity gate used by the dispatch
// coordinator.
package availability

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/openroad/roadassist/core/model"
)

var (
	// ErrUnknownMechanic is returned for ids that were never registered.
	ErrUnknownMechanic = errors.New("unknown mechanic")
	// ErrNotReservable is returned when TryReserve finds the mechanic in
	// any state other than ONLINE.
	ErrNotReservable = errors.New("mechanic already reserved or offline")
	// ErrNotReserved is returned when Release finds the mechanic not BUSY.
	ErrNotReserved = errors.New("mechanic is not reserved")
	// ErrReservedByEngine is returned when a caller tries to enter or
	// leave BUSY through SetStatus. Reservations belong to the engine.
	ErrReservedByEngine = errors.New("busy state is managed by the dispatch engine")
)

// Sync receives availability and position updates so the geospatial index
// stays consistent with the manager.
type Sync interface {
	Upsert(mechanicID string, lat, lng float64, observedAt time.Time)
	SetAvailable(mechanicID string, available bool)
	SetSkills(mechanicID string, skills []string)
	Remove(mechanicID string)
}

// NopSync discards updates. Used by tests that do not exercise the index.
type NopSync struct{}

func (NopSync) Upsert(string, float64, float64, time.Time) {}
func (NopSync) SetAvailable(string, bool)                  {}
func (NopSync) SetSkills(string, []string)                 {}
func (NopSync) Remove(string)                              {}

type slot struct {
	mu sync.Mutex
	m  model.Mechanic
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Status   model.MechanicStatus
	Skill    string
	Verified *bool
}

// Manager is the in-memory availability store. Reservation and release are
// linearizable per mechanic: each slot carries its own mutex, so two
// concurrent TryReserve calls for one mechanic yield exactly one success
// and unrelated mechanics never contend.
type Manager struct {
	mu    sync.RWMutex
	slots map[string]*slot
	sync_ Sync
}

// NewManager creates a Manager that mirrors availability into sync.
func NewManager(s Sync) *Manager {
	if s == nil {
		s = NopSync{}
	}
	return &Manager{slots: make(map[string]*slot), sync_: s}
}

// Register adds a mechanic record or updates the profile of an existing
// one. Status defaults to OFFLINE for new records. Re-registration never
// touches a BUSY status: a mechanic whose app restarts mid-job stays
// reserved until the engine releases them.
func (mgr *Manager) Register(m model.Mechanic) (model.Mechanic, error) {
	if m.ID == "" {
		return model.Mechanic{}, errors.New("mechanic id required")
	}
	if err := model.ValidateCoordinates(m.Latitude, m.Longitude); err != nil {
		return model.Mechanic{}, err
	}
	if m.Status == "" {
		m.Status = model.MechanicOffline
	}
	if m.Status == model.MechanicBusy {
		return model.Mechanic{}, ErrReservedByEngine
	}
	m.IsOnline = m.Status == model.MechanicOnline
	if m.ObservedAt.IsZero() {
		m.ObservedAt = time.Now()
	}

	mgr.mu.Lock()
	s, exists := mgr.slots[m.ID]
	if !exists {
		s = &slot{m: m}
		mgr.slots[m.ID] = s
	}
	mgr.mu.Unlock()

	if exists {
		s.mu.Lock()
		if s.m.Status == model.MechanicBusy {
			m.Status = model.MechanicBusy
			m.IsOnline = false
		}
		s.m = m
		s.mu.Unlock()
	}

	mgr.sync_.Upsert(m.ID, m.Latitude, m.Longitude, m.ObservedAt)
	mgr.sync_.SetSkills(m.ID, m.Skills)
	mgr.sync_.SetAvailable(m.ID, m.IsOnline)
	return m, nil
}

// Deactivate takes the mechanic out of the index for good. The record is
// kept so historic breakdowns still resolve the reference.
func (mgr *Manager) Deactivate(id string) error {
	s, err := mgr.slot(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.m.Status = model.MechanicOffline
	s.m.IsOnline = false
	s.mu.Unlock()
	mgr.sync_.Remove(id)
	return nil
}

func (mgr *Manager) slot(id string) (*slot, error) {
	mgr.mu.RLock()
	s, ok := mgr.slots[id]
	mgr.mu.RUnlock()
	if !ok {
		return nil, ErrUnknownMechanic
	}
	return s, nil
}

// Get returns a copy of the mechanic record.
func (mgr *Manager) Get(id string) (model.Mechanic, error) {
	s, err := mgr.slot(id)
	if err != nil {
		return model.Mechanic{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m, nil
}

// SetStatus moves the mechanic between ONLINE and OFFLINE. Entering or
// leaving BUSY this way is rejected; reservations go through TryReserve
// and Release.
func (mgr *Manager) SetStatus(id string, status model.MechanicStatus) (model.Mechanic, error) {
	if status == model.MechanicBusy {
		return model.Mechanic{}, ErrReservedByEngine
	}
	s, err := mgr.slot(id)
	if err != nil {
		return model.Mechanic{}, err
	}
	s.mu.Lock()
	if s.m.Status == model.MechanicBusy {
		s.mu.Unlock()
		return model.Mechanic{}, ErrReservedByEngine
	}
	s.m.Status = status
	s.m.IsOnline = status == model.MechanicOnline
	m := s.m
	s.mu.Unlock()

	mgr.sync_.SetAvailable(id, m.IsOnline)
	return m, nil
}

// TryReserve atomically transitions the mechanic from ONLINE to BUSY.
// This is the exclusivity gate: of N concurrent attempts exactly one
// succeeds, the rest observe ErrNotReservable.
func (mgr *Manager) TryReserve(id string) error {
	s, err := mgr.slot(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	if s.m.Status != model.MechanicOnline {
		s.mu.Unlock()
		return ErrNotReservable
	}
	s.m.Status = model.MechanicBusy
	s.m.IsOnline = false
	s.mu.Unlock()

	mgr.sync_.SetAvailable(id, false)
	return nil
}

// Release transitions the mechanic from BUSY back to next (ONLINE or
// OFFLINE), invoked when a breakdown reaches a terminal state or an offer
// round ends without this mechanic.
func (mgr *Manager) Release(id string, next model.MechanicStatus) error {
	if next == model.MechanicBusy {
		return ErrReservedByEngine
	}
	s, err := mgr.slot(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	if s.m.Status != model.MechanicBusy {
		s.mu.Unlock()
		return ErrNotReserved
	}
	s.m.Status = next
	s.m.IsOnline = next == model.MechanicOnline
	s.mu.Unlock()

	mgr.sync_.SetAvailable(id, next == model.MechanicOnline)
	return nil
}

// UpdateLocation records a position ping and forwards it to the index.
func (mgr *Manager) UpdateLocation(id string, lat, lng float64, observedAt time.Time) (model.Mechanic, error) {
	if err := model.ValidateCoordinates(lat, lng); err != nil {
		return model.Mechanic{}, err
	}
	s, err := mgr.slot(id)
	if err != nil {
		return model.Mechanic{}, err
	}
	s.mu.Lock()
	s.m.Latitude, s.m.Longitude, s.m.ObservedAt = lat, lng, observedAt
	m := s.m
	s.mu.Unlock()

	mgr.sync_.Upsert(id, lat, lng, observedAt)
	return m, nil
}

// List returns mechanics matching the filter, sorted by id.
func (mgr *Manager) List(f Filter) []model.Mechanic {
	mgr.mu.RLock()
	slots := make([]*slot, 0, len(mgr.slots))
	for _, s := range mgr.slots {
		slots = append(slots, s)
	}
	mgr.mu.RUnlock()

	var out []model.Mechanic
	for _, s := range slots {
		s.mu.Lock()
		m := s.m
		s.mu.Unlock()
		if f.Status != "" && m.Status != f.Status {
			continue
		}
		if f.Skill != "" && !m.HasSkill(f.Skill) {
			continue
		}
		if f.Verified != nil && m.Verified != *f.Verified {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
