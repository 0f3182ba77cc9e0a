// Package breakdown holds the breakdown request store and the status state
// machine that validates and applies lifecycle transitions.
package breakdown

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openroad/roadassist/core/model"
)

var (
	// ErrNotFound is returned for ids the store has never seen.
	ErrNotFound = errors.New("breakdown not found")
	// ErrStatusChanged is returned when a compare-and-set update observes
	// a different status than expected. The caller lost a race.
	ErrStatusChanged = errors.New("breakdown status changed concurrently")
	// ErrTerminal is returned for mutations of COMPLETED or CANCELLED
	// records, which are immutable.
	ErrTerminal = errors.New("breakdown is in a terminal state")
)

// Filter narrows List results. Zero values match everything.
type Filter struct {
	RiderID    string
	MechanicID string
	Status     model.BreakdownStatus
	Page       int
	Limit      int
}

// Store persists breakdown requests. All status mutations go through
// UpdateIf so transitions are atomic compare-and-set operations keyed by
// the expected prior status.
type Store interface {
	Create(b model.Breakdown) (model.Breakdown, error)
	Get(id string) (model.Breakdown, error)
	// UpdateIf applies mutate only while the record's status equals
	// expect, returning ErrStatusChanged otherwise.
	UpdateIf(id string, expect model.BreakdownStatus, mutate func(*model.Breakdown)) (model.Breakdown, error)
	// Update applies mutate to a non-terminal record under the store lock.
	Update(id string, mutate func(*model.Breakdown) error) (model.Breakdown, error)
	List(f Filter) ([]model.Breakdown, int)
	// Searching returns the ids of records currently in SEARCHING,
	// oldest first. Used by the dispatch sweeper.
	Searching() []string
}

// MemoryStore is the in-memory Store implementation. Records are guarded
// per entry so unrelated breakdowns never contend.
type MemoryStore struct {
	mu   sync.RWMutex
	recs map[string]*record
	seq  int
}

type record struct {
	mu sync.Mutex
	b  model.Breakdown
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{recs: make(map[string]*record)}
}

// Create assigns the id and display number and stores the record.
func (s *MemoryStore) Create(b model.Breakdown) (model.Breakdown, error) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	now := time.Now()
	if b.RequestedAt.IsZero() {
		b.RequestedAt = now
	}
	b.UpdatedAt = now

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.recs[b.ID]; exists {
		return model.Breakdown{}, fmt.Errorf("breakdown %s already exists", b.ID)
	}
	s.seq++
	if b.Number == "" {
		b.Number = fmt.Sprintf("BRK-%06d", s.seq)
	}
	s.recs[b.ID] = &record{b: b}
	return b, nil
}

func (s *MemoryStore) rec(id string) (*record, error) {
	s.mu.RLock()
	r, ok := s.recs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return r, nil
}

// Get returns a copy of the record.
func (s *MemoryStore) Get(id string) (model.Breakdown, error) {
	r, err := s.rec(id)
	if err != nil {
		return model.Breakdown{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.b, nil
}

// UpdateIf implements the compare-and-set contract.
func (s *MemoryStore) UpdateIf(id string, expect model.BreakdownStatus, mutate func(*model.Breakdown)) (model.Breakdown, error) {
	r, err := s.rec(id)
	if err != nil {
		return model.Breakdown{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.b.Status != expect {
		return model.Breakdown{}, fmt.Errorf("%w: expected %s, found %s", ErrStatusChanged, expect, r.b.Status)
	}
	mutate(&r.b)
	r.b.UpdatedAt = time.Now()
	return r.b, nil
}

// Update applies mutate under the record lock, rejecting terminal records.
func (s *MemoryStore) Update(id string, mutate func(*model.Breakdown) error) (model.Breakdown, error) {
	r, err := s.rec(id)
	if err != nil {
		return model.Breakdown{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.b.Status.Terminal() {
		return model.Breakdown{}, ErrTerminal
	}
	if err := mutate(&r.b); err != nil {
		return model.Breakdown{}, err
	}
	r.b.UpdatedAt = time.Now()
	return r.b, nil
}

// List returns the page of matching records, newest first, plus the total
// match count before pagination.
func (s *MemoryStore) List(f Filter) ([]model.Breakdown, int) {
	s.mu.RLock()
	recs := make([]*record, 0, len(s.recs))
	for _, r := range s.recs {
		recs = append(recs, r)
	}
	s.mu.RUnlock()

	var all []model.Breakdown
	for _, r := range recs {
		r.mu.Lock()
		b := r.b
		r.mu.Unlock()
		if f.RiderID != "" && b.RiderID != f.RiderID {
			continue
		}
		if f.MechanicID != "" && (b.MechanicID == nil || *b.MechanicID != f.MechanicID) {
			continue
		}
		if f.Status != "" && b.Status != f.Status {
			continue
		}
		all = append(all, b)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].RequestedAt.After(all[j].RequestedAt) })

	total := len(all)
	page, limit := f.Page, f.Limit
	if limit <= 0 {
		limit = 20
	}
	if page <= 0 {
		page = 1
	}
	start := (page - 1) * limit
	if start >= total {
		return nil, total
	}
	end := start + limit
	if end > total {
		end = total
	}
	return all[start:end], total
}

// Searching returns ids of records in SEARCHING, oldest first.
func (s *MemoryStore) Searching() []string {
	s.mu.RLock()
	recs := make([]*record, 0, len(s.recs))
	for _, r := range s.recs {
		recs = append(recs, r)
	}
	s.mu.RUnlock()

	type stuck struct {
		id string
		at time.Time
	}
	var out []stuck
	for _, r := range recs {
		r.mu.Lock()
		if r.b.Status == model.StatusSearching {
			out = append(out, stuck{id: r.b.ID, at: r.b.RequestedAt})
		}
		r.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].at.Before(out[j].at) })
	ids := make([]string, len(out))
	for i, s := range out {
		ids[i] = s.id
	}
	return ids
}
