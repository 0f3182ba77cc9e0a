// Package dispute implements the escalation workflow: riders and mechanics
// raise disputes against a breakdown, admins resolve or close them.
// Resolution never mutates the breakdown itself.
package dispute

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/openroad/roadassist/core/model"
)

var (
	// ErrNotFound is returned for unknown dispute ids.
	ErrNotFound = errors.New("dispute not found")
	// ErrAlreadyResolved is returned when resolving a dispute that already
	// left OPEN.
	ErrAlreadyResolved = errors.New("dispute already resolved")
)

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Status    model.DisputeStatus
	Priority  model.DisputePriority
	RelatedID string
	RaisedBy  string
	Page      int
	Limit     int
}

// Store persists disputes.
type Store interface {
	Create(ctx context.Context, d model.Dispute) (model.Dispute, error)
	Get(ctx context.Context, id string) (model.Dispute, error)
	// Resolve moves an OPEN dispute to final, returning ErrAlreadyResolved
	// when the dispute is no longer open.
	Resolve(ctx context.Context, id string, final model.DisputeStatus, resolution, resolvedBy string) (model.Dispute, error)
	List(ctx context.Context, f Filter) ([]model.Dispute, int, error)
	Close() error
}

// MemoryStore is the in-memory Store used in tests and single-node runs
// without persistence.
type MemoryStore struct {
	mu   sync.Mutex
	recs map[string]model.Dispute
	seq  int
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{recs: make(map[string]model.Dispute)}
}

func (s *MemoryStore) Create(_ context.Context, d model.Dispute) (model.Dispute, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.recs[d.ID]; exists {
		return model.Dispute{}, fmt.Errorf("dispute %s already exists", d.ID)
	}
	s.seq++
	if d.Number == "" {
		d.Number = fmt.Sprintf("DSP-%06d", s.seq)
	}
	s.recs[d.ID] = d
	return d, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (model.Dispute, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.recs[id]
	if !ok {
		return model.Dispute{}, ErrNotFound
	}
	return d, nil
}

func (s *MemoryStore) Resolve(_ context.Context, id string, final model.DisputeStatus, resolution, resolvedBy string) (model.Dispute, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.recs[id]
	if !ok {
		return model.Dispute{}, ErrNotFound
	}
	if d.Status != model.DisputeOpen {
		return model.Dispute{}, ErrAlreadyResolved
	}
	now := time.Now()
	d.Status = final
	d.Resolution = resolution
	d.ResolvedBy = resolvedBy
	d.ResolvedAt = &now
	s.recs[id] = d
	return d, nil
}

func (s *MemoryStore) List(_ context.Context, f Filter) ([]model.Dispute, int, error) {
	s.mu.Lock()
	var all []model.Dispute
	for _, d := range s.recs {
		if matches(f, d) {
			all = append(all, d)
		}
	}
	s.mu.Unlock()

	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return paginate(all, f.Page, f.Limit)
}

func (s *MemoryStore) Close() error { return nil }

func matches(f Filter, d model.Dispute) bool {
	if f.Status != "" && d.Status != f.Status {
		return false
	}
	if f.Priority != "" && d.Priority != f.Priority {
		return false
	}
	if f.RelatedID != "" && d.RelatedID != f.RelatedID {
		return false
	}
	if f.RaisedBy != "" && d.RaisedBy != f.RaisedBy {
		return false
	}
	return true
}

func paginate(all []model.Dispute, page, limit int) ([]model.Dispute, int, error) {
	total := len(all)
	if limit <= 0 {
		limit = 20
	}
	if page <= 0 {
		page = 1
	}
	start := (page - 1) * limit
	if start >= total {
		return nil, total, nil
	}
	end := start + limit
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}
