package dispatch

import (
	"context"
	"time"

	"github.com/openroad/roadassist/core/breakdown"
	"github.com/openroad/roadassist/core/metrics"
)

// Sweeper periodically resumes breakdowns stuck in SEARCHING with no
// running round loop, which happens after a restart or a crashed loop, and
// refreshes the active-search gauge.
type Sweeper struct {
	coord    *Coordinator
	store    breakdown.Store
	interval time.Duration
}

// NewSweeper builds a sweeper over the coordinator's store and interval.
func NewSweeper(c *Coordinator) *Sweeper {
	return &Sweeper{coord: c, store: c.store, interval: c.cfg.SweepInterval()}
}

// Run sweeps until the context ends. The first sweep happens immediately
// so searches interrupted by a restart resume without waiting a full tick.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	s.sweep()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Sweeper) sweep() {
	ids := s.store.Searching()
	for _, id := range ids {
		if err := s.coord.Resume(id); err != nil {
			s.coord.log.Warnf("sweeper: resume %s failed: %v", id, err)
		}
	}
	if g, ok := s.coord.sink.(metrics.SearchGaugeRecorder); ok {
		if err := g.RecordActiveSearches(s.coord.ActiveSearches()); err != nil {
			s.coord.log.Warnf("sweeper: gauge update failed: %v", err)
		}
	}
}
