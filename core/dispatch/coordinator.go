// Package dispatch implements the offer/acceptance engine that matches a
// searching breakdown with one mechanic. Each active search runs its own
// round loop goroutine; acceptance, decline and cancellation arrive
// concurrently from the API and are settled by compare-and-set operations
// on the breakdown store and the availability manager.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openroad/roadassist/core/apperr"
	"github.com/openroad/roadassist/core/breakdown"
	"github.com/openroad/roadassist/core/dispatch/logging"
	"github.com/openroad/roadassist/core/events"
	"github.com/openroad/roadassist/core/geo"
	"github.com/openroad/roadassist/core/logger"
	"github.com/openroad/roadassist/core/metrics"
	"github.com/openroad/roadassist/core/model"
	"github.com/openroad/roadassist/core/notify"
	"github.com/openroad/roadassist/core/pricing"
	infralog "github.com/openroad/roadassist/infra/logger"
	"github.com/openroad/roadassist/internal/eventbus"
)

// ReasonNoMechanic is the cancellation reason recorded when every round is
// exhausted without an acceptance.
const ReasonNoMechanic = "no mechanic available"

var (
	// ErrNoOffer is returned when a mechanic responds to an offer that was
	// never sent, already expired, or belongs to a finished round.
	ErrNoOffer = errors.New("no outstanding offer for this mechanic")
	// ErrAlreadyAssigned is returned when the breakdown was accepted by
	// another mechanic first.
	ErrAlreadyAssigned = errors.New("breakdown already assigned")
	// ErrAlreadyCancelled is returned when the breakdown was cancelled
	// before the call took effect.
	ErrAlreadyCancelled = errors.New("breakdown already cancelled")
	// ErrNotCancellable is returned when a rider cancel arrives after a
	// mechanic was assigned.
	ErrNotCancellable = errors.New("breakdown can no longer be cancelled by the rider")
)

// CandidateSource yields mechanics near a point. Satisfied by *geo.Index.
type CandidateSource interface {
	QueryNearby(q geo.Query) []geo.Candidate
}

// Reserver is the mechanic exclusivity gate. Satisfied by
// *availability.Manager.
type Reserver interface {
	TryReserve(id string) error
	Release(id string, next model.MechanicStatus) error
}

// SubmitInput is a new breakdown request from a rider.
type SubmitInput struct {
	RiderID   string
	Latitude  float64
	Longitude float64
	Address   string
	Category  model.EmergencyCategory
	Notes     string
	PhotoIDs  []string
}

const (
	offerSent        = "sent"
	offerAccepted    = "accepted"
	offerDeclined    = "declined"
	offerExpired     = "expired"
	offerInvalidated = "invalidated"
)

type offerState struct {
	id         string
	mechanicID string
	distanceKm float64
	sentAt     time.Time
	expiresAt  time.Time
	state      string
	latency    time.Duration
}

// search tracks the in-flight round loop of one breakdown. The round loop
// goroutine blocks on the channels; Accept, Decline and Cancel flip offer
// states under mu and signal it.
type search struct {
	breakdownID string

	mu          sync.Mutex
	offers      map[string]*offerState // keyed by mechanic id
	outstanding int
	resolved    bool

	accepted    chan string // winner mechanic id, buffered 1
	cancelled   chan struct{}
	cancelOnce  sync.Once
	declinedAll chan struct{} // buffered 1
}

func newSearch(breakdownID string) *search {
	return &search{
		breakdownID: breakdownID,
		offers:      make(map[string]*offerState),
		accepted:    make(chan string, 1),
		cancelled:   make(chan struct{}),
		declinedAll: make(chan struct{}, 1),
	}
}

func (s *search) signalCancel() {
	s.cancelOnce.Do(func() { close(s.cancelled) })
}

// Deps bundles the coordinator's collaborators. Estimator and the sinks are
// optional; everything else is required.
type Deps struct {
	Index    CandidateSource
	Reserver Reserver
	Machine  *breakdown.Machine
	Store    breakdown.Store
	Notifier notify.Notifier
	Bus      eventbus.EventBus
	Logger   logger.Logger
	Sink     metrics.MetricsSink
	Audit    logging.LogStore
	Pricer   pricing.Estimator
}

// Coordinator runs the dispatch engine.
type Coordinator struct {
	cfg   Config
	index CandidateSource
	resv  Reserver
	mach  *breakdown.Machine
	store breakdown.Store
	notif notify.Notifier
	bus   eventbus.EventBus
	log   logger.Logger
	sink  metrics.MetricsSink
	audit logging.LogStore
	price pricing.Estimator

	mu     sync.Mutex
	active map[string]*search

	wg      sync.WaitGroup
	stop    chan struct{}
	stopped sync.Once
}

// NewCoordinator validates the dependencies and returns a ready coordinator.
func NewCoordinator(cfg Config, d Deps) (*Coordinator, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if d.Index == nil || d.Reserver == nil || d.Machine == nil || d.Store == nil || d.Notifier == nil {
		return nil, errors.New("dispatch: index, reserver, machine, store and notifier are required")
	}
	if d.Logger == nil {
		d.Logger = infralog.NopLogger{}
	}
	if d.Sink == nil {
		d.Sink = metrics.NopSink{}
	}
	if d.Audit == nil {
		d.Audit = logging.NopStore{}
	}
	return &Coordinator{
		cfg:    cfg,
		index:  d.Index,
		resv:   d.Reserver,
		mach:   d.Machine,
		store:  d.Store,
		notif:  d.Notifier,
		bus:    d.Bus,
		log:    d.Logger,
		sink:   d.Sink,
		audit:  d.Audit,
		price:  d.Pricer,
		active: make(map[string]*search),
		stop:   make(chan struct{}),
	}, nil
}

// Close stops every round loop and waits for them to return. Breakdowns
// still in SEARCHING stay there and are resumed by the sweeper after the
// next start.
func (c *Coordinator) Close() {
	c.stopped.Do(func() { close(c.stop) })
	c.wg.Wait()
}

// Submit validates and persists a new breakdown, moves it to SEARCHING and
// starts its round loop.
func (c *Coordinator) Submit(ctx context.Context, in SubmitInput) (model.Breakdown, error) {
	if in.RiderID == "" {
		return model.Breakdown{}, apperr.New(apperr.Validation, "rider id required")
	}
	if err := model.ValidateCoordinates(in.Latitude, in.Longitude); err != nil {
		return model.Breakdown{}, apperr.Wrap(apperr.Validation, err)
	}
	if _, err := model.ParseEmergencyCategory(string(in.Category)); err != nil {
		return model.Breakdown{}, apperr.Wrap(apperr.Validation, err)
	}

	b, err := c.store.Create(model.Breakdown{
		RiderID:   in.RiderID,
		Status:    model.StatusPending,
		Latitude:  in.Latitude,
		Longitude: in.Longitude,
		Address:   in.Address,
		Category:  in.Category,
		Notes:     in.Notes,
		PhotoIDs:  in.PhotoIDs,
	})
	if err != nil {
		return model.Breakdown{}, err
	}
	b, err = c.mach.Transition(b.ID, model.StatusSearching, "system")
	if err != nil {
		return model.Breakdown{}, err
	}
	c.startSearch(b.ID)
	return b, nil
}

// Resume restarts the round loop for a breakdown found in SEARCHING with no
// active search, typically after a restart. It is a no-op when a search is
// already running.
func (c *Coordinator) Resume(id string) error {
	b, err := c.store.Get(id)
	if err != nil {
		return err
	}
	if b.Status != model.StatusSearching {
		return fmt.Errorf("cannot resume %s in %s", id, b.Status)
	}
	c.startSearch(id)
	return nil
}

// ActiveSearches returns the number of running round loops.
func (c *Coordinator) ActiveSearches() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.active)
}

func (c *Coordinator) startSearch(id string) {
	c.mu.Lock()
	if _, running := c.active[id]; running {
		c.mu.Unlock()
		return
	}
	s := newSearch(id)
	c.active[id] = s
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() {
			c.mu.Lock()
			delete(c.active, id)
			c.mu.Unlock()
		}()
		c.runSearch(s)
	}()
}

func (c *Coordinator) activeSearch(id string) *search {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active[id]
}

// runSearch is the round loop: query candidates, send offers, wait for the
// acceptance window, then widen or stop.
func (c *Coordinator) runSearch(s *search) {
	ctx := context.Background()
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		b, err := c.store.Get(s.breakdownID)
		if err != nil {
			c.log.Errorf("dispatch %s: load failed: %v", s.breakdownID, err)
			return
		}
		if b.Status != model.StatusSearching {
			return
		}

		radius := c.cfg.RadiusKm * math.Pow(c.cfg.WidenFactor, float64(attempt))
		q := geo.Query{
			Lat:        b.Latitude,
			Lng:        b.Longitude,
			RadiusKm:   radius,
			MaxResults: c.cfg.MaxCandidates,
		}
		if c.cfg.RequireSkills {
			q.RequiredSkills = []string{string(b.Category)}
		}
		cands := c.index.QueryNearby(q)
		c.publish(events.RoundEvent{
			BreakdownID: s.breakdownID, Attempt: attempt, RadiusKm: radius,
			Candidates: len(cands), Action: "started",
		})

		start := time.Now()
		offered := c.sendOffers(ctx, s, b, cands)

		outcome := "widened"
		acceptedBy := ""
		if len(offered) > 0 {
			timer := time.NewTimer(c.cfg.AckWindow())
			select {
			case mech := <-s.accepted:
				outcome, acceptedBy = "matched", mech
			case <-s.cancelled:
				outcome = "cancelled"
			case <-s.declinedAll:
			case <-timer.C:
			case <-c.stop:
				timer.Stop()
				c.expireOutstanding(ctx, s, start)
				return
			}
			timer.Stop()
		} else {
			// No candidates in range: skip the wait but still honor an
			// early rider cancel.
			select {
			case <-s.cancelled:
				outcome = "cancelled"
			case <-c.stop:
				return
			default:
			}
		}
		rec := logging.RoundRecord{
			Timestamp:   start,
			BreakdownID: b.ID,
			Number:      b.Number,
			Attempt:     attempt,
			RadiusKm:    radius,
			Offered:     offered,
			AcceptedBy:  acceptedBy,
			Outcome:     outcome,
		}
		if outcome == "widened" && attempt == c.cfg.MaxRetries {
			// A terminal business outcome, not a fault: the audit trail
			// carries its taxonomy code.
			rec.Outcome = "exhausted"
			rec.Error = apperr.Unavailable.String()
			outcome = "exhausted"
		}
		c.expireOutstanding(ctx, s, start)
		c.recordRound(ctx, s, b, rec, time.Since(start), len(cands))

		switch outcome {
		case "matched", "cancelled":
			return
		case "exhausted":
			c.exhaust(ctx, s.breakdownID)
			return
		}
	}
}

// sendOffers delivers one offer per candidate and returns the delivered
// set as mechanic id -> distance.
func (c *Coordinator) sendOffers(ctx context.Context, s *search, b model.Breakdown, cands []geo.Candidate) map[string]float64 {
	expires := time.Now().Add(c.cfg.AckWindow())
	offered := make(map[string]float64, len(cands))

	for _, cand := range cands {
		s.mu.Lock()
		prev := s.offers[cand.MechanicID]
		declined := prev != nil && prev.state == offerDeclined
		s.mu.Unlock()
		if declined {
			// A widened round sweeps up earlier candidates again; whoever
			// said no stays out.
			continue
		}
		off := &offerState{
			id:         uuid.NewString(),
			mechanicID: cand.MechanicID,
			distanceKm: cand.DistanceKm,
			sentAt:     time.Now(),
			expiresAt:  expires,
			state:      offerSent,
		}
		err := c.notif.SendOffer(ctx, notify.Offer{
			OfferID:     off.id,
			BreakdownID: b.ID,
			Number:      b.Number,
			MechanicID:  cand.MechanicID,
			Category:    b.Category,
			Latitude:    b.Latitude,
			Longitude:   b.Longitude,
			Address:     b.Address,
			DistanceKm:  cand.DistanceKm,
			ExpiresAt:   expires,
		})
		if err != nil {
			c.log.Warnf("dispatch %s: offer to %s failed: %v", b.Number, cand.MechanicID, err)
			continue
		}
		s.mu.Lock()
		s.offers[cand.MechanicID] = off
		s.outstanding++
		s.mu.Unlock()
		offered[cand.MechanicID] = cand.DistanceKm

		c.publish(events.OfferEvent{
			OfferID: off.id, BreakdownID: b.ID, MechanicID: cand.MechanicID,
			DistanceKm: cand.DistanceKm, ExpiresAt: expires,
		})
	}
	return offered
}

// Accept is the mechanic's acceptance path. The mechanic must hold a live
// offer; exclusivity is taken first via TryReserve and the assignment is a
// compare-and-set on SEARCHING, so exactly one acceptance wins and every
// loser gets a precise error.
func (c *Coordinator) Accept(ctx context.Context, breakdownID, mechanicID string) (model.Breakdown, error) {
	s := c.activeSearch(breakdownID)
	if s == nil {
		return model.Breakdown{}, c.classifyStale(breakdownID)
	}

	s.mu.Lock()
	off := s.offers[mechanicID]
	live := !s.resolved && off != nil && off.state == offerSent
	if live && time.Now().After(off.expiresAt) {
		off.state = offerExpired
		live = false
	}
	s.mu.Unlock()
	if !live {
		// The offer is gone. Report why from the record's actual state,
		// so a loser learns about the assignment or the cancellation
		// rather than a generic miss.
		return model.Breakdown{}, c.classifyStale(breakdownID)
	}

	if err := c.resv.TryReserve(mechanicID); err != nil {
		return model.Breakdown{}, fmt.Errorf("mechanic %s not reservable: %w", mechanicID, err)
	}

	b, err := c.mach.Assign(breakdownID, mechanicID, mechanicID)
	if err != nil {
		if rerr := c.resv.Release(mechanicID, model.MechanicOnline); rerr != nil {
			c.log.Warnf("dispatch %s: release after lost assign failed: %v", breakdownID, rerr)
		}
		if errors.Is(err, breakdown.ErrStatusChanged) {
			return model.Breakdown{}, c.classifyStale(breakdownID)
		}
		return model.Breakdown{}, err
	}

	s.mu.Lock()
	s.resolved = true
	off.state = offerAccepted
	off.latency = time.Since(off.sentAt)
	latency := off.latency
	s.mu.Unlock()
	select {
	case s.accepted <- mechanicID:
	default:
	}

	c.publish(events.OfferOutcome{
		OfferID: off.id, BreakdownID: breakdownID, MechanicID: mechanicID,
		Outcome: offerAccepted, Latency: latency,
	})
	c.invalidateOthers(ctx, s, mechanicID)

	if c.price != nil && b.EstimatedPrice == nil {
		quote := c.price.Estimate(off.distanceKm, b.Category)
		if priced, perr := c.mach.SetEstimate(b.ID, quote, "system"); perr == nil {
			b = priced
		} else {
			c.log.Warnf("dispatch %s: initial estimate failed: %v", b.Number, perr)
		}
	}
	if err := c.notif.NotifyRider(ctx, b.RiderID, "mechanic_assigned", b); err != nil {
		c.log.Warnf("dispatch %s: rider notify failed: %v", b.Number, err)
	}
	c.log.Infof("dispatch %s: accepted by %s after %s", b.Number, mechanicID, latency)
	return b, nil
}

// classifyStale turns a missing or lost search into the precise error the
// responder should see.
func (c *Coordinator) classifyStale(breakdownID string) error {
	b, err := c.store.Get(breakdownID)
	if err != nil {
		return err
	}
	switch {
	case b.Status == model.StatusCancelled:
		return ErrAlreadyCancelled
	case b.Status == model.StatusSearching, b.Status == model.StatusPending:
		return ErrNoOffer
	default:
		return ErrAlreadyAssigned
	}
}

// Decline records a mechanic's refusal. When every offer of the round is
// declined the loop widens immediately instead of waiting out the window.
func (c *Coordinator) Decline(breakdownID, mechanicID string) error {
	s := c.activeSearch(breakdownID)
	if s == nil {
		return c.classifyStale(breakdownID)
	}
	s.mu.Lock()
	off := s.offers[mechanicID]
	if off == nil || off.state != offerSent {
		s.mu.Unlock()
		return ErrNoOffer
	}
	off.state = offerDeclined
	s.outstanding--
	exhaustedRound := s.outstanding == 0 && !s.resolved
	latency := time.Since(off.sentAt)
	s.mu.Unlock()

	if exhaustedRound {
		select {
		case s.declinedAll <- struct{}{}:
		default:
		}
	}
	c.publish(events.OfferOutcome{
		OfferID: off.id, BreakdownID: breakdownID, MechanicID: mechanicID,
		Outcome: offerDeclined, Latency: latency,
	})
	return nil
}

// Cancel is the rider's cancellation path, valid only before assignment.
// The compare-and-set on the current status settles a race with Accept:
// whichever commits first wins and the other side sees a precise error.
func (c *Coordinator) Cancel(ctx context.Context, breakdownID, actor, reason string) (model.Breakdown, error) {
	if reason == "" {
		reason = "cancelled by rider"
	}
	b, err := c.store.Get(breakdownID)
	if err != nil {
		return model.Breakdown{}, err
	}
	switch b.Status {
	case model.StatusPending, model.StatusSearching:
	case model.StatusCancelled:
		return model.Breakdown{}, ErrAlreadyCancelled
	default:
		return model.Breakdown{}, ErrNotCancellable
	}

	cancelled, err := c.mach.CancelIf(breakdownID, b.Status, actor, reason)
	if err != nil {
		if errors.Is(err, breakdown.ErrStatusChanged) {
			return model.Breakdown{}, c.classifyStale(breakdownID)
		}
		return model.Breakdown{}, err
	}

	if s := c.activeSearch(breakdownID); s != nil {
		s.signalCancel()
		c.invalidateOthers(ctx, s, "")
	}
	return cancelled, nil
}

// invalidateOthers voids every still-open offer except the winner's and
// tells those mechanics to drop it.
func (c *Coordinator) invalidateOthers(ctx context.Context, s *search, winner string) {
	type void struct{ mechanicID, offerID string }
	var voids []void

	s.mu.Lock()
	for mech, off := range s.offers {
		if mech == winner || off.state != offerSent {
			continue
		}
		off.state = offerInvalidated
		s.outstanding--
		voids = append(voids, void{mech, off.id})
	}
	s.mu.Unlock()

	for _, v := range voids {
		if err := c.notif.CancelOffer(ctx, v.mechanicID, v.offerID); err != nil {
			c.log.Warnf("dispatch %s: offer cancel to %s failed: %v", s.breakdownID, v.mechanicID, err)
		}
		c.publish(events.OfferOutcome{
			OfferID: v.offerID, BreakdownID: s.breakdownID, MechanicID: v.mechanicID,
			Outcome: offerInvalidated,
		})
	}
}

// expireOutstanding voids offers still open at the end of a round.
func (c *Coordinator) expireOutstanding(ctx context.Context, s *search, roundStart time.Time) {
	type expired struct{ mechanicID, offerID string }
	var exp []expired

	s.mu.Lock()
	for mech, off := range s.offers {
		if off.state != offerSent {
			continue
		}
		off.state = offerExpired
		s.outstanding--
		exp = append(exp, expired{mech, off.id})
	}
	s.mu.Unlock()

	for _, e := range exp {
		if err := c.notif.CancelOffer(ctx, e.mechanicID, e.offerID); err != nil {
			c.log.Warnf("dispatch %s: offer expiry to %s failed: %v", s.breakdownID, e.mechanicID, err)
		}
		c.publish(events.OfferOutcome{
			OfferID: e.offerID, BreakdownID: s.breakdownID, MechanicID: e.mechanicID,
			Outcome: offerExpired, Latency: time.Since(roundStart),
		})
	}
}

// recordRound writes the audit record and feeds the metric sinks.
func (c *Coordinator) recordRound(ctx context.Context, s *search, b model.Breakdown, rec logging.RoundRecord, dur time.Duration, candidates int) {
	if err := c.audit.Append(ctx, rec); err != nil {
		c.log.Errorf("dispatch %s: audit append failed: %v", b.Number, err)
	}
	if rr, ok := c.sink.(metrics.RoundRecorder); ok {
		if err := rr.RecordRound(metrics.RoundResult{
			BreakdownID: b.ID,
			Attempt:     rec.Attempt,
			RadiusKm:    rec.RadiusKm,
			Candidates:  candidates,
			Outcome:     rec.Outcome,
			Duration:    dur,
			Time:        rec.Timestamp,
		}); err != nil {
			c.log.Warnf("dispatch %s: round metric failed: %v", b.Number, err)
		}
	}

	var results []metrics.OfferResult
	s.mu.Lock()
	for mech, off := range s.offers {
		if off.sentAt.Before(rec.Timestamp) {
			continue
		}
		lat := off.latency
		if lat == 0 {
			lat = off.expiresAt.Sub(off.sentAt)
		}
		results = append(results, metrics.OfferResult{
			BreakdownID: b.ID,
			MechanicID:  mech,
			Category:    b.Category,
			DistanceKm:  off.distanceKm,
			Accepted:    off.state == offerAccepted,
			Latency:     lat,
			Time:        off.sentAt,
		})
	}
	s.mu.Unlock()
	if len(results) > 0 {
		if err := c.sink.RecordOfferResults(results); err != nil {
			c.log.Warnf("dispatch %s: offer metrics failed: %v", b.Number, err)
		}
	}

	c.publish(events.RoundEvent{
		BreakdownID: b.ID, Attempt: rec.Attempt, RadiusKm: rec.RadiusKm,
		Candidates: candidates, Action: rec.Outcome,
	})
}

// exhaust cancels a breakdown no round could match.
func (c *Coordinator) exhaust(ctx context.Context, breakdownID string) {
	b, err := c.mach.CancelIf(breakdownID, model.StatusSearching, "system", ReasonNoMechanic)
	if err != nil {
		// A late acceptance or rider cancel landed first.
		if !errors.Is(err, breakdown.ErrStatusChanged) {
			c.log.Errorf("dispatch %s: exhaust cancel failed: %v", breakdownID, err)
		}
		return
	}
	if err := c.notif.NotifyRider(ctx, b.RiderID, "search_exhausted", b); err != nil {
		c.log.Warnf("dispatch %s: rider notify failed: %v", b.Number, err)
	}
	c.log.Infof("dispatch %s: exhausted after %d rounds", b.Number, c.cfg.MaxRetries+1)
}

func (c *Coordinator) publish(e eventbus.Event) {
	if c.bus != nil {
		c.bus.Publish(e)
	}
}
