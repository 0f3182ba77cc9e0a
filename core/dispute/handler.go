package dispute

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/openroad/roadassist/core/apperr"
	"github.com/openroad/roadassist/core/breakdown"
	"github.com/openroad/roadassist/core/events"
	"github.com/openroad/roadassist/core/logger"
	"github.com/openroad/roadassist/core/model"
	infralog "github.com/openroad/roadassist/infra/logger"
	"github.com/openroad/roadassist/internal/eventbus"
)

// RaiseInput is a new dispute from a rider or mechanic.
type RaiseInput struct {
	RelatedID   string
	RelatedType model.RelatedType
	RaisedBy    string
	Reason      string
	Description string
	Priority    model.DisputePriority
}

// ResolveInput closes out an open dispute.
type ResolveInput struct {
	Final      model.DisputeStatus
	Resolution string
	ResolvedBy string
}

// Handler owns the dispute workflow on top of a Store. Raising against a
// breakdown verifies the breakdown exists; resolving touches only the
// dispute record.
type Handler struct {
	store      Store
	breakdowns breakdown.Store
	bus        eventbus.EventBus
	log        logger.Logger
}

// NewHandler wires the workflow. breakdowns may be nil to skip reference
// checks; bus may be nil to skip event publication.
func NewHandler(store Store, breakdowns breakdown.Store, bus eventbus.EventBus, log logger.Logger) *Handler {
	if log == nil {
		log = infralog.NopLogger{}
	}
	return &Handler{store: store, breakdowns: breakdowns, bus: bus, log: log}
}

// Raise validates and persists a new OPEN dispute.
func (h *Handler) Raise(ctx context.Context, in RaiseInput) (model.Dispute, error) {
	if in.RaisedBy == "" {
		return model.Dispute{}, apperr.New(apperr.Validation, "raised_by required")
	}
	if in.Reason == "" {
		return model.Dispute{}, apperr.New(apperr.Validation, "reason required")
	}
	if _, err := model.ParseRelatedType(string(in.RelatedType)); err != nil {
		return model.Dispute{}, apperr.Wrap(apperr.Validation, err)
	}
	if in.Priority == "" {
		in.Priority = model.PriorityMedium
	}
	if _, err := model.ParseDisputePriority(string(in.Priority)); err != nil {
		return model.Dispute{}, apperr.Wrap(apperr.Validation, err)
	}
	if in.RelatedType == model.RelatedBreakdown && h.breakdowns != nil {
		if _, err := h.breakdowns.Get(in.RelatedID); err != nil {
			return model.Dispute{}, fmt.Errorf("related breakdown %s: %w", in.RelatedID, err)
		}
	}

	d, err := h.store.Create(ctx, model.Dispute{
		ID:          uuid.NewString(),
		RelatedID:   in.RelatedID,
		RelatedType: in.RelatedType,
		RaisedBy:    in.RaisedBy,
		Reason:      in.Reason,
		Description: in.Description,
		Priority:    in.Priority,
		Status:      model.DisputeOpen,
		CreatedAt:   time.Now(),
	})
	if err != nil {
		return model.Dispute{}, err
	}
	h.log.Infof("dispute %s raised by %s against %s %s", d.Number, d.RaisedBy, d.RelatedType, d.RelatedID)
	if h.bus != nil {
		h.bus.Publish(events.DisputeRaised{
			DisputeID: d.ID, RelatedID: d.RelatedID,
			RaisedBy: d.RaisedBy, Priority: string(d.Priority),
		})
	}
	return d, nil
}

// Resolve finalizes an OPEN dispute as RESOLVED or CLOSED.
func (h *Handler) Resolve(ctx context.Context, id string, in ResolveInput) (model.Dispute, error) {
	switch in.Final {
	case model.DisputeResolved, model.DisputeClosed:
	default:
		return model.Dispute{}, apperr.New(apperr.Validation, "final status must be %s or %s, got %q",
			model.DisputeResolved, model.DisputeClosed, in.Final)
	}
	if in.Resolution == "" {
		return model.Dispute{}, apperr.New(apperr.Validation, "resolution required")
	}
	if in.ResolvedBy == "" {
		return model.Dispute{}, apperr.New(apperr.Validation, "resolved_by required")
	}

	d, err := h.store.Resolve(ctx, id, in.Final, in.Resolution, in.ResolvedBy)
	if err != nil {
		return model.Dispute{}, err
	}
	h.log.Infof("dispute %s %s by %s", d.Number, d.Status, d.ResolvedBy)
	if h.bus != nil {
		h.bus.Publish(events.DisputeResolved{
			DisputeID: d.ID, ResolvedBy: d.ResolvedBy, Final: string(d.Status),
		})
	}
	return d, nil
}

// Get returns one dispute.
func (h *Handler) Get(ctx context.Context, id string) (model.Dispute, error) {
	return h.store.Get(ctx, id)
}

// List returns a page of disputes plus the total match count.
func (h *Handler) List(ctx context.Context, f Filter) ([]model.Dispute, int, error) {
	return h.store.List(ctx, f)
}
