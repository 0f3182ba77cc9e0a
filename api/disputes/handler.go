// Package disputes exposes the dispute workflow over HTTP.
package disputes

import (
	"net/http"

	"github.com/openroad/roadassist/api"
	"github.com/openroad/roadassist/auth"
	"github.com/openroad/roadassist/core/apperr"
	"github.com/openroad/roadassist/core/dispute"
	"github.com/openroad/roadassist/core/model"
)

// Handler carries the dispute routes' dependencies.
type Handler struct {
	disputes *dispute.Handler
}

// NewHandler wires the routes.
func NewHandler(d *dispute.Handler) *Handler {
	return &Handler{disputes: d}
}

// Register mounts the routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/disputes", h.raise)
	mux.HandleFunc("GET /api/disputes", h.list)
	mux.HandleFunc("GET /api/disputes/{id}", h.get)
	mux.HandleFunc("POST /api/disputes/{id}/resolve", h.resolve)
}

type raiseRequest struct {
	RelatedID   string `json:"related_id"`
	RelatedType string `json:"related_type"`
	Reason      string `json:"reason"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
}

func (h *Handler) raise(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	if !auth.Allowed(auth.OpDisputeRaise, id) {
		api.Forbidden(w)
		return
	}
	var req raiseRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.WriteError(w, err)
		return
	}
	d, err := h.disputes.Raise(r.Context(), dispute.RaiseInput{
		RelatedID:   req.RelatedID,
		RelatedType: model.RelatedType(req.RelatedType),
		RaisedBy:    id.UserID,
		Reason:      req.Reason,
		Description: req.Description,
		Priority:    model.DisputePriority(req.Priority),
	})
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, d)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	if !auth.Allowed(auth.OpDisputeList, id) {
		api.Forbidden(w)
		return
	}
	page, limit := api.ParsePagination(r)
	f := dispute.Filter{
		RelatedID: r.URL.Query().Get("related_id"),
		Page:      page,
		Limit:     limit,
	}
	if s := r.URL.Query().Get("status"); s != "" {
		st, err := model.ParseDisputeStatus(s)
		if err != nil {
			api.WriteError(w, apperr.Wrap(apperr.Validation, err))
			return
		}
		f.Status = st
	}
	if s := r.URL.Query().Get("priority"); s != "" {
		p, err := model.ParseDisputePriority(s)
		if err != nil {
			api.WriteError(w, apperr.Wrap(apperr.Validation, err))
			return
		}
		f.Priority = p
	}
	if !id.Elevated() {
		// Non-elevated callers only see their own disputes.
		f.RaisedBy = id.UserID
	}
	items, total, err := h.disputes.List(r.Context(), f)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	if items == nil {
		items = []model.Dispute{}
	}
	api.WriteJSON(w, http.StatusOK, api.NewPage(items, page, limit, total))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	d, err := h.disputes.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		api.WriteError(w, err)
		return
	}
	var held []auth.Relation
	if d.RaisedBy == id.UserID {
		held = append(held, auth.Owner)
	}
	if !auth.Allowed(auth.OpDisputeView, id, held...) {
		api.Forbidden(w)
		return
	}
	api.WriteJSON(w, http.StatusOK, d)
}

type resolveRequest struct {
	Status     string `json:"status"`
	Resolution string `json:"resolution"`
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	if !auth.Allowed(auth.OpDisputeResolve, id) {
		api.Forbidden(w)
		return
	}
	var req resolveRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.WriteError(w, err)
		return
	}
	d, err := h.disputes.Resolve(r.Context(), r.PathValue("id"), dispute.ResolveInput{
		Final:      model.DisputeStatus(req.Status),
		Resolution: req.Resolution,
		ResolvedBy: id.UserID,
	})
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, d)
}
