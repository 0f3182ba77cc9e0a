// Package breakdowns exposes the breakdown lifecycle over HTTP. Every
// route runs behind the JWT middleware; handlers derive the caller's
// relations to the record and evaluate the auth policy table.
package breakdowns

import (
	"net/http"

	"github.com/openroad/roadassist/api"
	"github.com/openroad/roadassist/auth"
	"github.com/openroad/roadassist/core/apperr"
	"github.com/openroad/roadassist/core/breakdown"
	"github.com/openroad/roadassist/core/dispatch"
	"github.com/openroad/roadassist/core/model"
	"github.com/openroad/roadassist/core/storage"
)

// Handler carries the breakdown routes' dependencies.
type Handler struct {
	coord   *dispatch.Coordinator
	machine *breakdown.Machine
	store   breakdown.Store
	blobs   storage.BlobStore
}

// NewHandler wires the routes. blobs may be nil to disable photo uploads.
func NewHandler(coord *dispatch.Coordinator, machine *breakdown.Machine, store breakdown.Store, blobs storage.BlobStore) *Handler {
	return &Handler{coord: coord, machine: machine, store: store, blobs: blobs}
}

// Register mounts the routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/breakdowns", h.create)
	mux.HandleFunc("GET /api/breakdowns", h.list)
	mux.HandleFunc("GET /api/breakdowns/{id}", h.get)
	mux.HandleFunc("POST /api/breakdowns/{id}/accept", h.accept)
	mux.HandleFunc("POST /api/breakdowns/{id}/decline", h.decline)
	mux.HandleFunc("POST /api/breakdowns/{id}/cancel", h.cancel)
	mux.HandleFunc("POST /api/breakdowns/{id}/status", h.status)
	mux.HandleFunc("POST /api/breakdowns/{id}/estimate", h.estimate)
	mux.HandleFunc("POST /api/breakdowns/{id}/final-price", h.finalPrice)
	mux.HandleFunc("POST /api/breakdowns/{id}/photos", h.uploadPhoto)
}

type createRequest struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Address   string   `json:"address"`
	Category  string   `json:"category"`
	Notes     string   `json:"notes"`
	PhotoIDs  []string `json:"photo_ids"`
}

// relations derives the caller's relations to the record for the policy
// table.
func relations(b model.Breakdown, id auth.Identity) []auth.Relation {
	var rel []auth.Relation
	if b.RiderID == id.UserID {
		rel = append(rel, auth.Owner)
	}
	if b.MechanicID != nil && *b.MechanicID == id.UserID {
		rel = append(rel, auth.Assigned)
	}
	if id.Is(auth.RoleMechanic) && b.Status == model.StatusSearching {
		// A mechanic holding an open offer may inspect the request before
		// answering it.
		rel = append(rel, auth.Offered)
	}
	return rel
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	if !auth.Allowed(auth.OpBreakdownCreate, id) {
		api.Forbidden(w)
		return
	}
	var req createRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.WriteError(w, err)
		return
	}
	b, err := h.coord.Submit(r.Context(), dispatch.SubmitInput{
		RiderID:   id.UserID,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		Address:   req.Address,
		Category:  model.EmergencyCategory(req.Category),
		Notes:     req.Notes,
		PhotoIDs:  req.PhotoIDs,
	})
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, b)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	if !auth.Allowed(auth.OpBreakdownList, id) {
		api.Forbidden(w)
		return
	}
	page, limit := api.ParsePagination(r)
	f := breakdown.Filter{Page: page, Limit: limit}
	if s := r.URL.Query().Get("status"); s != "" {
		st, err := model.ParseBreakdownStatus(s)
		if err != nil {
			api.WriteError(w, apperr.Wrap(apperr.Validation, err))
			return
		}
		f.Status = st
	}
	switch {
	case id.Is(auth.RoleRider):
		f.RiderID = id.UserID
	case id.Is(auth.RoleMechanic):
		f.MechanicID = id.UserID
	default:
		f.RiderID = r.URL.Query().Get("rider_id")
		f.MechanicID = r.URL.Query().Get("mechanic_id")
	}
	items, total := h.store.List(f)
	if items == nil {
		items = []model.Breakdown{}
	}
	api.WriteJSON(w, http.StatusOK, api.NewPage(items, page, limit, total))
}

// load fetches the record and checks the caller may see it.
func (h *Handler) load(w http.ResponseWriter, r *http.Request) (model.Breakdown, auth.Identity, bool) {
	id, _ := auth.FromContext(r.Context())
	b, err := h.store.Get(r.PathValue("id"))
	if err != nil {
		api.WriteError(w, err)
		return model.Breakdown{}, id, false
	}
	if !auth.Allowed(auth.OpBreakdownView, id, relations(b, id)...) {
		api.Forbidden(w)
		return model.Breakdown{}, id, false
	}
	return b, id, true
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	b, _, ok := h.load(w, r)
	if !ok {
		return
	}
	api.WriteJSON(w, http.StatusOK, b)
}

func (h *Handler) accept(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	if !auth.Allowed(auth.OpBreakdownAccept, id) {
		api.Forbidden(w)
		return
	}
	b, err := h.coord.Accept(r.Context(), r.PathValue("id"), id.UserID)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, b)
}

func (h *Handler) decline(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	if !auth.Allowed(auth.OpBreakdownDecline, id) {
		api.Forbidden(w)
		return
	}
	if err := h.coord.Decline(r.PathValue("id"), id.UserID); err != nil {
		api.WriteError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusNoContent, nil)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	b, id, ok := h.load(w, r)
	if !ok {
		return
	}
	var req cancelRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.WriteError(w, err)
		return
	}
	if !auth.Allowed(auth.OpBreakdownCancel, id, relations(b, id)...) {
		api.Forbidden(w)
		return
	}
	var (
		out model.Breakdown
		err error
	)
	if id.Is(auth.RoleAdmin) {
		// Admins may cancel at any non-terminal point.
		out, err = h.machine.Cancel(b.ID, id.UserID, req.Reason)
	} else {
		out, err = h.coord.Cancel(r.Context(), b.ID, id.UserID, req.Reason)
	}
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, out)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	b, id, ok := h.load(w, r)
	if !ok {
		return
	}
	var req statusRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.WriteError(w, err)
		return
	}
	target, err := model.ParseBreakdownStatus(req.Status)
	if err != nil {
		api.WriteError(w, apperr.Wrap(apperr.Validation, err))
		return
	}

	op := auth.OpBreakdownAdvance
	if target == model.StatusEstimateApproved {
		// Approving the estimate is the rider's call.
		op = auth.OpBreakdownApproveEstimate
	}
	if !auth.Allowed(op, id, relations(b, id)...) {
		api.Forbidden(w)
		return
	}

	out, err := h.machine.Transition(b.ID, target, id.UserID)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, out)
}

type priceRequest struct {
	Price float64 `json:"price"`
}

func (h *Handler) estimate(w http.ResponseWriter, r *http.Request) {
	b, id, ok := h.load(w, r)
	if !ok {
		return
	}
	if !auth.Allowed(auth.OpBreakdownPrice, id, relations(b, id)...) {
		api.Forbidden(w)
		return
	}
	var req priceRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.WriteError(w, err)
		return
	}
	out, err := h.machine.SetEstimate(b.ID, req.Price, id.UserID)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) finalPrice(w http.ResponseWriter, r *http.Request) {
	b, id, ok := h.load(w, r)
	if !ok {
		return
	}
	if !auth.Allowed(auth.OpBreakdownPrice, id, relations(b, id)...) {
		api.Forbidden(w)
		return
	}
	var req priceRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.WriteError(w, err)
		return
	}
	out, err := h.machine.SetFinalPrice(b.ID, req.Price, id.UserID)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) uploadPhoto(w http.ResponseWriter, r *http.Request) {
	b, id, ok := h.load(w, r)
	if !ok {
		return
	}
	if !auth.Allowed(auth.OpBreakdownAttachPhoto, id, relations(b, id)...) {
		api.Forbidden(w)
		return
	}
	if h.blobs == nil {
		api.WriteJSON(w, http.StatusNotImplemented, map[string]string{"error": "photo storage disabled"})
		return
	}
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	info, err := h.blobs.Put(r.Context(), contentType, http.MaxBytesReader(w, r.Body, 10<<20))
	if err != nil {
		api.WriteError(w, err)
		return
	}
	out, err := h.store.Update(b.ID, func(rec *model.Breakdown) error {
		rec.PhotoIDs = append(rec.PhotoIDs, info.ID)
		return nil
	})
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, map[string]any{"photo": info, "breakdown": out})
}
