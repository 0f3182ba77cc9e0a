// Package mechanics exposes mechanic registration, presence and location
// over HTTP.
package mechanics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/openroad/roadassist/api"
	"github.com/openroad/roadassist/auth"
	"github.com/openroad/roadassist/core/apperr"
	"github.com/openroad/roadassist/core/availability"
	"github.com/openroad/roadassist/core/geo"
	"github.com/openroad/roadassist/core/model"
)

// Handler carries the mechanic routes' dependencies.
type Handler struct {
	avail *availability.Manager
	index *geo.Index
}

// NewHandler wires the routes.
func NewHandler(avail *availability.Manager, index *geo.Index) *Handler {
	return &Handler{avail: avail, index: index}
}

// Register mounts the routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/mechanics", h.register)
	mux.HandleFunc("GET /api/mechanics", h.list)
	mux.HandleFunc("GET /api/mechanics/nearby", h.nearby)
	mux.HandleFunc("GET /api/mechanics/{id}", h.get)
	mux.HandleFunc("POST /api/mechanics/{id}/location", h.location)
	mux.HandleFunc("POST /api/mechanics/{id}/status", h.status)
	mux.HandleFunc("DELETE /api/mechanics/{id}", h.deactivate)
}

// selfRelation marks a mechanic acting on their own record for the policy
// table.
func selfRelation(id auth.Identity, mechanicID string) []auth.Relation {
	if id.Is(auth.RoleMechanic) && id.UserID == mechanicID {
		return []auth.Relation{auth.Owner}
	}
	return nil
}

type registerRequest struct {
	ID        string   `json:"id,omitempty"`
	Name      string   `json:"name"`
	Phone     string   `json:"phone"`
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Skills    []string `json:"skills"`
	Verified  bool     `json:"verified"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	if !auth.Allowed(auth.OpMechanicRegister, id) {
		api.Forbidden(w)
		return
	}
	var req registerRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.WriteError(w, err)
		return
	}
	mechID := req.ID
	if id.Is(auth.RoleMechanic) {
		// Mechanics register themselves and cannot self-verify.
		mechID = id.UserID
		req.Verified = false
	} else if mechID == "" {
		api.WriteError(w, apperr.New(apperr.Validation, "mechanic id required"))
		return
	}
	m, err := h.avail.Register(model.Mechanic{
		ID:        mechID,
		UserID:    mechID,
		Name:      req.Name,
		Phone:     req.Phone,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		Skills:    req.Skills,
		Verified:  req.Verified,
	})
	if err != nil {
		api.WriteError(w, apperr.Wrap(apperr.Validation, err))
		return
	}
	api.WriteJSON(w, http.StatusCreated, m)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	if !auth.Allowed(auth.OpMechanicList, id) {
		api.Forbidden(w)
		return
	}
	f := availability.Filter{Skill: r.URL.Query().Get("skill")}
	if s := r.URL.Query().Get("status"); s != "" {
		st, err := model.ParseMechanicStatus(s)
		if err != nil {
			api.WriteError(w, apperr.Wrap(apperr.Validation, err))
			return
		}
		f.Status = st
	}
	if v := r.URL.Query().Get("verified"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			api.WriteError(w, apperr.New(apperr.Validation, "verified must be a boolean"))
			return
		}
		f.Verified = &b
	}
	all := h.avail.List(f)
	page, limit := api.ParsePagination(r)
	total := len(all)
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}
	items := all[start:end]
	if items == nil {
		items = []model.Mechanic{}
	}
	api.WriteJSON(w, http.StatusOK, api.NewPage(items, page, limit, total))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	mechID := r.PathValue("id")
	if !auth.Allowed(auth.OpMechanicManage, id, selfRelation(id, mechID)...) {
		api.Forbidden(w)
		return
	}
	m, err := h.avail.Get(mechID)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, m)
}

type locationRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (h *Handler) location(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	mechID := r.PathValue("id")
	if !auth.Allowed(auth.OpMechanicManage, id, selfRelation(id, mechID)...) {
		api.Forbidden(w)
		return
	}
	var req locationRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.WriteError(w, err)
		return
	}
	m, err := h.avail.UpdateLocation(mechID, req.Latitude, req.Longitude, time.Now())
	if err != nil {
		if !errors.Is(err, availability.ErrUnknownMechanic) {
			err = apperr.Wrap(apperr.Validation, err)
		}
		api.WriteError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, m)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	mechID := r.PathValue("id")
	if !auth.Allowed(auth.OpMechanicManage, id, selfRelation(id, mechID)...) {
		api.Forbidden(w)
		return
	}
	var req statusRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.WriteError(w, err)
		return
	}
	st, err := model.ParseMechanicStatus(req.Status)
	if err != nil {
		api.WriteError(w, apperr.Wrap(apperr.Validation, err))
		return
	}
	m, err := h.avail.SetStatus(mechID, st)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, m)
}

// nearby is open to any authenticated caller so riders can preview coverage
// before reporting a breakdown.
func (h *Handler) nearby(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	if !auth.Allowed(auth.OpMechanicNearby, id) {
		api.Forbidden(w)
		return
	}
	q := r.URL.Query()
	lat, err1 := strconv.ParseFloat(q.Get("lat"), 64)
	lng, err2 := strconv.ParseFloat(q.Get("lng"), 64)
	if err1 != nil || err2 != nil {
		api.WriteError(w, apperr.New(apperr.Validation, "lat and lng are required"))
		return
	}
	if err := model.ValidateCoordinates(lat, lng); err != nil {
		api.WriteError(w, apperr.Wrap(apperr.Validation, err))
		return
	}
	query := geo.Query{Lat: lat, Lng: lng}
	if s := q.Get("radius"); s != "" {
		radius, err := strconv.ParseFloat(s, 64)
		if err != nil || radius <= 0 {
			api.WriteError(w, apperr.New(apperr.Validation, "radius must be a positive number"))
			return
		}
		query.RadiusKm = radius
	}
	if s := q.Get("skill"); s != "" {
		query.RequiredSkills = []string{s}
	}
	if s := q.Get("max"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			api.WriteError(w, apperr.New(apperr.Validation, "max must be a positive integer"))
			return
		}
		query.MaxResults = n
	}
	candidates := h.index.QueryNearby(query)
	if candidates == nil {
		candidates = []geo.Candidate{}
	}
	api.WriteJSON(w, http.StatusOK, candidates)
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	if !auth.Allowed(auth.OpMechanicDeactivate, id) {
		api.Forbidden(w)
		return
	}
	if err := h.avail.Deactivate(r.PathValue("id")); err != nil {
		api.WriteError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusNoContent, nil)
}
