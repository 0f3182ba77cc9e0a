// Package api holds the helpers shared by the HTTP handlers: JSON
// responses, the pagination envelope and the mapping from engine errors to
// status codes.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/openroad/roadassist/core/apperr"
	"github.com/openroad/roadassist/core/availability"
	"github.com/openroad/roadassist/core/breakdown"
	"github.com/openroad/roadassist/core/dispatch"
	"github.com/openroad/roadassist/core/dispute"
	"github.com/openroad/roadassist/core/monitoring"
	"github.com/openroad/roadassist/core/storage"
)

// Pagination is the paging block of list responses.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// Page is the envelope of every list response.
type Page struct {
	Items      any        `json:"items"`
	Pagination Pagination `json:"pagination"`
}

// NewPage builds the envelope. items must be a slice; a nil slice is
// rendered as an empty array.
func NewPage(items any, page, limit, total int) Page {
	if limit <= 0 {
		limit = 20
	}
	if page <= 0 {
		page = 1
	}
	pages := total / limit
	if total%limit != 0 {
		pages++
	}
	return Page{
		Items:      items,
		Pagination: Pagination{Page: page, Limit: limit, Total: total, TotalPages: pages},
	}
}

// ParsePagination reads page and limit query parameters with defaults.
func ParsePagination(r *http.Request) (page, limit int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if page <= 0 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return page, limit
}

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// DecodeJSON reads the request body into v, rejecting unknown fields.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperr.New(apperr.Validation, "invalid request body: %v", err)
	}
	return nil
}

// Classify maps engine sentinel errors onto the error taxonomy. Errors the
// engine already classified keep their kind.
func Classify(err error) apperr.Kind {
	switch {
	case errors.Is(err, breakdown.ErrNotFound),
		errors.Is(err, dispute.ErrNotFound),
		errors.Is(err, availability.ErrUnknownMechanic),
		errors.Is(err, storage.ErrNotFound):
		return apperr.NotFound
	case errors.Is(err, breakdown.ErrStatusChanged),
		errors.Is(err, breakdown.ErrTerminal),
		errors.Is(err, dispatch.ErrAlreadyAssigned),
		errors.Is(err, dispatch.ErrAlreadyCancelled),
		errors.Is(err, dispatch.ErrNotCancellable),
		errors.Is(err, dispatch.ErrNoOffer),
		errors.Is(err, availability.ErrNotReservable),
		errors.Is(err, availability.ErrNotReserved),
		errors.Is(err, availability.ErrReservedByEngine),
		errors.Is(err, dispute.ErrAlreadyResolved):
		return apperr.Conflict
	case errors.Is(err, breakdown.ErrInvalidTransition),
		errors.Is(err, breakdown.ErrEstimateRequired),
		errors.Is(err, breakdown.ErrFinalPriceRequired),
		errors.Is(err, breakdown.ErrAssignmentManaged):
		return apperr.Validation
	default:
		return apperr.KindOf(err)
	}
}

// StatusOf maps a kind to its HTTP status.
func StatusOf(k apperr.Kind) int {
	switch k {
	case apperr.Validation:
		return http.StatusBadRequest
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.Forbidden:
		return http.StatusForbidden
	case apperr.Conflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// WriteError renders err with its mapped status. Internal faults are
// reported to the monitor and hidden from the caller.
func WriteError(w http.ResponseWriter, err error) {
	kind := Classify(err)
	status := StatusOf(kind)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		monitoring.CaptureException(err, map[string]string{"component": "api"})
		msg = "internal error"
	}
	WriteJSON(w, status, errorBody{Error: msg, Kind: kind.String()})
}

// Forbidden renders a 403 for a caller lacking ownership or role.
func Forbidden(w http.ResponseWriter) {
	WriteJSON(w, http.StatusForbidden, errorBody{Error: "forbidden", Kind: apperr.Forbidden.String()})
}
