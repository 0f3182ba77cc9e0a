// Package dispatch exposes the dispatch round audit trail over HTTP for
// back-office tooling.
package dispatch

import (
	"net/http"
	"time"

	"github.com/openroad/roadassist/api"
	"github.com/openroad/roadassist/auth"
	"github.com/openroad/roadassist/core/dispatch/logging"
	"github.com/openroad/roadassist/pkg/export"
)

// NewLogHandler returns the handler behind GET /api/dispatch/logs.
// Only admins may read the audit trail.
func NewLogHandler(store logging.LogStore) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := auth.FromContext(r.Context())
		if !auth.Allowed(auth.OpDispatchLogs, id) {
			api.Forbidden(w)
			return
		}
		q := logging.LogQuery{
			BreakdownID: r.URL.Query().Get("breakdown_id"),
			MechanicID:  r.URL.Query().Get("mechanic_id"),
			Outcome:     r.URL.Query().Get("outcome"),
		}
		if s := r.URL.Query().Get("start"); s != "" {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				q.Start = t
			}
		}
		if s := r.URL.Query().Get("end"); s != "" {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				q.End = t
			}
		}
		records, err := store.Query(r.Context(), q)
		if err != nil {
			api.WriteError(w, err)
			return
		}
		if records == nil {
			records = []logging.RoundRecord{}
		}
		if r.URL.Query().Get("format") == "csv" {
			w.Header().Set("Content-Type", "text/csv")
			w.Header().Set("Content-Disposition", `attachment; filename="dispatch-logs.csv"`)
			if err := export.WriteCSV(w, records); err != nil {
				api.WriteError(w, err)
			}
			return
		}
		api.WriteJSON(w, http.StatusOK, records)
	})
}
