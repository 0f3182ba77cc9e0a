package disputes

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openroad/roadassist/auth"
	"github.com/openroad/roadassist/core/breakdown"
	"github.com/openroad/roadassist/core/dispute"
	"github.com/openroad/roadassist/core/model"
	"github.com/openroad/roadassist/internal/eventbus"
)

func newMux(t *testing.T) (*http.ServeMux, *breakdown.MemoryStore) {
	t.Helper()
	bus := eventbus.New()
	t.Cleanup(bus.Close)
	breakdowns := breakdown.NewMemoryStore()
	h := dispute.NewHandler(dispute.NewMemoryStore(), breakdowns, bus, nil)
	mux := http.NewServeMux()
	NewHandler(h).Register(mux)
	return mux, breakdowns
}

func do(t *testing.T, mux *http.ServeMux, id auth.Identity, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req = req.WithContext(auth.WithIdentity(req.Context(), id))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

var (
	rider = auth.Identity{UserID: "rider-1", Role: auth.RoleRider}
	admin = auth.Identity{UserID: "admin-1", Role: auth.RoleAdmin}
)

func seedBreakdown(t *testing.T, store *breakdown.MemoryStore) model.Breakdown {
	t.Helper()
	b, err := store.Create(model.Breakdown{
		RiderID: "rider-1", Latitude: 48.85, Longitude: 2.35,
		Category: model.CategoryFlatTire, Status: model.StatusPending,
	})
	require.NoError(t, err)
	return b
}

func TestRaiseAndResolve(t *testing.T) {
	mux, store := newMux(t)
	b := seedBreakdown(t, store)

	rec := do(t, mux, rider, http.MethodPost, "/api/disputes", map[string]any{
		"related_id": b.ID, "related_type": "BREAKDOWN",
		"reason": "overcharged", "description": "final price doubled the estimate",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var d model.Dispute
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
	assert.Equal(t, "rider-1", d.RaisedBy)
	assert.Equal(t, model.DisputeOpen, d.Status)
	assert.Equal(t, model.PriorityMedium, d.Priority)

	// Only elevated roles resolve.
	rec = do(t, mux, rider, http.MethodPost, "/api/disputes/"+d.ID+"/resolve", map[string]any{
		"status": "RESOLVED", "resolution": "partial refund issued",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, mux, admin, http.MethodPost, "/api/disputes/"+d.ID+"/resolve", map[string]any{
		"status": "RESOLVED", "resolution": "partial refund issued",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
	assert.Equal(t, model.DisputeResolved, d.Status)
	assert.Equal(t, "admin-1", d.ResolvedBy)

	rec = do(t, mux, admin, http.MethodPost, "/api/disputes/"+d.ID+"/resolve", map[string]any{
		"status": "CLOSED", "resolution": "again",
	})
	assert.Equal(t, http.StatusConflict, rec.Code, "a settled dispute stays settled")
}

func TestRaiseValidation(t *testing.T) {
	mux, _ := newMux(t)

	rec := do(t, mux, rider, http.MethodPost, "/api/disputes", map[string]any{
		"related_id": "b-1", "related_type": "BREAKDOWN",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "missing reason")

	rec = do(t, mux, rider, http.MethodPost, "/api/disputes", map[string]any{
		"related_id": "missing", "related_type": "BREAKDOWN", "reason": "x",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code, "unknown breakdown")
}

func TestListScoping(t *testing.T) {
	mux, store := newMux(t)
	b := seedBreakdown(t, store)

	for _, who := range []auth.Identity{rider, {UserID: "mech-9", Role: auth.RoleMechanic}} {
		rec := do(t, mux, who, http.MethodPost, "/api/disputes", map[string]any{
			"related_id": b.ID, "related_type": "BREAKDOWN", "reason": "r",
		})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := do(t, mux, rider, http.MethodGet, "/api/disputes", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page struct {
		Items []model.Dispute `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Items, 1)
	assert.Equal(t, "rider-1", page.Items[0].RaisedBy)

	rec = do(t, mux, admin, http.MethodGet, "/api/disputes", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Len(t, page.Items, 2)

	rec = do(t, mux, admin, http.MethodGet, "/api/disputes?status=NOPE", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetOwnership(t *testing.T) {
	mux, store := newMux(t)
	b := seedBreakdown(t, store)
	rec := do(t, mux, rider, http.MethodPost, "/api/disputes", map[string]any{
		"related_id": b.ID, "related_type": "BREAKDOWN", "reason": "r",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var d model.Dispute
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))

	rec = do(t, mux, auth.Identity{UserID: "rider-2", Role: auth.RoleRider},
		http.MethodGet, "/api/disputes/"+d.ID, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, mux, admin, http.MethodGet, "/api/disputes/"+d.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
