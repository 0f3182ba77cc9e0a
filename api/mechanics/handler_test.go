package mechanics

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openroad/roadassist/auth"
	"github.com/openroad/roadassist/core/availability"
	"github.com/openroad/roadassist/core/geo"
	"github.com/openroad/roadassist/core/model"
)

func newMux(t *testing.T) (*http.ServeMux, *availability.Manager) {
	t.Helper()
	index := geo.NewIndex()
	avail := availability.NewManager(index)
	mux := http.NewServeMux()
	NewHandler(avail, index).Register(mux)
	return mux, avail
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
	mech  = auth.Identity{UserID: "mech-1", Role: auth.RoleMechanic}
	rider = auth.Identity{UserID: "rider-1", Role: auth.RoleRider}
	admin = auth.Identity{UserID: "admin-1", Role: auth.RoleAdmin}
)

func TestSelfRegister(t *testing.T) {
	mux, _ := newMux(t)

	rec := do(t, mux, mech, http.MethodPost, "/api/mechanics", map[string]any{
		"name": "Jo", "phone": "+33600000000",
		"latitude": 48.85, "longitude": 2.35,
		"skills": []string{"FLAT_TIRE"}, "verified": true,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var m model.Mechanic
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	assert.Equal(t, "mech-1", m.ID, "self registration pins the caller's id")
	assert.False(t, m.Verified, "self registration cannot self-verify")
	assert.Equal(t, model.MechanicOffline, m.Status)

	rec = do(t, mux, rider, http.MethodPost, "/api/mechanics", map[string]any{"name": "X"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Elevated callers must name the mechanic explicitly.
	rec = do(t, mux, admin, http.MethodPost, "/api/mechanics", map[string]any{"name": "X"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatusAndLocation(t *testing.T) {
	mux, avail := newMux(t)
	_, err := avail.Register(model.Mechanic{ID: "mech-1", Latitude: 48.85, Longitude: 2.35})
	require.NoError(t, err)

	rec := do(t, mux, mech, http.MethodPost, "/api/mechanics/mech-1/status", map[string]any{"status": "ONLINE"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// BUSY is owned by the dispatcher, not the mechanic.
	rec = do(t, mux, mech, http.MethodPost, "/api/mechanics/mech-1/status", map[string]any{"status": "BUSY"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, mux, mech, http.MethodPost, "/api/mechanics/mech-1/location",
		map[string]any{"latitude": 48.9, "longitude": 2.4})
	require.Equal(t, http.StatusOK, rec.Code)
	var m model.Mechanic
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	assert.Equal(t, 48.9, m.Latitude)

	rec = do(t, mux, mech, http.MethodPost, "/api/mechanics/mech-1/location",
		map[string]any{"latitude": 120.0, "longitude": 2.4})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Another mechanic cannot touch this record.
	other := auth.Identity{UserID: "mech-2", Role: auth.RoleMechanic}
	rec = do(t, mux, other, http.MethodPost, "/api/mechanics/mech-1/status", map[string]any{"status": "OFFLINE"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestListAndNearby(t *testing.T) {
	mux, avail := newMux(t)
	for _, m := range []model.Mechanic{
		{ID: "m-near", Latitude: 48.85, Longitude: 2.35, Skills: []string{"FLAT_TIRE"}},
		{ID: "m-far", Latitude: 48.85, Longitude: 2.50, Skills: []string{"ENGINE"}},
	} {
		_, err := avail.Register(m)
		require.NoError(t, err)
		_, err = avail.SetStatus(m.ID, model.MechanicOnline)
		require.NoError(t, err)
	}

	rec := do(t, mux, rider, http.MethodGet, "/api/mechanics", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, mux, admin, http.MethodGet, "/api/mechanics?skill=FLAT_TIRE", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page struct {
		Items []model.Mechanic `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Items, 1)
	assert.Equal(t, "m-near", page.Items[0].ID)

	// Riders may query coverage before reporting a breakdown.
	rec = do(t, mux, rider, http.MethodGet, "/api/mechanics/nearby?lat=48.85&lng=2.35&radius=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var candidates []geo.Candidate
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &candidates))
	require.Len(t, candidates, 1)
	assert.Equal(t, "m-near", candidates[0].MechanicID)

	rec = do(t, mux, rider, http.MethodGet, "/api/mechanics/nearby?lat=bad&lng=2.35", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeactivate(t *testing.T) {
	mux, avail := newMux(t)
	_, err := avail.Register(model.Mechanic{ID: "mech-1", Latitude: 48.85, Longitude: 2.35})
	require.NoError(t, err)

	rec := do(t, mux, mech, http.MethodDelete, "/api/mechanics/mech-1", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code, "mechanics cannot delete records")

	rec = do(t, mux, admin, http.MethodDelete, "/api/mechanics/mech-1", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	// The record survives for historic references but goes offline.
	rec = do(t, mux, admin, http.MethodGet, "/api/mechanics/mech-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var m model.Mechanic
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	assert.Equal(t, model.MechanicOffline, m.Status)
}
