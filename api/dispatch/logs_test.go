package dispatch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openroad/roadassist/auth"
	"github.com/openroad/roadassist/core/dispatch/logging"
)

type memStore struct {
	mu   sync.Mutex
	recs []logging.RoundRecord
}

func (s *memStore) Append(_ context.Context, rec logging.RoundRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = append(s.recs, rec)
	return nil
}

func (s *memStore) Query(_ context.Context, q logging.LogQuery) ([]logging.RoundRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []logging.RoundRecord
	for _, r := range s.recs {
		if q.Matches(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memStore) Close() error { return nil }

func get(t *testing.T, h http.Handler, id auth.Identity, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), id))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestLogsRequireElevation(t *testing.T) {
	h := NewLogHandler(&memStore{})
	for _, role := range []auth.Role{auth.RoleRider, auth.RoleMechanic} {
		rec := get(t, h, auth.Identity{UserID: "u", Role: role}, "/api/dispatch/logs")
		assert.Equal(t, http.StatusForbidden, rec.Code, string(role))
	}
	rec := get(t, h, auth.Identity{UserID: "s", Role: auth.RoleAdmin}, "/api/dispatch/logs")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestLogsFilters(t *testing.T) {
	store := &memStore{}
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	seed := []logging.RoundRecord{
		{Timestamp: base, BreakdownID: "b-1", Attempt: 0, RadiusKm: 15,
			Offered: map[string]float64{"m-1": 2.5}, Outcome: "widened"},
		{Timestamp: base.Add(time.Minute), BreakdownID: "b-1", Attempt: 1, RadiusKm: 22.5,
			Offered: map[string]float64{"m-1": 2.5, "m-2": 18}, AcceptedBy: "m-2", Outcome: "matched"},
		{Timestamp: base.Add(2 * time.Minute), BreakdownID: "b-2", Attempt: 0, RadiusKm: 15,
			Offered: map[string]float64{}, Outcome: "exhausted"},
	}
	for _, r := range seed {
		require.NoError(t, store.Append(context.Background(), r))
	}
	h := NewLogHandler(store)
	admin := auth.Identity{UserID: "a", Role: auth.RoleAdmin}

	var got []logging.RoundRecord

	rec := get(t, h, admin, "/api/dispatch/logs?breakdown_id=b-1")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Len(t, got, 2)

	rec = get(t, h, admin, "/api/dispatch/logs?outcome=matched")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "m-2", got[0].AcceptedBy)

	rec = get(t, h, admin, "/api/dispatch/logs?mechanic_id=m-2")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Len(t, got, 1)

	rec = get(t, h, admin, "/api/dispatch/logs?start="+base.Add(90*time.Second).Format(time.RFC3339))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "b-2", got[0].BreakdownID)

	rec = get(t, h, admin, "/api/dispatch/logs?breakdown_id=b-1&format=csv")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "breakdown_id,number,attempt")
	assert.Contains(t, rec.Body.String(), "b-1")
}
