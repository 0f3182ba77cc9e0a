package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T, ttl time.Duration) *Manager {
	t.Helper()
	m, err := NewManager("test-secret", "roadassist", ttl)
	require.NoError(t, err)
	return m
}

func TestIssueAndVerify(t *testing.T) {
	m := newManager(t, time.Hour)

	token, err := m.Issue("user-1", RoleMechanic)
	require.NoError(t, err)

	id, err := m.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", id.UserID)
	assert.Equal(t, RoleMechanic, id.Role)
}

func TestVerifyRejectsExpired(t *testing.T) {
	m := newManager(t, time.Hour)
	m.ttl = -time.Minute

	token, err := m.Issue("user-1", RoleRider)
	require.NoError(t, err)

	_, err = m.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	m := newManager(t, time.Hour)
	other, err := NewManager("other-secret", "roadassist", time.Hour)
	require.NoError(t, err)

	token, err := other.Issue("user-1", RoleAdmin)
	require.NoError(t, err)

	_, err = m.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsUnsignedAlg(t *testing.T) {
	m := newManager(t, time.Hour)

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{Role: RoleAdmin})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = m.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestIssueRejectsUnknownRole(t *testing.T) {
	m := newManager(t, time.Hour)
	_, err := m.Issue("user-1", "superuser")
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	m := newManager(t, time.Hour)

	var seen Identity
	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := FromContext(r.Context())
		require.True(t, ok)
		seen = id
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/breakdowns", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "missing token")

	token, err := m.Issue("rider-7", RoleRider)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/breakdowns", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "rider-7", seen.UserID)

	req = httptest.NewRequest(http.MethodGet, "/breakdowns", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "garbage token")
}

func TestIdentityHelpers(t *testing.T) {
	assert.True(t, Identity{Role: RoleAdmin}.Elevated())
	assert.False(t, Identity{Role: RoleWorkshop}.Elevated())
	assert.False(t, Identity{Role: RoleRider}.Elevated())
	assert.True(t, Identity{Role: RoleMechanic}.Is(RoleRider, RoleMechanic))
}
