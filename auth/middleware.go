package auth

import (
	"context"
	"net/http"
	"strings"
)

// Identity is the verified caller of a request.
type Identity struct {
	UserID string
	Role   Role
}

// Is reports whether the identity holds one of the roles.
func (id Identity) Is(roles ...Role) bool {
	for _, r := range roles {
		if id.Role == r {
			return true
		}
	}
	return false
}

// Elevated reports whether the identity may act on records it does not own.
// Workshops are ordinary authenticated parties; only admins run the back
// office.
func (id Identity) Elevated() bool {
	return id.Is(RoleAdmin)
}

type ctxKey struct{}

// FromContext returns the identity stored by Middleware.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}

// WithIdentity returns a context carrying the identity. Used by tests and
// the simulator.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// Middleware verifies the bearer token and stores the identity on the
// request context. Requests without a valid token get 401.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			http.Error(w, `{"error":"missing bearer token"}`, http.StatusUnauthorized)
			return
		}
		id, err := m.Verify(token)
		if err != nil {
			http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}
