// Package auth issues and verifies the bearer tokens of the HTTP API and
// holds the role policy applied by the handlers.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role is the caller's role carried in the token.
type Role string

const (
	RoleRider    Role = "rider"
	RoleMechanic Role = "mechanic"
	RoleWorkshop Role = "workshop"
	RoleAdmin    Role = "admin"
)

// ParseRole validates a wire value against the known roles.
func ParseRole(v string) (Role, error) {
	switch r := Role(v); r {
	case RoleRider, RoleMechanic, RoleWorkshop, RoleAdmin:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", v)
}

// Claims is the token payload: the subject is the user id.
type Claims struct {
	Role Role `json:"role"`
	jwt.RegisteredClaims
}

var (
	// ErrInvalidToken is returned for malformed, mis-signed or expired
	// tokens.
	ErrInvalidToken = errors.New("invalid token")
)

// Manager signs and verifies HS256 tokens.
type Manager struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewManager builds a Manager. TTL defaults to 24 h.
func NewManager(secret, issuer string, ttl time.Duration) (*Manager, error) {
	if secret == "" {
		return nil, errors.New("jwt secret required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Manager{secret: []byte(secret), issuer: issuer, ttl: ttl}, nil
}

// Issue signs a token for the user.
func (m *Manager) Issue(userID string, role Role) (string, error) {
	if _, err := ParseRole(string(role)); err != nil {
		return "", err
	}
	now := time.Now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// Verify parses and validates a token, returning its identity.
func (m *Manager) Verify(token string) (Identity, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if _, err := ParseRole(string(claims.Role)); err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return Identity{UserID: claims.Subject, Role: claims.Role}, nil
}
