// Package auth issues and verifies the bearer tokens that gate
// WebSocket subscriptions when token authentication is enabled.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims identifies the subscriber a token was issued to and what
// subjects it may read.
type Claims struct {
	ClientID string `json:"clientId"`
	Subject  string `json:"subject"` // subject-filter prefix this token is scoped to, "" for all
	jwt.RegisteredClaims
}

// Manager signs and verifies subscriber tokens with a single shared
// secret (HS256).
type Manager struct {
	secret []byte
	ttl    time.Duration
}

// NewManager builds a Manager. ttl is how long issued tokens remain
// valid; it has no bearing on verification of tokens signed elsewhere.
func NewManager(secret string, ttl time.Duration) *Manager {
	return &Manager{secret: []byte(secret), ttl: ttl}
}

// Issue signs a token scoped to clientID and, optionally, a subject
// prefix.
func (m *Manager) Issue(clientID, subject string) (string, error) {
	now := time.Now()
	claims := &Claims{
		ClientID: clientID,
		Subject:  subject,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			Subject:   clientID,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// Verify parses and validates a token string, rejecting anything not
// signed with HS256 and the Manager's secret.
func (m *Manager) Verify(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method == nil || t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// FromRequest extracts a bearer token from either the ?token= query
// parameter (the only option a browser WebSocket client has) or an
// Authorization: Bearer header, query taking precedence.
func FromRequest(r *http.Request) (string, error) {
	if token := r.URL.Query().Get("token"); token != "" {
		return token, nil
	}

	const bearerPrefix = "Bearer "
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, bearerPrefix) {
		return strings.TrimPrefix(header, bearerPrefix), nil
	}

	return "", errors.New("no token in query or authorization header")
}

// Authenticate extracts and verifies the token carried by r.
func (m *Manager) Authenticate(r *http.Request) (*Claims, error) {
	token, err := FromRequest(r)
	if err != nil {
		return nil, err
	}
	return m.Verify(token)
}
