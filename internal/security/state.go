// Package security holds the small cryptographic helpers the auth handshake
// needs.
package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// StateClaims ride inside the OAuth state parameter: a nonce against replay
// and the path to land on after the handshake.
type StateClaims struct {
	Redirect string `json:"redirect,omitempty"`
	jwt.RegisteredClaims
}

// StateManager signs and verifies the login state parameter so the callback
// can trust where the browser came from.
type StateManager struct {
	secret []byte
	ttl    time.Duration
}

func NewStateManager(secret string, ttl time.Duration) *StateManager {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &StateManager{secret: []byte(secret), ttl: ttl}
}

func (m *StateManager) Sign(redirect string) (string, error) {
	claims := StateClaims{
		Redirect: redirect,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

func (m *StateManager) Verify(raw string) (*StateClaims, error) {
	claims := &StateClaims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing algorithm")
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !tok.Valid {
		return nil, errors.New("invalid state token")
	}
	return claims, nil
}
