// Package auth signs and verifies the session tokens carried in the
// session cookie.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the payload of a session token: the standard registered claims
// plus the id of the authenticated account.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"userId"`
}

// SessionSigner mints and validates HS256 session tokens with a server-held secret.
type SessionSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSessionSigner returns a signer for secret. An empty secret is a startup
// error: the server must not serve requests without one.
func NewSessionSigner(secret string, ttl time.Duration) (*SessionSigner, error) {
	if secret == "" {
		return nil, common.ErrSecretNotConfigured
	}
	if ttl <= 0 {
		ttl = common.DefaultSessionTTL
	}
	return &SessionSigner{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// WithClock returns a copy of the signer that reads time from now.
func (s *SessionSigner) WithClock(now func() time.Time) *SessionSigner {
	c := *s
	c.now = now
	return &c
}

// TTL reports how long minted tokens stay valid.
func (s *SessionSigner) TTL() time.Duration {
	return s.ttl
}

// Sign returns a token asserting accountID, expiring after the signer TTL.
func (s *SessionSigner) Sign(accountID string) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		UserID: accountID,
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign session: %w", err)
	}
	return signed, nil
}

// Verify checks signature and expiry and returns the embedded account id.
// Expired tokens yield common.ErrTokenExpired, everything else that fails
// validation yields common.ErrInvalidToken.
func (s *SessionSigner) Verify(tokenString string) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", common.ErrTokenExpired
		}
		return "", common.ErrInvalidToken
	}

	if !token.Valid || claims.UserID == "" {
		return "", common.ErrInvalidToken
	}

	return claims.UserID, nil
}
