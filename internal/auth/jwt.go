package auth

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrExpired is returned by Parse for a well-formed token past its expiry.
var ErrExpired = errors.New("session token expired")

// SessionClaims is what a successful handshake grants to an agent.
type SessionClaims struct {
	DID          string   `json:"did"`
	Tier         string   `json:"tier"`
	TrustScore   int      `json:"trust_score"`
	Capabilities []string `json:"capabilities"`
	jwt.RegisteredClaims
}

// SessionIssuer mints and checks EdDSA session tokens with the registry key.
type SessionIssuer struct {
	priv   ed25519.PrivateKey
	pub    ed25519.PublicKey
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewSessionIssuer creates an issuer; ttl is the token lifetime.
func NewSessionIssuer(priv ed25519.PrivateKey, issuer string, ttl time.Duration) *SessionIssuer {
	return &SessionIssuer{
		priv:   priv,
		pub:    priv.Public().(ed25519.PublicKey),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
}

// TTL returns the lifetime of issued tokens.
func (s *SessionIssuer) TTL() time.Duration { return s.ttl }

// Issue signs a session token for did.
func (s *SessionIssuer) Issue(did, tier string, score int, capabilities []string) (string, time.Time, error) {
	now := s.now()
	expireAt := now.Add(s.ttl)
	claims := SessionClaims{
		DID:          did,
		Tier:         tier,
		TrustScore:   score,
		Capabilities: capabilities,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   did,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expireAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	signed, err := token.SignedString(s.priv)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session token: %w", err)
	}
	return signed, expireAt, nil
}

// Parse validates a session token and returns its claims.
func (s *SessionIssuer) Parse(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.pub, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithTimeFunc(s.now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, err
	}

	if claims, ok := token.Claims.(*SessionClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, fmt.Errorf("invalid token")
}
