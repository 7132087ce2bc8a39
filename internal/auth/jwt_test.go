package auth

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func newIssuer(t *testing.T) *SessionIssuer {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	return NewSessionIssuer(priv, "agentmesh-test", time.Hour)
}

func TestIssueAndParse(t *testing.T) {
	s := newIssuer(t)
	caps := []string{"basic", "read"}

	token, expireAt, err := s.Issue("did:mesh:abc", "Trusted", 803, caps)
	if err != nil {
		t.Fatalf("Issue() failed: %v", err)
	}
	if token == "" {
		t.Error("Expected non-empty token")
	}
	if d := time.Until(expireAt); d < 59*time.Minute || d > time.Hour {
		t.Errorf("Expected expiry about 1h ahead, got %v", d)
	}

	claims, err := s.Parse(token)
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	if claims.DID != "did:mesh:abc" || claims.Subject != "did:mesh:abc" {
		t.Errorf("Expected DID did:mesh:abc, got %s / %s", claims.DID, claims.Subject)
	}
	if claims.TrustScore != 803 {
		t.Errorf("Expected score 803, got %d", claims.TrustScore)
	}
	if claims.Tier != "Trusted" {
		t.Errorf("Expected tier Trusted, got %s", claims.Tier)
	}
	if diff := cmp.Diff(caps, claims.Capabilities); diff != "" {
		t.Errorf("capabilities mismatch (-want +got):\n%s", diff)
	}
	if claims.Issuer != "agentmesh-test" {
		t.Errorf("Expected issuer agentmesh-test, got %s", claims.Issuer)
	}
}

func TestParse_InvalidToken(t *testing.T) {
	s := newIssuer(t)
	if _, err := s.Parse("invalid.token.string"); err == nil {
		t.Error("Parse() should fail for invalid token")
	}
}

func TestParse_OtherKey(t *testing.T) {
	a := newIssuer(t)
	b := newIssuer(t)

	token, _, _ := a.Issue("did:mesh:abc", "Verified", 700, nil)
	if _, err := b.Parse(token); err == nil {
		t.Error("Parse() should fail for a token signed by another key")
	}
}

func TestParse_Tampered(t *testing.T) {
	s := newIssuer(t)
	token, _, _ := s.Issue("did:mesh:abc", "Verified", 700, nil)

	parts := strings.Split(token, ".")
	parts[1] = parts[1][:len(parts[1])-2] + "AA"
	if _, err := s.Parse(strings.Join(parts, ".")); err == nil {
		t.Error("Parse() should fail for a tampered payload")
	}
}

func TestParse_Expired(t *testing.T) {
	s := newIssuer(t)
	past := time.Now().Add(-2 * time.Hour)
	s.now = func() time.Time { return past }
	token, _, err := s.Issue("did:mesh:abc", "Verified", 700, nil)
	if err != nil {
		t.Fatal(err)
	}

	s.now = time.Now
	if _, err := s.Parse(token); !errors.Is(err, ErrExpired) {
		t.Errorf("Expected ErrExpired, got %v", err)
	}
}
