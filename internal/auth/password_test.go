package auth

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

const adminToken = "mesh-admin-token-123"

func TestHashToken(t *testing.T) {
	hash, err := HashToken(adminToken)
	if err != nil {
		t.Fatalf("HashToken() failed: %v", err)
	}
	if hash == adminToken {
		t.Error("Hash should not equal plain token")
	}
	if err := CheckTokenHash(hash); err != nil {
		t.Errorf("CheckTokenHash() rejected a fresh hash: %v", err)
	}

	other, _ := HashToken(adminToken)
	if hash == other {
		t.Error("Expected different salted hashes for same token")
	}
}

func TestHashToken_Length(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"too short", "short", ErrTokenTooShort},
		{"minimum", strings.Repeat("a", MinAdminTokenLen), nil},
		{"maximum", strings.Repeat("a", MaxAdminTokenLen), nil},
		{"past bcrypt limit", strings.Repeat("a", MaxAdminTokenLen+1), ErrTokenTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := HashToken(tt.token)
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestCompareToken(t *testing.T) {
	hash, err := HashToken(adminToken)
	if err != nil {
		t.Fatalf("HashToken() failed: %v", err)
	}

	if err := CompareToken(hash, adminToken); err != nil {
		t.Errorf("CompareToken() failed for correct token: %v", err)
	}
	for _, guess := range []string{"", "guess", "mesh-admin-token-124", adminToken + strings.Repeat("x", 80)} {
		if err := CompareToken(hash, guess); !errors.Is(err, ErrTokenMismatch) {
			t.Errorf("CompareToken(%q): expected ErrTokenMismatch, got %v", guess, err)
		}
	}
}

func TestCheckTokenHash(t *testing.T) {
	if err := CheckTokenHash("not-a-hash"); err == nil {
		t.Error("Expected error for a plain string")
	}

	weak, err := bcrypt.GenerateFromPassword([]byte(adminToken), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	if err := CheckTokenHash(string(weak)); err == nil {
		t.Error("Expected error for a hash below the default cost")
	}
}
