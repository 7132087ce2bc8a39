package identity

import (
	"strings"
	"testing"
	"time"
)

// flipHex replaces the hex char at i with a different hex digit
func flipHex(s string, i int) string {
	c := byte('0')
	if s[i] == '0' {
		c = '1'
	}
	return s[:i] + string(c) + s[i+1:]
}

func TestGenerateKeyPair(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	if len(kp.PublicKey) != 64 {
		t.Errorf("PublicKey length = %d, want 64", len(kp.PublicKey))
	}
	if len(kp.PrivateKey) != 64 {
		t.Errorf("PrivateKey length = %d, want 64", len(kp.PrivateKey))
	}
	if !ValidPublicKey(kp.PublicKey) {
		t.Error("generated public key should be a valid curve point")
	}
}

func TestSignAndVerify(t *testing.T) {
	kp, _ := GenerateKeyPair()
	msg := "Hello, AgentMesh!"

	sig, err := Sign(msg, kp.PrivateKey)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if len(sig) != 128 {
		t.Errorf("signature length = %d, want 128", len(sig))
	}
	if !Verify(msg, sig, kp.PublicKey) {
		t.Error("Verify returned false for valid signature")
	}

	again, _ := Sign(msg, kp.PrivateKey)
	if again != sig {
		t.Error("Ed25519 signatures should be deterministic")
	}
}

func TestVerifyRejectsTampering(t *testing.T) {
	kp, _ := GenerateKeyPair()
	other, _ := GenerateKeyPair()
	msg := "did:mesh:abc:challenge"
	sig, _ := Sign(msg, kp.PrivateKey)

	if Verify("did:mesh:abd:challenge", sig, kp.PublicKey) {
		t.Error("Verify returned true for altered message")
	}
	if Verify(msg, sig, other.PublicKey) {
		t.Error("Verify returned true for wrong public key")
	}
	for _, i := range []int{0, 31, 64, 127} {
		if Verify(msg, flipHex(sig, i), kp.PublicKey) {
			t.Errorf("Verify returned true with signature hex char %d flipped", i)
		}
	}
	for _, i := range []int{0, 20, 63} {
		if Verify(msg, sig, flipHex(kp.PublicKey, i)) {
			t.Errorf("Verify returned true with public key hex char %d flipped", i)
		}
	}
}

func TestVerifyInvalidInputs(t *testing.T) {
	kp, _ := GenerateKeyPair()
	sig, _ := Sign("msg", kp.PrivateKey)

	tests := []struct {
		name      string
		message   string
		signature string
		publicKey string
	}{
		{"empty message", "", sig, kp.PublicKey},
		{"empty signature", "msg", "", kp.PublicKey},
		{"empty public key", "msg", sig, ""},
		{"short signature", "msg", "short", kp.PublicKey},
		{"short public key", "msg", strings.Repeat("a", 128), "short"},
		{"non-hex signature", "msg", strings.Repeat("z", 128), kp.PublicKey},
		{"non-hex public key", "msg", sig, strings.Repeat("z", 64)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if Verify(tt.message, tt.signature, tt.publicKey) {
				t.Error("Verify should return false")
			}
		})
	}
}

func TestSignRejectsBadPrivateKey(t *testing.T) {
	if _, err := Sign("msg", "abcd"); err == nil {
		t.Error("expected error for short private key")
	}
	if _, err := Sign("msg", "not-hex"); err == nil {
		t.Error("expected error for non-hex private key")
	}
}

func TestKeyPairFromPrivateKey(t *testing.T) {
	kp, _ := GenerateKeyPair()
	restored, err := KeyPairFromPrivateKey(kp.PrivateKey)
	if err != nil {
		t.Fatalf("KeyPairFromPrivateKey: %v", err)
	}
	if restored.PublicKey != kp.PublicKey {
		t.Errorf("Expected public key %s, got %s", kp.PublicKey, restored.PublicKey)
	}
}

func TestSignedMessage(t *testing.T) {
	kp, _ := GenerateKeyPair()
	now := time.Now()
	data := `{"agent_did":"did:mesh:test123","action":"handshake"}`

	msg, err := CreateSignedMessage(data, kp.PrivateKey, kp.PublicKey, now)
	if err != nil {
		t.Fatalf("CreateSignedMessage: %v", err)
	}
	if msg.Data != data {
		t.Error("data should be preserved")
	}
	if len(msg.Signature) != 128 {
		t.Errorf("signature length = %d, want 128", len(msg.Signature))
	}
	if !VerifySignedMessage(msg, DefaultMaxAge, now.Add(time.Minute)) {
		t.Error("fresh signed message should verify")
	}

	tampered := *msg
	tampered.Data = "other"
	if VerifySignedMessage(&tampered, DefaultMaxAge, now) {
		t.Error("tampered data should not verify")
	}
}

func TestSignedMessageExpired(t *testing.T) {
	kp, _ := GenerateKeyPair()
	signedAt := time.Now().Add(-10 * time.Minute)

	msg, _ := CreateSignedMessage("test data", kp.PrivateKey, kp.PublicKey, signedAt)
	if VerifySignedMessage(msg, 5*time.Minute, time.Now()) {
		t.Error("envelope older than max age should fail")
	}
	if !VerifySignedMessage(msg, 15*time.Minute, time.Now()) {
		t.Error("envelope within a wider max age should verify")
	}
}

func TestSignedMessageFutureTimestamp(t *testing.T) {
	kp, _ := GenerateKeyPair()
	msg, _ := CreateSignedMessage("x", kp.PrivateKey, kp.PublicKey, time.Now().Add(time.Hour))
	if VerifySignedMessage(msg, DefaultMaxAge, time.Now()) {
		t.Error("envelope from the far future should fail")
	}
}

func TestGenerateChallenge(t *testing.T) {
	c1 := GenerateChallenge()
	c2 := GenerateChallenge()
	if len(c1) != 64 {
		t.Errorf("challenge length = %d, want 64", len(c1))
	}
	if c1 == c2 {
		t.Error("challenges should be unique")
	}
}

func TestSHA256Hex(t *testing.T) {
	want := "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08"
	if got := SHA256Hex("test"); got != want {
		t.Errorf("SHA256Hex(test) = %s, want %s", got, want)
	}
}

func TestDIDAndAPIKey(t *testing.T) {
	did := GenerateDID()
	if !strings.HasPrefix(did, DIDPrefix) || len(did) != len(DIDPrefix)+32 {
		t.Errorf("unexpected DID %q", did)
	}
	if !ValidDID(did) {
		t.Errorf("ValidDID(%q) = false", did)
	}
	key := GenerateAPIKey()
	if !strings.HasPrefix(key, APIKeyPrefix) || len(key) != len(APIKeyPrefix)+32 {
		t.Errorf("unexpected API key %q", key)
	}

	for _, bad := range []string{"", "did:mesh:", "did:web:abc", "mesh:abc", "did:mesh:a/b"} {
		if ValidDID(bad) {
			t.Errorf("ValidDID(%q) = true, want false", bad)
		}
	}
}

func TestValidPublicKey(t *testing.T) {
	if ValidPublicKey(strings.Repeat("a", 63)) {
		t.Error("63 hex chars should be invalid")
	}
	if ValidPublicKey(strings.Repeat("g", 64)) {
		t.Error("non-hex should be invalid")
	}
}
