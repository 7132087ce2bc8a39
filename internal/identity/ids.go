package identity

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

const (
	// DIDPrefix is the method prefix of every registry DID
	DIDPrefix = "did:mesh:"
	// APIKeyPrefix marks agent API credentials
	APIKeyPrefix = "amesh_"
)

// GenerateID returns length random hex characters
func GenerateID(length int) string {
	b := make([]byte, (length+1)/2)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("identity: reading random bytes: %v", err))
	}
	return hex.EncodeToString(b)[:length]
}

// GenerateDID issues a new did:mesh identifier
func GenerateDID() string {
	return DIDPrefix + GenerateID(32)
}

// GenerateAPIKey issues a new agent API key
func GenerateAPIKey() string {
	return APIKeyPrefix + GenerateID(32)
}

// ValidDID reports whether did carries the did:mesh prefix and a non-empty id
func ValidDID(did string) bool {
	id, ok := strings.CutPrefix(did, DIDPrefix)
	return ok && id != "" && !strings.ContainsAny(id, " /\t\n")
}

// SHA256Hex hashes s and returns lowercase hex
func SHA256Hex(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

// GenerateChallenge returns a fresh 64-hex nonce derived from the current
// time and 16 random hex chars.
func GenerateChallenge() string {
	return SHA256Hex(fmt.Sprintf("%d:%s", time.Now().UnixMilli(), GenerateID(16)))
}
