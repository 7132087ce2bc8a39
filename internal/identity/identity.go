// Package identity implements the Ed25519 primitives an agent uses to prove
// possession of its registered key: key generation, signing, verification,
// replay-bounded envelopes and handshake challenges.
//
// Keys and signatures travel as lowercase hex. Verification never returns an
// error: anything malformed simply fails to verify.
package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"filippo.io/edwards25519"
)

const (
	// PublicKeyHexLen is the hex length of a 32-byte Ed25519 public key
	PublicKeyHexLen = 2 * ed25519.PublicKeySize
	// PrivateKeyHexLen is the hex length of a 32-byte Ed25519 seed
	PrivateKeyHexLen = 2 * ed25519.SeedSize
	// SignatureHexLen is the hex length of a 64-byte Ed25519 signature
	SignatureHexLen = 2 * ed25519.SignatureSize
)

// KeyPair is a hex-encoded Ed25519 key pair. PrivateKey holds the 32-byte seed.
type KeyPair struct {
	PublicKey  string `json:"public_key" yaml:"public_key"`
	PrivateKey string `json:"private_key" yaml:"private_key"`
}

// GenerateKeyPair creates a fresh Ed25519 key pair
func GenerateKeyPair() (*KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating key pair: %w", err)
	}
	return &KeyPair{
		PublicKey:  hex.EncodeToString(pub),
		PrivateKey: hex.EncodeToString(priv.Seed()),
	}, nil
}

// KeyPairFromPrivateKey derives the public half from a hex seed (or a hex
// expanded 64-byte private key).
func KeyPairFromPrivateKey(privateKeyHex string) (*KeyPair, error) {
	priv, err := decodePrivateKey(privateKeyHex)
	if err != nil {
		return nil, err
	}
	return &KeyPair{
		PublicKey:  hex.EncodeToString(priv.Public().(ed25519.PublicKey)),
		PrivateKey: hex.EncodeToString(priv.Seed()),
	}, nil
}

// Ed25519 returns the key pair as crypto/ed25519 values
func (k *KeyPair) Ed25519() (ed25519.PrivateKey, ed25519.PublicKey, error) {
	priv, err := decodePrivateKey(k.PrivateKey)
	if err != nil {
		return nil, nil, err
	}
	return priv, priv.Public().(ed25519.PublicKey), nil
}

// Sign signs message with the pair's private key
func (k *KeyPair) Sign(message string) (string, error) {
	return Sign(message, k.PrivateKey)
}

// Sign returns the hex Ed25519 signature of message. Ed25519 is
// deterministic, so the same inputs always produce the same 128 hex chars.
func Sign(message, privateKeyHex string) (string, error) {
	priv, err := decodePrivateKey(privateKeyHex)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(ed25519.Sign(priv, []byte(message))), nil
}

// Verify reports whether signature is a valid Ed25519 signature of message
// under publicKey. Empty inputs, wrong lengths and bad hex all yield false.
func Verify(message, signature, publicKey string) bool {
	if message == "" || signature == "" || publicKey == "" {
		return false
	}
	if len(signature) != SignatureHexLen || len(publicKey) != PublicKeyHexLen {
		return false
	}
	sig, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	pub, err := hex.DecodeString(publicKey)
	if err != nil {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pub), []byte(message), sig)
}

// ValidPublicKey reports whether s is 64 hex chars encoding a point on the
// Ed25519 curve.
func ValidPublicKey(s string) bool {
	if len(s) != PublicKeyHexLen {
		return false
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return false
	}
	_, err = new(edwards25519.Point).SetBytes(raw)
	return err == nil
}

func decodePrivateKey(s string) (ed25519.PrivateKey, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decoding private key: %w", err)
	}
	switch len(raw) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(raw), nil
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(raw), nil
	default:
		return nil, fmt.Errorf("private key must be %d or %d bytes, got %d", ed25519.SeedSize, ed25519.PrivateKeySize, len(raw))
	}
}
