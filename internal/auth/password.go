package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Admin token length bounds. bcrypt only reads the first 72 bytes, so a
// longer token would accept any value sharing that prefix.
const (
	MinAdminTokenLen = 12
	MaxAdminTokenLen = 72
)

var (
	ErrTokenTooShort = fmt.Errorf("admin token must be at least %d bytes", MinAdminTokenLen)
	ErrTokenTooLong  = fmt.Errorf("admin token must be at most %d bytes", MaxAdminTokenLen)
	ErrTokenMismatch = errors.New("admin token does not match")
)

func checkTokenLen(plain string) error {
	switch {
	case len(plain) < MinAdminTokenLen:
		return ErrTokenTooShort
	case len(plain) > MaxAdminTokenLen:
		return ErrTokenTooLong
	}
	return nil
}

// HashToken hashes a plain admin token for ADMIN_TOKEN_HASH
func HashToken(plain string) (string, error) {
	if err := checkTokenLen(plain); err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckTokenHash reports whether hash is a usable bcrypt hash. The server
// calls it at startup so a mistyped ADMIN_TOKEN_HASH fails loudly instead of
// rejecting every admin request.
func CheckTokenHash(hash string) error {
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return fmt.Errorf("ADMIN_TOKEN_HASH is not a bcrypt hash: %w", err)
	}
	if cost < bcrypt.DefaultCost {
		return fmt.Errorf("ADMIN_TOKEN_HASH cost %d is below %d", cost, bcrypt.DefaultCost)
	}
	return nil
}

// CompareToken checks a presented admin token against its bcrypt hash.
// Tokens outside the length bounds are rejected before hashing; the
// comparison itself is constant time inside bcrypt.
func CompareToken(hash, plain string) error {
	if checkTokenLen(plain) != nil {
		return ErrTokenMismatch
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrTokenMismatch
		}
		return err
	}
	return nil
}
