package authbase

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"time"
)

// TokenPurpose distinguishes the single-use token kinds.
type TokenPurpose string

const (
	TokenPurposeEmailVerification TokenPurpose = "email_verification"
	TokenPurposePasswordReset     TokenPurpose = "password_reset"
)

// Default token lifetimes per purpose.
const (
	TokenExpiryEmailVerification = 24 * time.Hour
	TokenExpiryPasswordReset     = 1 * time.Hour
)

// TokenTTL returns the lifetime for a token purpose.
func TokenTTL(purpose TokenPurpose) time.Duration {
	if purpose == TokenPurposePasswordReset {
		return TokenExpiryPasswordReset
	}
	return TokenExpiryEmailVerification
}

// TokenStatus is the outcome of verifying a raw token against stored state.
type TokenStatus int

const (
	TokenValid TokenStatus = iota
	TokenExpired
	TokenMismatch
)

// IssueToken generates a raw single-use token with 256 bits of entropy.
// The raw value is handed to the user exactly once (inside a link); only
// HashToken(raw) is ever persisted.
func IssueToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// HashToken computes the one-way digest stored in place of the raw token.
// Knowledge of the digest does not allow reconstructing the raw value.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// VerifyToken recomputes the hash of a submitted raw token and checks it
// against the stored hash and expiry.  Both conditions must hold for
// TokenValid.  The hash comparison is constant-time.
func VerifyToken(raw, storedHash string, expiresAt, now time.Time) TokenStatus {
	if raw == "" || storedHash == "" {
		return TokenMismatch
	}
	if subtle.ConstantTimeCompare([]byte(HashToken(raw)), []byte(storedHash)) != 1 {
		return TokenMismatch
	}
	if !expiresAt.After(now) {
		return TokenExpired
	}
	return TokenValid
}
