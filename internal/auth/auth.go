package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// NewSessionToken derives an opaque session token from a random UUID.
// The digest is what the cookie carries and what is stored, so its
// strength is the 122 random bits of the UUID.
func NewSessionToken() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("session token: %w", err)
	}
	sum := sha256.Sum256([]byte(id.String()))
	return hex.EncodeToString(sum[:]), nil
}

// NewResetToken returns 32 random bytes hex-encoded.
func NewResetToken() (string, error) {
	var b [32]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("reset token: %w", err)
	}
	return hex.EncodeToString(b[:]), nil
}
