package platform

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"
)

// prefixLength is how much of a raw secret is kept in clear for display.
const prefixLength = 8

// NewSecret returns a fresh 64-character hex API key: the SHA-256 digest of a
// random v4 UUID.
func NewSecret() string {
	sum := sha256.Sum256([]byte(uuid.New().String()))
	return hex.EncodeToString(sum[:])
}

// HashSecret returns the value stored in place of a raw secret.
func HashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// SecretPrefix returns the leading characters of a secret, safe to log.
func SecretPrefix(secret string) string {
	if len(secret) <= prefixLength {
		return secret
	}
	return secret[:prefixLength]
}
