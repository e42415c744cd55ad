package webhook

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

// NewHookID returns a fresh hook identifier.
func NewHookID() string { return uuid.NewString() }

// GenerateToken returns a 32-byte random bearer token, hex encoded.
func GenerateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
