package offer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// TokenGenerator produces single-use offer tokens.
type TokenGenerator interface {
	Generate() (string, error)
}

// UUIDTokens draws 122 random bits per token via UUIDv4.
type UUIDTokens struct{}

// Generate returns a fresh random token. An entropy failure is returned
// rather than panicking so the caller can fail the request.
func (UUIDTokens) Generate() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return id.String(), nil
}

// TokenDigest is the stored fingerprint of a token. It survives resolution so
// uniqueness holds across cleared tokens.
func TokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// shortToken is safe to log.
func shortToken(token string) string {
	if len(token) <= 8 {
		return token
	}
	return token[:8] + "…"
}
