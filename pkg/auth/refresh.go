package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

// refreshTokenBytes is the entropy of a raw refresh token. The raw value is
// hex-encoded before leaving the server; only the hash is stored at rest.
const refreshTokenBytes = 40

// GenerateRefreshToken returns a new opaque refresh token and its SHA-256
// hash. The hash is the session store key so the raw secret is never
// persisted.
func GenerateRefreshToken() (raw string, hashed string, err error) {
	b := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", "", err
	}
	raw = hex.EncodeToString(b)
	return raw, HashToken(raw), nil
}

// HashToken returns the hex-encoded SHA-256 hash of a raw token string.
func HashToken(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}
