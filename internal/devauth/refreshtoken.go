package devauth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// RefreshTokenPrefix identifies refresh tokens in leaked-credential scans.
const RefreshTokenPrefix = "rgst_rt_"

// GenerateRefreshToken creates a new random refresh token and returns its
// raw bearer value (shown to the client once), a short display prefix, and
// the SHA-256 hex digest stored at rest.
func GenerateRefreshToken() (raw, prefix, hash string, err error) {
	rawBytes := make([]byte, 32)
	if _, err := rand.Read(rawBytes); err != nil {
		return "", "", "", fmt.Errorf("generating refresh token: %w", err)
	}
	raw = RefreshTokenPrefix + hex.EncodeToString(rawBytes)
	prefix = raw[:len(RefreshTokenPrefix)+8]
	hash = HashRefreshToken(raw)
	return raw, prefix, hash, nil
}

// HashRefreshToken computes the SHA-256 hex digest of a raw refresh token.
func HashRefreshToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
