package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Short returns the first 8 hex characters of the SHA-256 digest of s.
// It is used to disambiguate file names derived from colliding titles.
func Short(s string) string {
	return Sum([]byte(s))[:8]
}
