// Package checksum computes the content hashes used for change detection.
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

// Body returns the checksum of a note body. Headers are never part of the digest.
func Body(body string) string {
	return Sum([]byte(body))
}
