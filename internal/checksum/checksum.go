// Package checksum computes content digests used for HTML revisions and ETags.
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

// String is Sum for string content.
func String(s string) string {
	return Sum([]byte(s))
}

// Short returns the first 12 hex characters of the digest of s.
// It is used where a compact, collision-tolerant tag is enough (render keys).
func Short(s string) string {
	return String(s)[:12]
}
