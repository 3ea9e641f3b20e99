// Package hashutil provides the one blake2b-based content hash shared by
// business-key derivation in C2 and the diversity filter (C5) — a single
// helper instead of separate reimplementations, replacing the teacher's bcrypt usage now that
// tenant auth is gone.
package hashutil

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// ContentHash returns the first 16 bytes of the blake2b-256 digest of s,
// hex-encoded to a 32-character string.
func ContentHash(s string) string {
	sum := blake2b.Sum256([]byte(s))
	return hex.EncodeToString(sum[:16])
}
