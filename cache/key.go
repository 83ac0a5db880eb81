// Package cache provides the content-addressed analysis cache: deterministic
// key derivation, TTL entries with transparent compression, hit/miss
// statistics, and interchangeable memory and NATS KV backends.
//
// The cache is a pure performance layer. Every backend degrades to
// always-miss behavior on failure; correctness never depends on it.
package cache

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/c360studio/coach/rubric"
)

// Key derives the deterministic cache key for one analysis judgment.
// The key covers dimension, transcript content hash, rubric version, and
// evaluator role: rubric content differs by role, so the same transcript
// evaluated as two roles must never collide, and a rubric version bump makes
// every prior entry unreachable without any purge.
//
// Components are null-delimited before hashing so adjacent fields cannot
// run together and collide.
func Key(dimension rubric.Dimension, transcriptHash, rubricVersion string, role rubric.Role) string {
	h := sha256.New()
	for _, part := range []string{
		dimension.String(),
		transcriptHash,
		rubricVersion,
		role.String(),
	} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
