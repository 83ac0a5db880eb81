// Package transcript provides the call transcript type and its
// content-addressed fingerprint. Transcripts are produced by the external
// ingestion pipeline; this package only reads them and derives hashes.
package transcript

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Transcript is an immutable call transcript with metadata.
// The text is never mutated after ingestion; scoring derives a hash from it.
type Transcript struct {
	// CallID identifies the recorded call in the upstream system.
	CallID string `json:"call_id"`

	// Text is the full transcript text.
	Text string `json:"text"`

	// Participants lists the people on the call.
	Participants []string `json:"participants,omitempty"`

	// Duration is the call length.
	Duration time.Duration `json:"duration,omitempty"`
}

// Hash returns the content fingerprint for transcript text: the SHA-256 hex
// digest of the whitespace-normalized text. Identical text always produces an
// identical hash, independent of process, platform, or time, so
// formatting-only differences never cause a spurious cache miss.
func Hash(text string) string {
	normalized := normalize(text)
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// normalize collapses runs of whitespace to single spaces and trims the ends.
func normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
