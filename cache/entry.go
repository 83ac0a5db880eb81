package cache

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/c360studio/coach/rubric"
)

// DefaultTTL is how long an entry stays live unless overridden.
const DefaultTTL = 90 * 24 * time.Hour

// DefaultCompressThreshold is the payload size above which entries are
// gzip-compressed before storage.
const DefaultCompressThreshold = 4 * 1024

// Entry is one cached analysis payload plus the metadata needed for expiry
// checks and operator-scoped invalidation. Entries are written only by the
// orchestrator after a validated LLM call and are never partially mutated.
type Entry struct {
	// Key is the derived cache key this entry is stored under.
	Key string `json:"key"`

	// Payload is the stored bytes. Compressed when Compressed is true;
	// Data() transparently decompresses.
	Payload []byte `json:"payload"`

	// Compressed indicates gzip compression was applied at write time.
	Compressed bool `json:"compressed"`

	// Role, Dimension, and RubricVersion scope the entry for operator
	// invalidation. Keys are opaque hashes, so the scope must travel with
	// the entry.
	Role          rubric.Role      `json:"role"`
	Dimension     rubric.Dimension `json:"dimension"`
	RubricVersion string           `json:"rubric_version"`

	// CreatedAt is the write time.
	CreatedAt time.Time `json:"created_at"`

	// TTL is the entry's time-to-live from CreatedAt.
	TTL time.Duration `json:"ttl"`
}

// Expired reports whether the entry is past its TTL at the given time.
// An expired entry is functionally absent.
func (e *Entry) Expired(now time.Time) bool {
	return now.Sub(e.CreatedAt) > e.TTL
}

// Data returns the stored payload, decompressing if needed.
func (e *Entry) Data() ([]byte, error) {
	if !e.Compressed {
		return e.Payload, nil
	}

	zr, err := gzip.NewReader(bytes.NewReader(e.Payload))
	if err != nil {
		return nil, fmt.Errorf("open gzip payload: %w", err)
	}
	defer zr.Close() //nolint:errcheck

	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("decompress payload: %w", err)
	}
	return data, nil
}

// newEntry builds an entry from a raw payload, compressing above the
// threshold. A threshold <= 0 disables compression.
func newEntry(key string, payload []byte, scope Scope, ttl time.Duration, threshold int, now time.Time) (*Entry, error) {
	e := &Entry{
		Key:           key,
		Payload:       payload,
		Role:          scope.Role,
		Dimension:     scope.Dimension,
		RubricVersion: scope.RubricVersion,
		CreatedAt:     now,
		TTL:           ttl,
	}

	if threshold > 0 && len(payload) > threshold {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(payload); err != nil {
			return nil, fmt.Errorf("compress payload: %w", err)
		}
		if err := zw.Close(); err != nil {
			return nil, fmt.Errorf("flush compressed payload: %w", err)
		}
		e.Payload = buf.Bytes()
		e.Compressed = true
	}

	return e, nil
}

// Scope identifies which rubric a cached judgment was computed against.
type Scope struct {
	Role          rubric.Role
	Dimension     rubric.Dimension
	RubricVersion string
}
