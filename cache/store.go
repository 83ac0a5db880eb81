package cache

import (
	"context"
	"time"

	"github.com/c360studio/coach/rubric"
)

// Store is the analysis cache contract.
//
// Failure semantics are load-bearing: when a backend is unreachable, Get
// reports not-found and Set silently drops the write. The caller always
// falls through to a live LLM call; only the performance benefit is lost.
type Store interface {
	// Get returns the entry for key, or found=false when the key is absent,
	// expired, or the backend is unavailable. Expired entries are never
	// returned.
	Get(ctx context.Context, key string) (*Entry, bool)

	// Set writes an entry unconditionally, overwriting any previous value.
	// Backend failures are absorbed (logged and counted), never fatal.
	Set(ctx context.Context, key string, payload []byte, scope Scope, ttl time.Duration) error

	// InvalidateDimension deletes all entries for a (role, dimension) pair,
	// optionally scoped to a single rubric version, and returns the count
	// removed. Operator purges only; ordinary rubric evolution relies on key
	// non-collision instead.
	InvalidateDimension(ctx context.Context, role rubric.Role, dimension rubric.Dimension, version string) (int, error)

	// Stats returns a snapshot of the hit/miss counters.
	Stats() Stats

	// ResetStats zeroes the counters. Explicit operator action only.
	ResetStats()
}
