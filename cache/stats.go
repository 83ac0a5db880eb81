package cache

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Stats is a point-in-time snapshot of cache counters. Counters increase
// monotonically and reset only on explicit operator action.
type Stats struct {
	Lookups              int64 `json:"lookups"`
	Hits                 int64 `json:"hits"`
	Misses               int64 `json:"misses"`
	EstimatedTokensSaved int64 `json:"estimatedTokensSaved"`
}

// statTracker accumulates counters and mirrors them to prometheus.
type statTracker struct {
	lookups     atomic.Int64
	hits        atomic.Int64
	misses      atomic.Int64
	tokensSaved atomic.Int64
}

// Rough chars-per-token heuristic for English prose. Used only for the
// tokens-saved estimate, never for billing.
const charsPerToken = 4

var (
	metricLookups = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "coach",
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "Total cache lookups.",
	})
	metricHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "coach",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits.",
	})
	metricMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "coach",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache misses, including expired entries.",
	})
	metricTokensSaved = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "coach",
		Subsystem: "cache",
		Name:      "tokens_saved_total",
		Help:      "Estimated LLM tokens saved by cache hits.",
	})
	metricBackendErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "coach",
		Subsystem: "cache",
		Name:      "backend_errors_total",
		Help:      "Cache backend failures absorbed by degraded-mode handling.",
	})
)

// recordHit counts a hit and credits the estimated token savings for the
// payload the hit avoided recomputing.
func (s *statTracker) recordHit(payloadBytes int) {
	s.lookups.Add(1)
	s.hits.Add(1)
	saved := int64(payloadBytes / charsPerToken)
	s.tokensSaved.Add(saved)

	metricLookups.Inc()
	metricHits.Inc()
	metricTokensSaved.Add(float64(saved))
}

// recordMiss counts a miss (absent, expired, or backend-unavailable).
func (s *statTracker) recordMiss() {
	s.lookups.Add(1)
	s.misses.Add(1)

	metricLookups.Inc()
	metricMisses.Inc()
}

// snapshot returns the current counter values.
func (s *statTracker) snapshot() Stats {
	return Stats{
		Lookups:              s.lookups.Load(),
		Hits:                 s.hits.Load(),
		Misses:               s.misses.Load(),
		EstimatedTokensSaved: s.tokensSaved.Load(),
	}
}

// reset zeroes all counters. Operator action only; the prometheus counters
// are cumulative by design and are left untouched.
func (s *statTracker) reset() {
	s.lookups.Store(0)
	s.hits.Store(0)
	s.misses.Store(0)
	s.tokensSaved.Store(0)
}
