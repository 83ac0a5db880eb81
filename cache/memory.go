package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/c360studio/coach/rubric"
)

// sweepInterval is how often the memory store walks its map to drop expired
// entries. Expiry is also enforced on every read, so the sweep only bounds
// memory growth.
const sweepInterval = time.Hour

// MemoryStore is an in-process Store backed by a map. Safe for concurrent
// use across requests.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*Entry

	stats     statTracker
	logger    *slog.Logger
	threshold int
	now       func() time.Time

	stopOnce sync.Once
	stop     chan struct{}
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithMemoryLogger sets the logger.
func WithMemoryLogger(logger *slog.Logger) MemoryOption {
	return func(s *MemoryStore) {
		s.logger = logger
	}
}

// WithCompressThreshold sets the payload size above which entries are
// compressed. Zero disables compression.
func WithCompressThreshold(threshold int) MemoryOption {
	return func(s *MemoryStore) {
		s.threshold = threshold
	}
}

// WithClock overrides the time source, for expiry tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		s.now = now
	}
}

// NewMemoryStore creates an in-process cache store and starts its expiry
// sweeper. Call Close to stop the sweeper.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		entries:   make(map[string]*Entry),
		logger:    slog.Default(),
		threshold: DefaultCompressThreshold,
		now:       time.Now,
		stop:      make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	go s.sweep()

	return s
}

// Close stops the background sweeper.
func (s *MemoryStore) Close() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, key string) (*Entry, bool) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		s.stats.recordMiss()
		return nil, false
	}

	if entry.Expired(s.now()) {
		// Physically present, functionally a miss
		s.dropExpired(key, entry)
		s.stats.recordMiss()
		return nil, false
	}

	s.stats.recordHit(len(entry.Payload))
	return entry, true
}

// Set implements Store.
func (s *MemoryStore) Set(_ context.Context, key string, payload []byte, scope Scope, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	entry, err := newEntry(key, payload, scope, ttl, s.threshold, s.now())
	if err != nil {
		// Soft failure: the result is still returned to the caller, it just
		// won't be served from cache next time.
		s.logger.Warn("Cache write failed", "key", key, "error", err)
		metricBackendErrors.Inc()
		return nil
	}

	s.mu.Lock()
	s.entries[key] = entry
	s.mu.Unlock()

	return nil
}

// dropExpired removes an entry observed as expired under the read lock.
// The map is re-checked under the write lock: a concurrent Set may have
// replaced the entry in between, and the replacement must survive.
func (s *MemoryStore) dropExpired(key string, stale *Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if current, ok := s.entries[key]; ok && current == stale {
		delete(s.entries, key)
	}
}

// InvalidateDimension implements Store.
func (s *MemoryStore) InvalidateDimension(_ context.Context, role rubric.Role, dimension rubric.Dimension, version string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for key, entry := range s.entries {
		if entry.Role != role || entry.Dimension != dimension {
			continue
		}
		if version != "" && entry.RubricVersion != version {
			continue
		}
		delete(s.entries, key)
		count++
	}

	s.logger.Info("Cache invalidated",
		"role", role,
		"dimension", dimension,
		"version", version,
		"removed", count)

	return count, nil
}

// Stats implements Store.
func (s *MemoryStore) Stats() Stats {
	return s.stats.snapshot()
}

// ResetStats implements Store.
func (s *MemoryStore) ResetStats() {
	s.stats.reset()
}

// Len returns the number of physically present entries, expired included.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// sweep periodically drops expired entries.
func (s *MemoryStore) sweep() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			now := s.now()
			s.mu.Lock()
			removed := 0
			for key, entry := range s.entries {
				if entry.Expired(now) {
					delete(s.entries, key)
					removed++
				}
			}
			s.mu.Unlock()

			if removed > 0 {
				s.logger.Debug("Cache sweep removed expired entries", "removed", removed)
			}
		}
	}
}
