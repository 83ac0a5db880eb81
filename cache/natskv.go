package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360studio/coach/rubric"
)

// defaultBucket is the JetStream KV bucket holding analysis entries.
const defaultBucket = "coach-analysis"

// rebindInterval throttles bucket re-binding attempts after a degraded
// start, so a backend that is still down costs at most one attempt per
// window instead of adding connect latency to every lookup.
const rebindInterval = 30 * time.Second

// NATSStore is a Store backed by a NATS JetStream key/value bucket, for
// sharing the cache across processes.
//
// The store is deliberately tolerant of an absent backend: if the bucket
// cannot be bound at startup or at call time, every Get is a miss and every
// Set a no-op. The binding is retried as calls arrive, so the store recovers
// once the backend returns. The engine stays correct throughout and merely
// re-pays LLM cost.
type NATSStore struct {
	mu       sync.RWMutex
	nc       *nats.Conn
	kv       jetstream.KeyValue
	bind     func(ctx context.Context) (jetstream.KeyValue, error)
	nextBind time.Time

	bucket    string
	stats     statTracker
	logger    *slog.Logger
	threshold int
	now       func() time.Time
}

// NATSOption configures a NATSStore.
type NATSOption func(*NATSStore)

// WithNATSLogger sets the logger.
func WithNATSLogger(logger *slog.Logger) NATSOption {
	return func(s *NATSStore) {
		s.logger = logger
	}
}

// WithBucket overrides the KV bucket name.
func WithBucket(bucket string) NATSOption {
	return func(s *NATSStore) {
		s.bucket = bucket
	}
}

// WithNATSCompressThreshold sets the compression threshold.
func WithNATSCompressThreshold(threshold int) NATSOption {
	return func(s *NATSStore) {
		s.threshold = threshold
	}
}

// NewNATSStore connects to NATS and binds (creating if needed) the analysis
// KV bucket. Connection failure does not fail construction: the store comes
// up degraded, reports misses, and keeps retrying the binding until the
// backend returns.
func NewNATSStore(ctx context.Context, url string, maxTTL time.Duration, opts ...NATSOption) (*NATSStore, error) {
	s := &NATSStore{
		bucket:    defaultBucket,
		logger:    slog.Default(),
		threshold: DefaultCompressThreshold,
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	nc, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				s.logger.Warn("Cache backend disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			s.logger.Info("Cache backend reconnected")
		}),
	)
	if err != nil {
		s.logger.Warn("Cache backend unavailable, running in degraded mode",
			"url", url, "error", err)
		metricBackendErrors.Inc()
		return s, nil
	}
	s.nc = nc

	js, err := jetstream.New(nc)
	if err != nil {
		s.logger.Warn("Cache backend has no JetStream, running in degraded mode",
			"error", err)
		metricBackendErrors.Inc()
		return s, nil
	}

	if maxTTL <= 0 {
		maxTTL = DefaultTTL
	}

	// Bucket TTL is the physical garbage collector; logical expiry is
	// enforced per-entry on read.
	cfg := jetstream.KeyValueConfig{
		Bucket:      s.bucket,
		Description: "coaching analysis result cache",
		TTL:         maxTTL,
	}
	s.bind = func(ctx context.Context) (jetstream.KeyValue, error) {
		if nc.Status() != nats.CONNECTED {
			return nil, fmt.Errorf("nats connection %s", nc.Status())
		}
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return js.CreateOrUpdateKeyValue(ctx, cfg)
	}

	kv, err := s.bind(ctx)
	if err != nil {
		s.logger.Warn("Cache bucket unavailable, running in degraded mode",
			"bucket", s.bucket, "error", err)
		metricBackendErrors.Inc()
		s.nextBind = s.now().Add(rebindInterval)
		return s, nil
	}

	s.kv = kv
	s.logger.Info("Cache backend connected", "url", url, "bucket", s.bucket)

	return s, nil
}

// Close drains the NATS connection.
func (s *NATSStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nc != nil {
		s.nc.Close()
		s.nc = nil
		s.kv = nil
	}
	s.bind = nil
}

// bucketHandle returns the KV handle, attempting a rebind first when the
// store is degraded. Returns nil while the backend stays unavailable.
func (s *NATSStore) bucketHandle(ctx context.Context) jetstream.KeyValue {
	s.mu.RLock()
	kv := s.kv
	s.mu.RUnlock()

	if kv != nil {
		return kv
	}
	return s.rebind(ctx)
}

// rebind retries the bucket binding after a degraded start, at most once
// per rebindInterval.
func (s *NATSStore) rebind(ctx context.Context) jetstream.KeyValue {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.kv != nil {
		return s.kv
	}
	if s.bind == nil || s.now().Before(s.nextBind) {
		return nil
	}
	s.nextBind = s.now().Add(rebindInterval)

	kv, err := s.bind(ctx)
	if err != nil {
		s.logger.Warn("Cache bucket still unavailable", "bucket", s.bucket, "error", err)
		metricBackendErrors.Inc()
		return nil
	}

	s.kv = kv
	s.logger.Info("Cache backend recovered", "bucket", s.bucket)
	return kv
}

// Get implements Store.
func (s *NATSStore) Get(ctx context.Context, key string) (*Entry, bool) {
	kv := s.bucketHandle(ctx)
	if kv == nil {
		s.stats.recordMiss()
		return nil, false
	}

	raw, err := kv.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, jetstream.ErrKeyNotFound) {
			s.logger.Warn("Cache read failed", "key", key, "error", err)
			metricBackendErrors.Inc()
		}
		s.stats.recordMiss()
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(raw.Value(), &entry); err != nil {
		// Corrupt entry, treat as miss
		s.logger.Warn("Cache entry corrupt", "key", key, "error", err)
		s.stats.recordMiss()
		return nil, false
	}

	if entry.Expired(s.now()) {
		s.stats.recordMiss()
		return nil, false
	}

	s.stats.recordHit(len(entry.Payload))
	return &entry, true
}

// Set implements Store. Failures are logged and absorbed.
func (s *NATSStore) Set(ctx context.Context, key string, payload []byte, scope Scope, ttl time.Duration) error {
	kv := s.bucketHandle(ctx)
	if kv == nil {
		return nil
	}

	if ttl <= 0 {
		ttl = DefaultTTL
	}

	entry, err := newEntry(key, payload, scope, ttl, s.threshold, s.now())
	if err != nil {
		s.logger.Warn("Cache write failed", "key", key, "error", err)
		metricBackendErrors.Inc()
		return nil
	}

	data, err := json.Marshal(entry)
	if err != nil {
		s.logger.Warn("Cache write failed", "key", key, "error", err)
		metricBackendErrors.Inc()
		return nil
	}

	if _, err := kv.Put(ctx, key, data); err != nil {
		s.logger.Warn("Cache write failed", "key", key, "error", err)
		metricBackendErrors.Inc()
	}

	return nil
}

// InvalidateDimension implements Store. Keys are opaque hashes, so the scan
// reads each entry's scope metadata.
func (s *NATSStore) InvalidateDimension(ctx context.Context, role rubric.Role, dimension rubric.Dimension, version string) (int, error) {
	kv := s.bucketHandle(ctx)
	if kv == nil {
		return 0, fmt.Errorf("cache backend unavailable")
	}

	lister, err := kv.ListKeys(ctx)
	if err != nil {
		return 0, fmt.Errorf("list cache keys: %w", err)
	}
	defer lister.Stop() //nolint:errcheck

	count := 0
	for key := range lister.Keys() {
		raw, err := kv.Get(ctx, key)
		if err != nil {
			continue
		}

		var entry Entry
		if err := json.Unmarshal(raw.Value(), &entry); err != nil {
			continue
		}

		if entry.Role != role || entry.Dimension != dimension {
			continue
		}
		if version != "" && entry.RubricVersion != version {
			continue
		}

		if err := kv.Delete(ctx, key); err != nil {
			return count, fmt.Errorf("delete cache key %s: %w", key, err)
		}
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
func (s *NATSStore) Stats() Stats {
	return s.stats.snapshot()
}

// ResetStats implements Store.
func (s *NATSStore) ResetStats() {
	s.stats.reset()
}
