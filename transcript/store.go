package transcript

import (
	"context"
	"fmt"
	"sync"
)

// ErrNotFound is returned when no transcript exists for a call ID.
var ErrNotFound = fmt.Errorf("transcript not found")

// Store provides read-only access to stored transcripts by call identifier.
// The ingestion pipeline that populates the backing store is external; the
// analysis engine only ever fetches.
type Store interface {
	GetTranscript(ctx context.Context, callID string) (*Transcript, error)
}

// MemoryStore is an in-memory Store for local runs and tests.
type MemoryStore struct {
	mu          sync.RWMutex
	transcripts map[string]*Transcript
}

// NewMemoryStore creates an empty in-memory transcript store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		transcripts: make(map[string]*Transcript),
	}
}

// Put stores a transcript, keyed by its call ID.
func (s *MemoryStore) Put(t *Transcript) error {
	if t == nil || t.CallID == "" {
		return fmt.Errorf("transcript requires a call ID")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcripts[t.CallID] = t
	return nil
}

// GetTranscript implements Store.
func (s *MemoryStore) GetTranscript(_ context.Context, callID string) (*Transcript, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.transcripts[callID]
	if !ok {
		return nil, fmt.Errorf("call %s: %w", callID, ErrNotFound)
	}
	return t, nil
}
