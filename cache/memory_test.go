package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_DropExpiredSparesReplacedEntry(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	ctx := context.Background()
	scope := Scope{}

	require.NoError(t, store.Set(ctx, "k", []byte("stale"), scope, time.Hour))
	store.mu.RLock()
	stale := store.entries["k"]
	store.mu.RUnlock()

	// A Set lands between the expiry check and the delete; the fresh entry
	// must survive the stale delete.
	require.NoError(t, store.Set(ctx, "k", []byte("fresh"), scope, time.Hour))
	store.dropExpired("k", stale)

	entry, found := store.Get(ctx, "k")
	require.True(t, found)
	data, err := entry.Data()
	require.NoError(t, err)
	assert.Equal(t, []byte("fresh"), data)

	// Dropping the entry actually observed removes it.
	store.dropExpired("k", entry)
	assert.Equal(t, 0, store.Len())
}
