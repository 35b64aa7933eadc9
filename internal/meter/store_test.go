package meter

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storeAt(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "usage.json"))
}

func TestStore_RoundTrip(t *testing.T) {
	s := storeAt(t)
	now := time.Now().UTC().Truncate(time.Second)

	state := &PersistedState{
		History: []HistorySample{
			{Timestamp: now.Add(-time.Hour), Rx: 100, Tx: 50},
			{Timestamp: now, Rx: 1100, Tx: 550},
		},
		TotalDownloadAllTime: 123_456,
		TotalUploadAllTime:   65_432,
	}

	require.NoError(t, s.Persist(state))

	loaded := s.Load(now)
	assert.Equal(t, state, loaded)
}

func TestStore_LoadMissingFileIsColdStart(t *testing.T) {
	s := storeAt(t)

	loaded := s.Load(time.Now())
	assert.Empty(t, loaded.History)
	assert.Zero(t, loaded.TotalDownloadAllTime)
	assert.Zero(t, loaded.TotalUploadAllTime)
}

func TestStore_LoadCorruptFileIsColdStart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage.json")
	require.NoError(t, os.WriteFile(path, []byte("{{{ not json"), 0600))

	loaded := NewStore(path).Load(time.Now())
	assert.Empty(t, loaded.History)
	assert.Zero(t, loaded.TotalDownloadAllTime)
}

func TestStore_LoadLegacyBareArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage.json")
	now := time.Now().UTC().Truncate(time.Second)

	legacy := []HistorySample{
		{Timestamp: now.Add(-time.Minute), Rx: 10, Tx: 5},
		{Timestamp: now, Rx: 20, Tx: 15},
	}
	data, err := json.Marshal(legacy)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0600))

	loaded := NewStore(path).Load(now)

	// Legacy files carry no totals; they default to zero.
	assert.Equal(t, legacy, loaded.History)
	assert.Zero(t, loaded.TotalDownloadAllTime)
	assert.Zero(t, loaded.TotalUploadAllTime)
}

func TestStore_LoadLegacyEmptyArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage.json")
	require.NoError(t, os.WriteFile(path, []byte("[]"), 0600))

	loaded := NewStore(path).Load(time.Now())
	assert.Empty(t, loaded.History)
}

func TestStore_LoadPrunesStaleSamples(t *testing.T) {
	s := storeAt(t)
	now := time.Now().UTC().Truncate(time.Second)

	state := &PersistedState{
		History: []HistorySample{
			{Timestamp: now.Add(-40 * 24 * time.Hour), Rx: 1},
			{Timestamp: now.Add(-1 * time.Hour), Rx: 2},
		},
		TotalDownloadAllTime: 999,
	}
	require.NoError(t, s.Persist(state))

	loaded := s.Load(now)

	// A stale file must not resurrect expired samples, but totals
	// survive pruning untouched.
	require.Len(t, loaded.History, 1)
	assert.Equal(t, uint64(2), loaded.History[0].Rx)
	assert.Equal(t, uint64(999), loaded.TotalDownloadAllTime)
}

func TestStore_AllowPersistThrottles(t *testing.T) {
	s := storeAt(t)

	assert.True(t, s.AllowPersist())
	// Immediately asking again is denied: at most one permit per
	// PersistInterval regardless of append frequency.
	assert.False(t, s.AllowPersist())
	assert.False(t, s.AllowPersist())
}

func TestStore_PersistOverwritesAtomically(t *testing.T) {
	s := storeAt(t)
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, s.Persist(&PersistedState{TotalDownloadAllTime: 1}))
	require.NoError(t, s.Persist(&PersistedState{TotalDownloadAllTime: 2}))

	loaded := s.Load(now)
	assert.Equal(t, uint64(2), loaded.TotalDownloadAllTime)

	// No stray temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(s.path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
