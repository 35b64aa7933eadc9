package meter

import (
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"netgauge/internal/fileutil"
)

// Store persists the usage state to a single JSON document, written
// atomically. Persistence is best-effort: load failures mean a cold
// start, write failures are logged and dropped, and the in-memory
// state stays authoritative for the running session.
type Store struct {
	path string

	// limiter throttles routine persists to one per PersistInterval so
	// sub-second polling doesn't amplify into sub-second disk writes.
	limiter *rate.Limiter

	// mu serializes writes so an in-flight slow write and a later one
	// cannot interleave their renames out of order.
	mu sync.Mutex
}

// NewStore creates a store writing to the given path.
func NewStore(path string) *Store {
	return &Store{
		path:    path,
		limiter: rate.NewLimiter(rate.Every(PersistInterval), 1),
	}
}

// Load reads the durable state. A missing or unparsable file is not an
// error, just a cold start with empty history and zero totals. Loaded
// history is pruned to the retention horizon so a stale file cannot
// resurrect expired samples.
func (s *Store) Load(now time.Time) *PersistedState {
	state := &PersistedState{}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("Failed to read usage file, starting empty", "path", s.path, "error", err)
		}
		return state
	}

	if err := json.Unmarshal(data, state); err != nil {
		// Legacy layout: a bare array of samples with no totals.
		var legacy []HistorySample
		if err := json.Unmarshal(data, &legacy); err != nil {
			slog.Warn("Usage file unparsable, starting empty", "path", s.path, "error", err)
			return &PersistedState{}
		}
		state = &PersistedState{History: legacy}
	}

	cutoff := now.Add(-RetentionPeriod)
	kept := state.History[:0]
	for _, sample := range state.History {
		if !sample.Timestamp.Before(cutoff) {
			kept = append(kept, sample)
		}
	}
	state.History = kept

	return state
}

// Persist writes the state unconditionally, bypassing the throttle.
// Used on shutdown and reset.
func (s *Store) Persist(state *PersistedState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fileutil.AtomicWriteJSON(s.path, state, 0600)
}

// AllowPersist reports whether a routine throttled persist may run
// now. At most one permit per PersistInterval.
func (s *Store) AllowPersist() bool {
	return s.limiter.Allow()
}
