package meter

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"netgauge/internal/config"
	"netgauge/internal/format"
	"netgauge/internal/netstat"
)

var (
	// ErrEngineRunning is returned when Start is called on a running engine.
	ErrEngineRunning = errors.New("engine already started")
)

// Subscriber receives every published rate snapshot. Called from the
// polling goroutine; implementations must not block.
type Subscriber func(RateSnapshot)

// Engine owns the poll-sample-compute-publish cycle. A single periodic
// ticker drives it; each tick reads a snapshot, filters it, folds it
// into the delta state, appends to history, persists (throttled, off
// the tick goroutine) and publishes a RateSnapshot to subscribers.
//
// All engine state is owned by the engine and guarded by one mutex;
// the durable writer only ever sees copies.
type Engine struct {
	mu sync.RWMutex

	cfg    config.Config
	source netstat.Source
	store  *Store

	delta     deltaEngine
	peaks     PeakTracker
	history   historyLog
	spark     sparkline
	totalDown uint64
	totalUp   uint64

	last        RateSnapshot
	subscribers map[string]Subscriber

	running    bool
	stopChan   chan struct{}
	reschedule chan time.Duration
	loopDone   chan struct{}
}

// NewEngine creates an engine with an explicit configuration value.
// The store may point at a missing file; that is a cold start.
func NewEngine(cfg config.Config, source netstat.Source, store *Store) *Engine {
	cfg.Normalize()
	return &Engine{
		cfg:         cfg,
		source:      source,
		store:       store,
		subscribers: make(map[string]Subscriber),
	}
}

// Start loads the durable state and begins polling.
func (e *Engine) Start() error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return ErrEngineRunning
	}

	state := e.store.Load(time.Now())
	e.history.samples = state.History
	e.totalDown = state.TotalDownloadAllTime
	e.totalUp = state.TotalUploadAllTime

	e.running = true
	e.stopChan = make(chan struct{})
	e.reschedule = make(chan time.Duration, 1)
	e.loopDone = make(chan struct{})
	interval := e.cfg.PollInterval()
	e.mu.Unlock()

	go e.pollLoop(interval)

	slog.Info("Sampling engine started",
		"interval", interval,
		"history_samples", len(state.History))
	return nil
}

// Stop halts the ticker and flushes a final persist synchronously.
// Safe to call on a stopped engine.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	close(e.stopChan)
	done := e.loopDone
	e.mu.Unlock()

	<-done

	// Final flush bypasses the throttle.
	if err := e.store.Persist(e.persistedState()); err != nil {
		slog.Warn("Final persist failed", "error", err)
	}
	slog.Info("Sampling engine stopped")
}

// pollLoop runs the ticker. In-flight ticks are never cancelled; the
// only cancellation semantics is stopping the ticker itself.
func (e *Engine) pollLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer close(e.loopDone)

	for {
		select {
		case <-e.stopChan:
			return
		case d := <-e.reschedule:
			ticker.Reset(d)
		case now := <-ticker.C:
			e.tick(now)
		}
	}
}

// tick executes one poll-sample-compute-publish cycle.
func (e *Engine) tick(now time.Time) {
	// Snapshot read happens outside the lock; it can stall on the OS.
	snapshot := e.source.Snapshot()

	e.mu.Lock()

	filtered := netstat.Filter(snapshot, e.cfg.SelectedSet())
	d := e.delta.tick(filtered, now)

	var downRate, upRate float64
	if !d.First {
		e.totalDown += d.Rx
		e.totalUp += d.Tx

		downRate = float64(d.Rx) / d.Elapsed
		upRate = float64(d.Tx) / d.Elapsed
		e.peaks.Observe(downRate, upRate)

		sample := HistorySample{Timestamp: now, Rx: d.AggRx, Tx: d.AggTx}
		e.history.append(sample, now)
		e.spark.append(sample, now)
	}

	e.last = RateSnapshot{
		DownloadRateLabel:   format.Rate(d.Rx, d.Elapsed, e.cfg.ShowBits, e.cfg.UseSI),
		UploadRateLabel:     format.Rate(d.Tx, d.Elapsed, e.cfg.ShowBits, e.cfg.UseSI),
		DownloadBytesPerSec: downRate,
		UploadBytesPerSec:   upRate,
		Timestamp:           now,
	}
	published := e.last

	subs := make([]Subscriber, 0, len(e.subscribers))
	for _, fn := range e.subscribers {
		subs = append(subs, fn)
	}

	var pending *PersistedState
	if !d.First && e.store.AllowPersist() {
		pending = e.persistedStateLocked()
	}
	e.mu.Unlock()

	if pending != nil {
		// Copy-then-hand-off: the writer owns its snapshot, so a slow
		// disk write never delays the next tick or races the log.
		go func(state *PersistedState) {
			if err := e.store.Persist(state); err != nil {
				slog.Debug("Throttled persist failed", "error", err)
			}
		}(pending)
	}

	for _, fn := range subs {
		fn(published)
	}
}

// ApplyConfig replaces the engine configuration. A changed sampling
// interval reschedules the ticker; in-flight ticks are unaffected.
func (e *Engine) ApplyConfig(cfg config.Config) {
	cfg.Normalize()

	e.mu.Lock()
	intervalChanged := cfg.PollIntervalSeconds != e.cfg.PollIntervalSeconds
	e.cfg = cfg
	running := e.running
	reschedule := e.reschedule
	e.mu.Unlock()

	if intervalChanged && running {
		// Keep only the newest pending interval.
		select {
		case <-reschedule:
		default:
		}
		select {
		case reschedule <- cfg.PollInterval():
		default:
		}
		slog.Info("Sampling interval changed", "interval", cfg.PollInterval())
	}
}

// Reset clears history, all-time totals, peaks and the delta baseline
// (the next tick is treated as a first sample), then persists
// immediately, bypassing the throttle.
func (e *Engine) Reset() error {
	e.mu.Lock()
	e.history.clear()
	e.spark.clear()
	e.totalDown = 0
	e.totalUp = 0
	e.peaks.Reset()
	e.delta.reset()
	e.last = RateSnapshot{}
	state := e.persistedStateLocked()
	e.mu.Unlock()

	slog.Info("Usage statistics reset")
	return e.store.Persist(state)
}

// Subscribe registers a snapshot callback and returns its
// subscription ID.
func (e *Engine) Subscribe(fn Subscriber) string {
	id := uuid.New().String()
	e.mu.Lock()
	e.subscribers[id] = fn
	e.mu.Unlock()
	return id
}

// Unsubscribe removes a previously registered callback.
func (e *Engine) Unsubscribe(id string) {
	e.mu.Lock()
	delete(e.subscribers, id)
	e.mu.Unlock()
}

// Rate returns the most recently published snapshot.
func (e *Engine) Rate() RateSnapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.last
}

// PeakRates returns the process-lifetime peak rates in bytes/sec.
func (e *Engine) PeakRates() (download, upload float64) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.peaks.DownloadBytesPerSec, e.peaks.UploadBytesPerSec
}

// AllTimeTotals returns the exact all-time totals. These live in the
// persisted counters rather than being re-summed from history, so they
// survive retention pruning.
func (e *Engine) AllTimeTotals() Totals {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Totals{Download: e.totalDown, Upload: e.totalUp}
}

// TrailingTotals returns the summed deltas over the trailing window.
func (e *Engine) TrailingTotals(window time.Duration) Totals {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.history.windowedTotals(time.Now().Add(-window))
}

// CycleTotals returns the totals for the current billing cycle and the
// cycle start date.
func (e *Engine) CycleTotals(now time.Time) (Totals, time.Time) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	start := CycleStart(now, e.cfg.BillingDay)
	return e.history.windowedTotals(start), start
}

// Sparkline returns a copy of the recent-samples buffer.
func (e *Engine) Sparkline() []HistorySample {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.spark.snapshot()
}

// Config returns the engine's current configuration.
func (e *Engine) Config() config.Config {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg
}

func (e *Engine) persistedState() *PersistedState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.persistedStateLocked()
}

// persistedStateLocked deep-copies the durable state. Caller holds mu.
func (e *Engine) persistedStateLocked() *PersistedState {
	return &PersistedState{
		History:              e.history.snapshot(),
		TotalDownloadAllTime: e.totalDown,
		TotalUploadAllTime:   e.totalUp,
	}
}
