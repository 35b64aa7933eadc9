package meter

import (
	"time"

	"netgauge/internal/netstat"
)

// safeDelta computes the byte delta between two cumulative readings.
// A decreased counter means a reset or OS re-enumeration; the new
// reading is then taken as "bytes since reset". Best-effort
// approximation, applied identically here and in the aggregator so the
// two layers never disagree on how a reset is accounted.
func safeDelta(newer, older uint64) uint64 {
	if newer >= older {
		return newer - older
	}
	return newer
}

// tickDelta is the outcome of folding one filtered snapshot into the
// delta engine.
type tickDelta struct {
	Rx      uint64
	Tx      uint64
	Elapsed float64

	// AggRx/AggTx are the summed cumulative counters at capture time,
	// recorded into the history log.
	AggRx uint64
	AggTx uint64

	// First marks the priming tick after (re)start: no reliable
	// elapsed interval exists yet, so no sample is recorded.
	First bool
}

// deltaEngine tracks the previous aggregate reading and turns each new
// snapshot into a per-direction byte delta.
type deltaEngine struct {
	prevRx    uint64
	prevTx    uint64
	prevTime  time.Time
	prevNames map[string]struct{}
	primed    bool
}

// tick folds one filtered snapshot into the engine state.
//
// The very first tick only records a baseline and emits a zero delta;
// reporting the span from process start to the first poll would show a
// huge spurious delta. When the interface-name set changes between
// ticks the aggregate counters are not comparable, so the delta is
// zero for that tick and the baseline moves to the new snapshot.
func (d *deltaEngine) tick(filtered []netstat.RawSample, now time.Time) tickDelta {
	var aggRx, aggTx uint64
	names := make(map[string]struct{}, len(filtered))
	for _, sample := range filtered {
		aggRx += sample.BytesIn
		aggTx += sample.BytesOut
		names[sample.Name] = struct{}{}
	}

	result := tickDelta{AggRx: aggRx, AggTx: aggTx}

	if !d.primed {
		result.First = true
		d.rebaseline(aggRx, aggTx, names, now)
		d.primed = true
		return result
	}

	elapsed := now.Sub(d.prevTime).Seconds()
	if elapsed < minElapsedSeconds {
		elapsed = minElapsedSeconds
	}
	result.Elapsed = elapsed

	if !sameNameSet(d.prevNames, names) {
		d.rebaseline(aggRx, aggTx, names, now)
		return result
	}

	result.Rx = safeDelta(aggRx, d.prevRx)
	result.Tx = safeDelta(aggTx, d.prevTx)
	d.rebaseline(aggRx, aggTx, names, now)
	return result
}

// reset forgets the baseline so the next tick is treated as a first
// sample again.
func (d *deltaEngine) reset() {
	*d = deltaEngine{}
}

func (d *deltaEngine) rebaseline(rx, tx uint64, names map[string]struct{}, now time.Time) {
	d.prevRx = rx
	d.prevTx = tx
	d.prevNames = names
	d.prevTime = now
}

func sameNameSet(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for name := range a {
		if _, ok := b[name]; !ok {
			return false
		}
	}
	return true
}

// PeakTracker keeps the highest observed rate per direction for the
// process lifetime. Monotonically non-decreasing until Reset.
type PeakTracker struct {
	DownloadBytesPerSec float64
	UploadBytesPerSec   float64
}

// Observe updates the peaks if the given rates exceed them.
func (p *PeakTracker) Observe(downloadRate, uploadRate float64) {
	if downloadRate > p.DownloadBytesPerSec {
		p.DownloadBytesPerSec = downloadRate
	}
	if uploadRate > p.UploadBytesPerSec {
		p.UploadBytesPerSec = uploadRate
	}
}

// Reset zeroes both peaks.
func (p *PeakTracker) Reset() {
	*p = PeakTracker{}
}
