package meter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"netgauge/internal/netstat"
)

func snap(pairs ...any) []netstat.RawSample {
	var samples []netstat.RawSample
	for i := 0; i < len(pairs); i += 3 {
		samples = append(samples, netstat.RawSample{
			Name:     pairs[i].(string),
			BytesIn:  uint64(pairs[i+1].(int)),
			BytesOut: uint64(pairs[i+2].(int)),
		})
	}
	return samples
}

func TestDeltaEngine_FirstTickEmitsZero(t *testing.T) {
	var d deltaEngine
	now := time.Now()

	got := d.tick(snap("en0", 5000, 3000), now)

	assert.True(t, got.First)
	assert.Equal(t, uint64(0), got.Rx)
	assert.Equal(t, uint64(0), got.Tx)
	assert.Equal(t, 0.0, got.Elapsed)
	assert.Equal(t, uint64(5000), got.AggRx)
	assert.Equal(t, uint64(3000), got.AggTx)
}

func TestDeltaEngine_SteadyGrowth(t *testing.T) {
	var d deltaEngine
	base := time.Now()

	d.tick(snap("en0", 100, 50), base)
	got := d.tick(snap("en0", 1100, 550), base.Add(time.Second))

	assert.False(t, got.First)
	assert.Equal(t, uint64(1000), got.Rx)
	assert.Equal(t, uint64(500), got.Tx)
	assert.InDelta(t, 1.0, got.Elapsed, 0.0001)
}

func TestDeltaEngine_SumOfDeltasEqualsLastMinusFirst(t *testing.T) {
	// For non-decreasing counters with a stable interface set, the
	// deltas must telescope exactly.
	var d deltaEngine
	base := time.Now()
	readings := []int{100, 250, 250, 900, 1500, 7000}

	var sumRx uint64
	for i, r := range readings {
		got := d.tick(snap("en0", r, r*2), base.Add(time.Duration(i)*time.Second))
		sumRx += got.Rx
	}

	assert.Equal(t, uint64(7000-100), sumRx)
}

func TestDeltaEngine_CounterReset(t *testing.T) {
	var d deltaEngine
	base := time.Now()

	d.tick(snap("en0", 10_000, 8_000), base)
	got := d.tick(snap("en0", 300, 200), base.Add(time.Second))

	// The decreased counter is read as "bytes since reset".
	assert.Equal(t, uint64(300), got.Rx)
	assert.Equal(t, uint64(200), got.Tx)
}

func TestDeltaEngine_InterfaceSetChangeEmitsZero(t *testing.T) {
	var d deltaEngine
	base := time.Now()

	d.tick(snap("en0", 1000, 500), base)
	got := d.tick(snap("en0", 2000, 900, "utun0", 50, 10), base.Add(time.Second))

	assert.Equal(t, uint64(0), got.Rx)
	assert.Equal(t, uint64(0), got.Tx)

	// Baseline moved to the new snapshot: the next stable tick
	// measures from there.
	got = d.tick(snap("en0", 2500, 1000, "utun0", 150, 20), base.Add(2*time.Second))
	assert.Equal(t, uint64(600), got.Rx)
	assert.Equal(t, uint64(110), got.Tx)
}

func TestDeltaEngine_InterfaceDisappears(t *testing.T) {
	var d deltaEngine
	base := time.Now()

	d.tick(snap("en0", 1000, 500, "en1", 400, 100), base)
	got := d.tick(snap("en0", 1200, 600), base.Add(time.Second))

	assert.Equal(t, uint64(0), got.Rx)
	assert.Equal(t, uint64(0), got.Tx)
}

func TestDeltaEngine_ClockAnomalyClampsElapsed(t *testing.T) {
	var d deltaEngine
	base := time.Now()

	d.tick(snap("en0", 100, 100), base)

	// Same timestamp again: elapsed clamps to the minimum instead of
	// producing a division error downstream.
	got := d.tick(snap("en0", 200, 200), base)
	assert.Equal(t, minElapsedSeconds, got.Elapsed)

	// Clock going backwards clamps too.
	got = d.tick(snap("en0", 300, 300), base.Add(-time.Minute))
	assert.Equal(t, minElapsedSeconds, got.Elapsed)
}

func TestDeltaEngine_ResetForcesReprime(t *testing.T) {
	var d deltaEngine
	base := time.Now()

	d.tick(snap("en0", 100, 100), base)
	d.tick(snap("en0", 200, 200), base.Add(time.Second))

	d.reset()

	got := d.tick(snap("en0", 5000, 5000), base.Add(2*time.Second))
	assert.True(t, got.First)
	assert.Equal(t, uint64(0), got.Rx)
}

func TestDeltaEngine_EmptySnapshots(t *testing.T) {
	var d deltaEngine
	base := time.Now()

	d.tick(nil, base)
	got := d.tick(nil, base.Add(time.Second))

	// Two empty snapshots have equal (empty) name sets and zero
	// aggregates; the delta stays zero without special cases.
	assert.False(t, got.First)
	assert.Equal(t, uint64(0), got.Rx)
	assert.Equal(t, uint64(0), got.Tx)
}

func TestSafeDelta(t *testing.T) {
	assert.Equal(t, uint64(5), safeDelta(15, 10))
	assert.Equal(t, uint64(0), safeDelta(10, 10))
	assert.Equal(t, uint64(3), safeDelta(3, 10)) // reset: new value is the delta
}

func TestPeakTracker(t *testing.T) {
	var p PeakTracker

	p.Observe(100, 50)
	p.Observe(80, 200)
	assert.Equal(t, 100.0, p.DownloadBytesPerSec)
	assert.Equal(t, 200.0, p.UploadBytesPerSec)

	p.Observe(99, 199) // lower rates never lower the peak
	assert.Equal(t, 100.0, p.DownloadBytesPerSec)
	assert.Equal(t, 200.0, p.UploadBytesPerSec)

	p.Reset()
	assert.Zero(t, p.DownloadBytesPerSec)
	assert.Zero(t, p.UploadBytesPerSec)
}
