package meter

import "time"

// historyLog is the append-only, time-ordered sample log backing the
// windowed aggregates. Samples arrive in non-decreasing timestamp
// order because a single ticker produces them.
type historyLog struct {
	samples []HistorySample
}

// append adds a sample and prunes everything beyond the retention
// horizon.
func (h *historyLog) append(sample HistorySample, now time.Time) {
	h.samples = append(h.samples, sample)
	h.prune(now.Add(-RetentionPeriod))
}

// prune drops samples older than the cutoff. Samples are time-ordered,
// so this is a single boundary scan.
func (h *historyLog) prune(cutoff time.Time) {
	firstKept := len(h.samples)
	for i, sample := range h.samples {
		if !sample.Timestamp.Before(cutoff) {
			firstKept = i
			break
		}
	}
	if firstKept > 0 {
		h.samples = append([]HistorySample(nil), h.samples[firstKept:]...)
	}
}

// windowedTotals sums per-direction deltas over consecutive sample
// pairs whose later timestamp falls within the window. Resets are
// accounted with the same safeDelta convention as the delta engine, so
// windowed sums never double count a reset.
func (h *historyLog) windowedTotals(since time.Time) Totals {
	var totals Totals
	for i := 1; i < len(h.samples); i++ {
		newer, older := h.samples[i], h.samples[i-1]
		if newer.Timestamp.Before(since) {
			continue
		}
		totals.Download += safeDelta(newer.Rx, older.Rx)
		totals.Upload += safeDelta(newer.Tx, older.Tx)
	}
	return totals
}

// snapshot returns a copy of the log safe to hand to a concurrent
// writer.
func (h *historyLog) snapshot() []HistorySample {
	return append([]HistorySample(nil), h.samples...)
}

func (h *historyLog) clear() {
	h.samples = nil
}

// sparkline is the rolling short-window sample buffer used only for
// sparkline rendering. In-memory only.
type sparkline struct {
	samples []HistorySample
}

func (s *sparkline) append(sample HistorySample, now time.Time) {
	s.samples = append(s.samples, sample)
	cutoff := now.Add(-SparklineWindow)
	firstKept := len(s.samples)
	for i, kept := range s.samples {
		if !kept.Timestamp.Before(cutoff) {
			firstKept = i
			break
		}
	}
	if firstKept > 0 {
		s.samples = append([]HistorySample(nil), s.samples[firstKept:]...)
	}
}

func (s *sparkline) snapshot() []HistorySample {
	return append([]HistorySample(nil), s.samples...)
}

func (s *sparkline) clear() {
	s.samples = nil
}

// CycleStart returns the start of the billing cycle containing now:
// the most recent calendar date with the given day-of-month at or
// before now. The day is clamped to 1..28 to avoid short-month
// ambiguity.
func CycleStart(now time.Time, billingDay int) time.Time {
	if billingDay < 1 {
		billingDay = 1
	}
	if billingDay > 28 {
		billingDay = 28
	}

	year, month, day := now.Date()
	if day < billingDay {
		// time.Date normalizes month 0 to December of the prior year.
		return time.Date(year, month-1, billingDay, 0, 0, 0, 0, now.Location())
	}
	return time.Date(year, month, billingDay, 0, 0, 0, 0, now.Location())
}
