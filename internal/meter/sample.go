// Package meter implements the sampling and rate engine: it turns raw
// cumulative interface byte counters into instantaneous rates, a
// durable usage history, and windowed totals.
package meter

import "time"

const (
	// RetentionPeriod is how long history samples are kept.
	RetentionPeriod = 35 * 24 * time.Hour

	// SparklineWindow is the span of the in-memory buffer kept for
	// sparkline display. Never persisted.
	SparklineWindow = 5 * time.Minute

	// PersistInterval is the minimum wall-clock time between throttled
	// durable writes. Stop and reset bypass it.
	PersistInterval = 15 * time.Second

	// minElapsedSeconds guards rate computation against zero or
	// negative intervals from clock anomalies.
	minElapsedSeconds = 0.001
)

// HistorySample is one retained aggregate observation. Rx and Tx are
// the summed cumulative counters across selected interfaces at capture
// time, not deltas; subtracting consecutive samples reproduces the
// delta engine's accounting.
type HistorySample struct {
	Timestamp time.Time `json:"timestamp"`
	Rx        uint64    `json:"rx"`
	Tx        uint64    `json:"tx"`
}

// PersistedState is the durable root object written to the usage file.
type PersistedState struct {
	History              []HistorySample `json:"history"`
	TotalDownloadAllTime uint64          `json:"totalDownloadAllTime"`
	TotalUploadAllTime   uint64          `json:"totalUploadAllTime"`
}

// RateSnapshot is the per-tick output handed to the presentation
// layer. Recomputed every tick, never persisted.
type RateSnapshot struct {
	DownloadRateLabel   string    `json:"download_rate_label"`
	UploadRateLabel     string    `json:"upload_rate_label"`
	DownloadBytesPerSec float64   `json:"download_bytes_per_sec"`
	UploadBytesPerSec   float64   `json:"upload_bytes_per_sec"`
	Timestamp           time.Time `json:"timestamp"`
}

// Totals is a pair of byte totals, one per direction.
type Totals struct {
	Download uint64 `json:"download"`
	Upload   uint64 `json:"upload"`
}
