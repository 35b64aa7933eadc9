// Package format renders byte counts and throughput rates as
// human-scaled strings.
package format

import "fmt"

var (
	bitRateUnits  = []string{"bps", "kbps", "Mbps", "Gbps", "Tbps"}
	byteRateUnits = []string{"B/s", "kB/s", "MB/s", "GB/s", "TB/s"}

	siTotalUnits     = []string{"B", "kB", "MB", "GB", "TB"}
	binaryTotalUnits = []string{"B", "KiB", "MiB", "GiB", "TiB"}
)

// Rate formats a byte delta over an elapsed interval as a throughput
// string, in bits or bytes per second, scaled with a 1000 (SI) or 1024
// (binary) divisor.
//
// Rate labels stay decimal-style ("kB/s") even with the binary divisor,
// while Total uses proper IEC labels. The asymmetry is intentional: the
// shipped UI strings depend on it.
func Rate(deltaBytes uint64, elapsedSeconds float64, showBits, useSI bool) string {
	units := byteRateUnits
	multiplier := 1.0
	if showBits {
		units = bitRateUnits
		multiplier = 8.0
	}

	var value float64
	if elapsedSeconds > 0 {
		value = float64(deltaBytes) * multiplier / elapsedSeconds
	}

	return scale(value, units, divisor(useSI))
}

// Total formats a cumulative byte count. Unlike Rate, binary mode uses
// IEC labels (KiB, MiB, ...).
func Total(bytes uint64, useSI bool) string {
	units := siTotalUnits
	if !useSI {
		units = binaryTotalUnits
	}
	return scale(float64(bytes), units, divisor(useSI))
}

func divisor(useSI bool) float64 {
	if useSI {
		return 1000
	}
	return 1024
}

// scale walks the unit ladder, dividing while a larger unit remains.
// The two smallest units render with no decimals, the rest with two.
func scale(value float64, units []string, div float64) string {
	idx := 0
	for value >= div && idx < len(units)-1 {
		value /= div
		idx++
	}
	if idx <= 1 {
		return fmt.Sprintf("%.0f %s", value, units[idx])
	}
	return fmt.Sprintf("%.2f %s", value, units[idx])
}
