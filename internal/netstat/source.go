// Package netstat reads per-interface cumulative byte counters and
// narrows them to the interfaces the user cares about.
package netstat

import (
	"log/slog"

	"github.com/shirou/gopsutil/v3/net"
)

// RawSample is one per-interface counter reading. The counters are
// cumulative since interface start, not deltas.
type RawSample struct {
	Name     string
	BytesIn  uint64
	BytesOut uint64
}

// Source reads the current per-interface counters for all up,
// non-loopback interfaces. Implementations return an empty slice on
// failure; a snapshot read is never an error the caller must handle.
type Source interface {
	Snapshot() []RawSample
}

// SystemSource reads counters from the host OS via gopsutil.
type SystemSource struct{}

// NewSystemSource creates a Source backed by the host network stack.
func NewSystemSource() *SystemSource {
	return &SystemSource{}
}

// Snapshot returns counters for every up, non-loopback interface.
// A failed read is reported as zero interfaces observed.
func (s *SystemSource) Snapshot() []RawSample {
	counters, err := net.IOCounters(true)
	if err != nil {
		slog.Debug("Failed to read interface counters", "error", err)
		return nil
	}

	eligible := eligibleInterfaces()

	samples := make([]RawSample, 0, len(counters))
	for _, counter := range counters {
		if eligible != nil {
			if _, ok := eligible[counter.Name]; !ok {
				continue
			}
		}
		samples = append(samples, RawSample{
			Name:     counter.Name,
			BytesIn:  counter.BytesRecv,
			BytesOut: counter.BytesSent,
		})
	}
	return samples
}

// eligibleInterfaces returns the names of interfaces that are up and
// not loopback. Returns nil when the interface list cannot be read, in
// which case the caller keeps all counters rather than dropping the
// whole snapshot.
func eligibleInterfaces() map[string]struct{} {
	ifaces, err := net.Interfaces()
	if err != nil {
		slog.Debug("Failed to list interfaces", "error", err)
		return nil
	}

	eligible := make(map[string]struct{}, len(ifaces))
	for _, iface := range ifaces {
		up := false
		loopback := false
		for _, flag := range iface.Flags {
			switch flag {
			case "up":
				up = true
			case "loopback":
				loopback = true
			}
		}
		if up && !loopback {
			eligible[iface.Name] = struct{}{}
		}
	}
	return eligible
}
