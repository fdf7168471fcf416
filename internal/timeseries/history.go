// Package timeseries provides the fixed-length traffic history behind the
// go-serve-pulse dashboard graph.
//
// The history is a ring of per-tick byte totals: one sample per aggregation
// tick, oldest dropped as the newest is appended. It is pre-filled with
// zero-byte samples at construction so the dashboard graph shows a full
// window immediately instead of growing from empty.
//
// Not thread-safe by itself for writes; the tracker owns it and mutates it
// from a single goroutine. Snapshot/Stats take a read lock so other
// goroutines may read concurrently.
package timeseries

import (
	"sync"
	"time"

	"github.com/influxdata/tdigest"
)

// ExtraSamples is how many samples the ring holds beyond the window length.
// A 30 second window keeps 32+1 samples so the graph always spans the full
// window even while the newest sample is being appended.
const ExtraSamples = 2

// Clock interface for testing with deterministic time.
type Clock interface {
	Now() time.Time
}

// realClock uses time.Now() for production.
type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Sample is the aggregate number of bytes sent by all clients during one
// aggregation tick.
type Sample struct {
	Timestamp time.Time `json:"timestamp"`
	Bytes     int64     `json:"bytes"`
}

// History is a fixed-length ring of traffic samples.
//
// Length is set at construction (window seconds + ExtraSamples) and never
// changes: Record overwrites the oldest sample in place.
type History struct {
	mu       sync.RWMutex
	samples  []Sample
	writeIdx int // oldest sample, next to be overwritten

	// Distribution of per-tick totals since start, for the dashboard
	// percentile row.
	digest   *tdigest.TDigest
	recorded int64

	clock Clock
}

// Stats contains derived traffic figures at a point in time.
type Stats struct {
	// LastBytes is the byte total of the newest sample (one tick's worth).
	LastBytes int64

	// WindowBytes is the sum over all samples currently in the ring.
	WindowBytes int64

	// WindowAvg is the mean per-tick byte total across the ring.
	WindowAvg float64

	// PeakBytes is the largest per-tick total currently in the ring.
	PeakBytes int64

	// Percentiles of per-tick totals since start (T-Digest, constant memory).
	P50 float64
	P95 float64
	P99 float64
}

// NewHistory creates a history covering the given window with a real clock.
func NewHistory(window time.Duration) *History {
	return NewHistoryWithClock(window, realClock{})
}

// NewHistoryWithClock creates a history with a custom clock for testing.
// The ring is pre-filled with zero-byte samples spaced one second apart,
// ending at the clock's current time.
func NewHistoryWithClock(window time.Duration, clock Clock) *History {
	size := int(window/time.Second) + ExtraSamples
	if size < ExtraSamples+1 {
		size = ExtraSamples + 1
	}

	now := clock.Now()
	h := &History{
		samples: make([]Sample, size),
		digest:  tdigest.NewWithCompression(100), // ~100 centroids, ~10KB
		clock:   clock,
	}
	for i := range h.samples {
		h.samples[i] = Sample{
			Timestamp: now.Add(-time.Duration(size-1-i) * time.Second),
			Bytes:     0,
		}
	}
	return h
}

// Record drops the oldest sample and appends (now, bytes).
// Called once per aggregation tick by the owning tracker.
func (h *History) Record(now time.Time, bytes int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.samples[h.writeIdx] = Sample{Timestamp: now, Bytes: bytes}
	h.writeIdx = (h.writeIdx + 1) % len(h.samples)

	h.digest.Add(float64(bytes), 1)
	h.recorded++
}

// Snapshot returns an independent copy of the ring, oldest first.
func (h *History) Snapshot() []Sample {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Sample, 0, len(h.samples))
	for i := 0; i < len(h.samples); i++ {
		out = append(out, h.samples[(h.writeIdx+i)%len(h.samples)])
	}
	return out
}

// GetStats computes derived figures over the current ring contents.
func (h *History) GetStats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var stats Stats

	newest := (h.writeIdx - 1 + len(h.samples)) % len(h.samples)
	stats.LastBytes = h.samples[newest].Bytes

	for _, s := range h.samples {
		stats.WindowBytes += s.Bytes
		if s.Bytes > stats.PeakBytes {
			stats.PeakBytes = s.Bytes
		}
	}
	stats.WindowAvg = float64(stats.WindowBytes) / float64(len(h.samples))

	if h.recorded > 0 {
		stats.P50 = h.digest.Quantile(0.50)
		stats.P95 = h.digest.Quantile(0.95)
		stats.P99 = h.digest.Quantile(0.99)
	}

	return stats
}

// Len returns the fixed ring length.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.samples)
}

// Recorded returns how many samples have been recorded since start.
// Useful for testing.
func (h *History) Recorded() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.recorded
}
