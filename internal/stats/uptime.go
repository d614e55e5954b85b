// Package stats tracks child uptime distribution for the exit summary.
package stats

import (
	"sync"
	"time"

	"github.com/influxdata/tdigest"
)

// UptimeTracker accumulates child uptimes into a t-digest so the exit
// summary can report percentiles without storing every sample.
type UptimeTracker struct {
	mu      sync.Mutex
	digest  *tdigest.TDigest
	count   int64
	longest time.Duration
}

// NewUptimeTracker creates an empty tracker.
func NewUptimeTracker() *UptimeTracker {
	return &UptimeTracker{
		// ~100 centroids, ~10KB
		digest: tdigest.NewWithCompression(100),
	}
}

// Record adds one child uptime sample.
func (t *UptimeTracker) Record(uptime time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.digest.Add(uptime.Seconds(), 1)
	t.count++
	if uptime > t.longest {
		t.longest = uptime
	}
}

// Count returns the number of recorded samples.
func (t *UptimeTracker) Count() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

// Longest returns the largest recorded uptime.
func (t *UptimeTracker) Longest() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.longest
}

// Quantile returns the uptime at quantile q (0..1), or 0 with no samples.
func (t *UptimeTracker) Quantile(q float64) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.count == 0 {
		return 0
	}
	return time.Duration(t.digest.Quantile(q) * float64(time.Second))
}

// Percentiles returns the P50/P95/P99 uptimes.
func (t *UptimeTracker) Percentiles() (p50, p95, p99 time.Duration) {
	return t.Quantile(0.50), t.Quantile(0.95), t.Quantile(0.99)
}
