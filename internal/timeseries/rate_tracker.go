// Package timeseries tracks how fast the worker is talking.
//
// A RateTracker counts events (stdout lines) and, from periodic samples
// of the running total, computes the average rate over the last 1, 10
// and 60 seconds. Add is lock-free; sampling and reading take a lock on
// the sample ring only.
package timeseries

import (
	"sync"
	"sync/atomic"
	"time"
)

const (
	// ringSize is the number of samples kept (one minute at 1 sample/sec).
	ringSize = 61

	window1s  = 1 * time.Second
	window10s = 10 * time.Second
	window60s = 60 * time.Second
)

// Clock interface for testing with deterministic time.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// point is the running total at one instant.
type point struct {
	at    time.Time
	total int64
}

// Rates is a point-in-time view of a RateTracker.
type Rates struct {
	Total int64

	// Events per second over each window.
	PerSec1s  float64
	PerSec10s float64
	PerSec60s float64

	// PerSecOverall is the average since the tracker started.
	PerSecOverall float64
}

// RateTracker counts events and computes windowed rates.
type RateTracker struct {
	total atomic.Int64

	mu      sync.RWMutex
	ring    [ringSize]point
	n       int // valid points in ring
	next    int // next write position
	started time.Time

	clock Clock
}

// NewRateTracker creates a tracker on the wall clock.
func NewRateTracker() *RateTracker {
	return NewRateTrackerWithClock(realClock{})
}

// NewRateTrackerWithClock creates a tracker reading time from clock.
func NewRateTrackerWithClock(clock Clock) *RateTracker {
	t := &RateTracker{clock: clock}
	t.started = clock.Now()
	t.push(point{at: t.started})
	return t
}

// Add counts n events. Non-positive n is ignored.
func (t *RateTracker) Add(n int64) {
	if n > 0 {
		t.total.Add(n)
	}
}

// RecordSample stores the running total. Call it about once a second.
func (t *RateTracker) RecordSample() {
	p := point{at: t.clock.Now(), total: t.total.Load()}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.push(p)
}

// push must be called with mu held (or before the tracker is shared).
func (t *RateTracker) push(p point) {
	t.ring[t.next] = p
	t.next = (t.next + 1) % ringSize
	if t.n < ringSize {
		t.n++
	}
}

// Rates computes the current rates.
func (t *RateTracker) Rates() Rates {
	now := t.clock.Now()
	total := t.total.Load()

	t.mu.RLock()
	defer t.mu.RUnlock()

	r := Rates{Total: total}
	if elapsed := now.Sub(t.started).Seconds(); elapsed > 0 {
		r.PerSecOverall = float64(total) / elapsed
	}
	r.PerSec1s = t.rateOver(now, total, window1s)
	r.PerSec10s = t.rateOver(now, total, window10s)
	r.PerSec60s = t.rateOver(now, total, window60s)
	return r
}

// rateOver uses the newest point at or before now-window as the baseline,
// or the oldest point when history is shorter than the window.
// Must be called with mu held.
func (t *RateTracker) rateOver(now time.Time, total int64, window time.Duration) float64 {
	if t.n == 0 {
		return 0
	}

	cutoff := now.Add(-window)
	base := t.at(t.n - 1) // oldest
	for i := 0; i < t.n; i++ {
		p := t.at(i) // newest first
		if !p.at.After(cutoff) {
			base = p
			break
		}
	}

	elapsed := now.Sub(base.at).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(total-base.total) / elapsed
}

// at returns the i-th newest point (0 = newest). Must be called with mu held.
func (t *RateTracker) at(i int) point {
	idx := (t.next - 1 - i + 2*ringSize) % ringSize
	return t.ring[idx]
}

// SampleCount returns the number of samples held.
func (t *RateTracker) SampleCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.n
}

// Run records a sample every interval until stop is closed.
func (t *RateTracker) Run(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			t.RecordSample()
		case <-stop:
			return
		}
	}
}
