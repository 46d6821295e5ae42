// Package stats records the worker's startup timeline and formats the
// exit summary.
package stats

import (
	"sort"
	"sync"
	"time"

	"github.com/influxdata/tdigest"

	"github.com/randomizedcoder/go-worker-shell/internal/parser"
)

// Phase is one lifecycle status and how long the worker stayed in it.
type Phase struct {
	Status parser.Status
	// Offset is measured from the worker start.
	Offset   time.Duration
	Duration time.Duration
}

// TimelineSnapshot is a point-in-time copy of a Timeline.
type TimelineSnapshot struct {
	Started     bool
	Ready       bool
	TimeToReady time.Duration
	Phases      []Phase

	Lines          int64
	IntervalP50    time.Duration
	IntervalP95    time.Duration
	IntervalP99    time.Duration
	IntervalMax    time.Duration
	UnclassifiedN  int64
	ReadyAnnounced int64
}

// Timeline tracks when each status was first seen and the spacing of
// stdout lines. Safe for concurrent use.
type Timeline struct {
	mu  sync.Mutex
	now func() time.Time

	workerStart time.Time
	readyAt     time.Time
	firstSeen   map[parser.Status]time.Time
	counts      [parser.NumStatuses]int64

	lastLine    time.Time
	lines       int64
	intervals   *tdigest.TDigest // milliseconds between consecutive lines
	maxInterval time.Duration
}

// NewTimeline creates an empty timeline.
func NewTimeline() *Timeline {
	return NewTimelineWithClock(time.Now)
}

// NewTimelineWithClock creates a timeline that reads time from now.
func NewTimelineWithClock(now func() time.Time) *Timeline {
	return &Timeline{
		now:       now,
		firstSeen: make(map[parser.Status]time.Time),
		intervals: tdigest.NewWithCompression(100),
	}
}

// WorkerStarted marks time zero.
func (t *Timeline) WorkerStarted() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.workerStart = t.now()
}

// ObserveLine records one stdout line.
func (t *Timeline) ObserveLine(s parser.Status) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if !t.lastLine.IsZero() {
		gap := now.Sub(t.lastLine)
		t.intervals.Add(float64(gap)/float64(time.Millisecond), 1)
		if gap > t.maxInterval {
			t.maxInterval = gap
		}
	}
	t.lastLine = now
	t.lines++

	if int(s) >= 0 && int(s) < parser.NumStatuses {
		t.counts[s]++
	}
	if s == parser.Unclassified {
		return
	}
	if _, seen := t.firstSeen[s]; !seen {
		t.firstSeen[s] = now
	}
}

// MarkReady records the switch to the main surface. Only the first call
// counts.
func (t *Timeline) MarkReady() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.readyAt.IsZero() {
		t.readyAt = t.now()
	}
}

// Snapshot returns a copy of the timeline.
func (t *Timeline) Snapshot() TimelineSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := TimelineSnapshot{
		Started:        !t.workerStart.IsZero(),
		Ready:          !t.readyAt.IsZero(),
		Lines:          t.lines,
		IntervalMax:    t.maxInterval,
		UnclassifiedN:  t.counts[parser.Unclassified],
		ReadyAnnounced: t.counts[parser.Ready],
	}

	if snap.Started && snap.Ready {
		snap.TimeToReady = t.readyAt.Sub(t.workerStart)
	}

	if t.intervals.Count() > 0 {
		snap.IntervalP50 = msToDuration(t.intervals.Quantile(0.50))
		snap.IntervalP95 = msToDuration(t.intervals.Quantile(0.95))
		snap.IntervalP99 = msToDuration(t.intervals.Quantile(0.99))
	}

	snap.Phases = t.phasesLocked()
	return snap
}

// phasesLocked orders statuses by first appearance. A phase lasts until
// the next one starts; the last one has no duration.
func (t *Timeline) phasesLocked() []Phase {
	phases := make([]Phase, 0, len(t.firstSeen))
	for s, at := range t.firstSeen {
		phases = append(phases, Phase{Status: s, Offset: t.offset(at)})
	}
	sort.Slice(phases, func(i, j int) bool {
		if phases[i].Offset == phases[j].Offset {
			return phases[i].Status < phases[j].Status
		}
		return phases[i].Offset < phases[j].Offset
	})
	for i := 0; i+1 < len(phases); i++ {
		phases[i].Duration = phases[i+1].Offset - phases[i].Offset
	}
	return phases
}

func (t *Timeline) offset(at time.Time) time.Duration {
	if t.workerStart.IsZero() {
		return 0
	}
	return at.Sub(t.workerStart)
}

func msToDuration(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}
