// Package metrics provides Prometheus metrics for the worker shell.
//
// Every metric is owned by a Collector and registered on the registry
// passed to NewCollectorWithRegistry, so tests can use a private registry.
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/randomizedcoder/go-worker-shell/internal/parser"
	"github.com/randomizedcoder/go-worker-shell/internal/transition"
)

const namespace = "worker_shell"

// Collector manages all Prometheus metrics for the shell.
type Collector struct {
	// --- Shell ---
	info    *prometheus.GaugeVec
	uiState prometheus.Gauge

	// --- Worker process ---
	workerUp       prometheus.Gauge
	spawnFailures  prometheus.Counter
	exitsTotal     *prometheus.CounterVec
	uptimeSeconds  prometheus.Gauge
	timeToReady    prometheus.Gauge
	terminations   *prometheus.CounterVec
	startTimestamp prometheus.Gauge

	// --- Status stream ---
	linesTotal    *prometheus.CounterVec
	readErrors    prometheus.Counter
	notifications prometheus.Counter

	mu        sync.Mutex
	startTime time.Time
	lines     [parser.NumStatuses]int64
	exitCodes map[int]int64
}

// CollectorConfig holds configuration for the collector.
type CollectorConfig struct {
	Version string
	Mode    string
}

// NewCollector creates a collector on the default registry.
func NewCollector(cfg CollectorConfig) *Collector {
	return NewCollectorWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewCollectorWithRegistry creates a collector with a custom registry.
// Useful for testing.
func NewCollectorWithRegistry(cfg CollectorConfig, registry prometheus.Registerer) *Collector {
	c := &Collector{
		info: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "info",
			Help:      "Information about the shell (value always 1)",
		}, []string{"version", "mode"}),
		uiState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ui_state",
			Help:      "Visible surface: 0 = splash, 1 = main",
		}),

		workerUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "worker_up",
			Help:      "1 while the worker process is running",
		}),
		spawnFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "spawn_failures_total",
			Help:      "Worker launches that failed",
		}),
		exitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_exits_total",
			Help:      "Worker exits by exit code",
		}, []string{"code"}),
		uptimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "worker_uptime_seconds",
			Help:      "Uptime of the last worker run, set on exit",
		}),
		timeToReady: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "time_to_ready_seconds",
			Help:      "Seconds from worker start to its first READY status",
		}),
		terminations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "terminations_total",
			Help:      "Shutdown termination attempts by method (pid, name, none)",
		}, []string{"method"}),
		startTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "worker_start_timestamp_seconds",
			Help:      "Unix time the worker was started",
		}),

		linesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_total",
			Help:      "Worker stdout lines by classified status",
		}, []string{"status"}),
		readErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "read_errors_total",
			Help:      "Worker stdout lines skipped because they could not be decoded",
		}),
		notifications: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Splash update notifications emitted",
		}),

		exitCodes: make(map[int]int64),
	}

	registry.MustRegister(
		c.info,
		c.uiState,
		c.workerUp,
		c.spawnFailures,
		c.exitsTotal,
		c.uptimeSeconds,
		c.timeToReady,
		c.terminations,
		c.startTimestamp,
		c.linesTotal,
		c.readErrors,
		c.notifications,
	)

	c.info.WithLabelValues(cfg.Version, cfg.Mode).Set(1)

	// Pre-create every status series so rates start at zero.
	for s := 0; s < parser.NumStatuses; s++ {
		c.linesTotal.WithLabelValues(parser.Status(s).String())
	}

	return c
}

// =============================================================================
// Update Methods
// =============================================================================

// RecordLine counts one stdout line.
func (c *Collector) RecordLine(s parser.Status) {
	c.linesTotal.WithLabelValues(s.String()).Inc()
	if int(s) >= 0 && int(s) < parser.NumStatuses {
		c.mu.Lock()
		c.lines[s]++
		c.mu.Unlock()
	}
}

// RecordReadError counts one undecodable stdout line.
func (c *Collector) RecordReadError() {
	c.readErrors.Inc()
}

// RecordNotification counts one splash update.
func (c *Collector) RecordNotification() {
	c.notifications.Inc()
}

// SpawnFailed records a failed launch.
func (c *Collector) SpawnFailed() {
	c.spawnFailures.Inc()
}

// WorkerStarted records a successful launch.
func (c *Collector) WorkerStarted() {
	now := time.Now()
	c.mu.Lock()
	c.startTime = now
	c.mu.Unlock()

	c.workerUp.Set(1)
	c.startTimestamp.Set(float64(now.Unix()))
}

// WorkerExited records the worker's exit.
func (c *Collector) WorkerExited(exitCode int, uptime time.Duration) {
	c.workerUp.Set(0)
	c.uptimeSeconds.Set(uptime.Seconds())
	c.exitsTotal.WithLabelValues(strconv.Itoa(exitCode)).Inc()

	c.mu.Lock()
	c.exitCodes[exitCode]++
	c.mu.Unlock()
}

// SetUIState publishes the visible surface.
func (c *Collector) SetUIState(s transition.UIState) {
	c.uiState.Set(float64(s))
}

// RecordReady publishes the switch to main. Time to ready is measured
// from WorkerStarted.
func (c *Collector) RecordReady() {
	c.SetUIState(transition.StateMain)

	c.mu.Lock()
	start := c.startTime
	c.mu.Unlock()
	if !start.IsZero() {
		c.timeToReady.Set(time.Since(start).Seconds())
	}
}

// RecordTermination counts a shutdown attempt by method.
func (c *Collector) RecordTermination(method string) {
	c.terminations.WithLabelValues(method).Inc()
}

// =============================================================================
// Notifier decorator
// =============================================================================

type countingNotifier struct {
	next      transition.Notifier
	collector *Collector
}

func (n countingNotifier) Emit(event, payload string) error {
	n.collector.RecordNotification()
	return n.next.Emit(event, payload)
}

// CountingNotifier wraps next so every emitted event is counted.
func (c *Collector) CountingNotifier(next transition.Notifier) transition.Notifier {
	return countingNotifier{next: next, collector: c}
}

// =============================================================================
// Summary
// =============================================================================

// Summary holds counters for the exit report.
type Summary struct {
	LinesByStatus map[string]int64
	TotalLines    int64
	ExitCodes     map[int]int64
}

// GenerateSummary creates a summary of the collected counters.
func (c *Collector) GenerateSummary() *Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := &Summary{
		LinesByStatus: make(map[string]int64, parser.NumStatuses),
		ExitCodes:     make(map[int]int64, len(c.exitCodes)),
	}
	for i, n := range c.lines {
		s.LinesByStatus[parser.Status(i).String()] = n
		s.TotalLines += n
	}
	for code, n := range c.exitCodes {
		s.ExitCodes[code] = n
	}
	return s
}
