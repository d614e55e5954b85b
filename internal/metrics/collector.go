// Package metrics provides Prometheus metrics for go-proc-sentry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector owns the supervisor's Prometheus metrics. All updates arrive via
// watchdog callbacks, so the collector never touches watchdog state directly.
type Collector struct {
	registry *prometheus.Registry

	info            *prometheus.GaugeVec
	watchdogs       prometheus.Gauge
	childrenRunning prometheus.Gauge
	spawnsTotal     prometheus.Counter
	spawnFailures   prometheus.Counter
	childExits      *prometheus.CounterVec
	crashLoopPauses prometheus.Counter
	childUptime     prometheus.Histogram
}

// NewCollector creates a Collector with its own registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),

		info: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "proc_sentry_info",
				Help: "Information about the supervised run (value always 1)",
			},
			[]string{"version", "target", "mode"},
		),

		watchdogs: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "proc_sentry_watchdogs",
				Help: "Number of watchdog instances",
			},
		),

		childrenRunning: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "proc_sentry_children_running",
				Help: "Child processes currently alive",
			},
		),

		spawnsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "proc_sentry_spawns_total",
				Help: "Total successful child starts",
			},
		),

		spawnFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "proc_sentry_spawn_failures_total",
				Help: "Total failed child start attempts",
			},
		),

		childExits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "proc_sentry_child_exits_total",
				Help: "Total child exits by class",
			},
			[]string{"class"},
		),

		crashLoopPauses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "proc_sentry_crash_loop_pauses_total",
				Help: "Times a watchdog hit the failure ceiling and paused",
			},
		),

		childUptime: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "proc_sentry_child_uptime_seconds",
				Help:    "Child process uptime at exit",
				Buckets: prometheus.ExponentialBuckets(0.1, 4, 10), // 100ms .. ~7h
			},
		),
	}

	c.registry.MustRegister(
		c.info,
		c.watchdogs,
		c.childrenRunning,
		c.spawnsTotal,
		c.spawnFailures,
		c.childExits,
		c.crashLoopPauses,
		c.childUptime,
	)

	return c
}

// Registry returns the collector's registry, for the HTTP server and the
// shutdown snapshot.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// SetInfo records the run's identity labels.
func (c *Collector) SetInfo(version, target, mode string) {
	c.info.WithLabelValues(version, target, mode).Set(1)
}

// SetWatchdogs records the number of watchdog instances.
func (c *Collector) SetWatchdogs(n int) {
	c.watchdogs.Set(float64(n))
}

// ChildStarted records a successful spawn.
func (c *Collector) ChildStarted() {
	c.spawnsTotal.Inc()
	c.childrenRunning.Inc()
}

// SpawnFailed records a failed spawn attempt. ceilingHit marks attempts that
// triggered the crash-loop pause.
func (c *Collector) SpawnFailed(ceilingHit bool) {
	c.spawnFailures.Inc()
	if ceilingHit {
		c.crashLoopPauses.Inc()
	}
}

// ChildExited records an exit with its uptime.
func (c *Collector) ChildExited(exitCode int, uptime time.Duration) {
	c.childrenRunning.Dec()
	c.childExits.WithLabelValues(exitClass(exitCode)).Inc()
	c.childUptime.Observe(uptime.Seconds())
}

// exitClass buckets an exit code for the exits counter.
func exitClass(code int) string {
	switch {
	case code == 0:
		return "clean"
	case code > 128:
		return "signal"
	default:
		return "error"
	}
}
