// Package orchestrator wires the locator, hardener, cancellation source and
// watchdogs together for one supervised run.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/randomizedcoder/go-proc-sentry/internal/config"
	"github.com/randomizedcoder/go-proc-sentry/internal/hardening"
	"github.com/randomizedcoder/go-proc-sentry/internal/locate"
	"github.com/randomizedcoder/go-proc-sentry/internal/metrics"
	"github.com/randomizedcoder/go-proc-sentry/internal/preflight"
	"github.com/randomizedcoder/go-proc-sentry/internal/stats"
	"github.com/randomizedcoder/go-proc-sentry/internal/supervisor"
)

// Orchestrator coordinates all components for one supervised run.
type Orchestrator struct {
	config  *config.Config
	logger  *slog.Logger
	version string

	collector     *metrics.Collector
	metricsServer *metrics.Server
	uptimes       *stats.UptimeTracker

	watchdogs []*supervisor.Watchdog
	flag      *supervisor.Flag

	startTime time.Time
}

// New creates a new Orchestrator with the given configuration.
func New(cfg *config.Config, logger *slog.Logger, version string) *Orchestrator {
	collector := metrics.NewCollector()

	orch := &Orchestrator{
		config:    cfg,
		logger:    logger,
		version:   version,
		collector: collector,
		uptimes:   stats.NewUptimeTracker(),
	}

	if cfg.MetricsAddr != "" {
		orch.metricsServer = metrics.NewServer(cfg.MetricsAddr, collector.Registry(), logger)
	}

	return orch
}

// Supervise runs the full supervision sequence: locate the target, harden
// this process, install cancellation, spawn the watchdogs, block until
// cancellation, then join every watchdog. It blocks until shutdown.
//
// Fatal errors (*locate.NotFoundError, *locate.PermissionError, failed
// preflight) abort before any watchdog starts. Everything after that point
// degrades to warnings.
func (o *Orchestrator) Supervise(ctx context.Context) error {
	o.startTime = time.Now()

	// Preflight checks
	if !o.config.SkipPreflight {
		result := preflight.RunAll(o.config.Mode.Watchdogs())
		preflight.PrintResults(result)
		if !result.Passed {
			return fmt.Errorf("preflight checks failed (use -skip-preflight to override)")
		}
	}

	// Locate the target; not found / unfixable permissions are fatal.
	locator := locate.New(o.config.TargetName, o.config.SystemDir, o.logger)
	target, err := locator.Locate()
	if err != nil {
		return err
	}

	// Harden this process; never fatal.
	hardening.Harden(o.logger)

	// Install the cancellation source; degrade gracefully if taken.
	flag, err := supervisor.InstallHandler(o.logger)
	if err != nil {
		if errors.Is(err, supervisor.ErrHandlerInstalled) {
			o.logger.Warn("cancellation_unavailable",
				"error", err,
				"consequence", "supervision stops only on external kill",
			)
		} else {
			o.logger.Warn("cancellation_install_failed", "error", err)
		}
	}
	o.flag = flag

	// Start the metrics server, if configured.
	if o.metricsServer != nil {
		if err := o.metricsServer.Start(); err != nil {
			o.logger.Warn("metrics_server_start_failed", "error", err)
		}
	}
	o.collector.SetInfo(o.version, target.Path, string(o.config.Mode))

	// Spawn the watchdogs.
	n := o.config.Mode.Watchdogs()
	o.collector.SetWatchdogs(n)
	o.logger.Info("supervision_starting",
		"target", target.Path,
		"mode", string(o.config.Mode),
		"watchdogs", n,
	)

	jitter := supervisor.NewJitterSourceFromTime()

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wd := supervisor.New(supervisor.Config{
			ID:     i,
			Target: target,
			Flag:   o.flag,
			Logger: o.logger,
			Callbacks: supervisor.Callbacks{
				OnSpawn:        o.onSpawn,
				OnExit:         o.onExit,
				OnSpawnFailure: o.onSpawnFailure,
			},
			PollInterval:   o.config.PollInterval,
			PollJitter:     jitter.PollJitter(i, o.config.PollJitter),
			Backoff:        supervisor.BackoffConfig{Floor: o.config.BackoffFloor, Cap: o.config.BackoffCap},
			FailureCeiling: o.config.FailureCeiling,
			CrashLoopPause: o.config.CrashLoopPause,
			ProbeEnabled:   o.config.ProbeEnabled,
			ProbeInterval:  o.config.ProbeInterval,
			Reconcile:      o.config.Mode == config.ModeSuperResilient,
			KillTimeout:    o.config.KillTimeout,
			Verbose:        o.config.Verbose,
		})
		o.watchdogs = append(o.watchdogs, wd)

		wg.Add(1)
		go func() {
			defer wg.Done()
			wd.Run()
		}()
	}

	// Block until cancellation, polling the flag at a coarse interval so
	// the control goroutine never busy-spins.
	o.wait(ctx)

	// Join every watchdog; each finishes its own shutdown sequence first.
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(o.config.StopTimeout):
		o.logger.Warn("watchdogs_slow_to_stop",
			"waited", o.config.StopTimeout.String(),
			"reason", "watchdog finishing an in-flight sleep or child termination",
		)
		<-done
	}

	// Tear down observability and report.
	if o.metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := o.metricsServer.Shutdown(shutdownCtx); err != nil {
			o.logger.Warn("metrics_server_shutdown_error", "error", err)
		}
	}

	o.writeExitSummary(os.Stdout)

	return nil
}

// wait blocks until the cancellation flag flips. Context cancellation and
// the --check duration are folded into the same flag so every watchdog
// observes a single stop signal.
func (o *Orchestrator) wait(ctx context.Context) {
	var checkTimer <-chan time.Time
	if o.config.Check {
		checkTimer = time.After(o.config.CheckDuration)
	}

	ticker := time.NewTicker(o.config.WaitInterval)
	defer ticker.Stop()

	for !o.flag.Stopping() {
		select {
		case <-ctx.Done():
			o.logger.Info("context_cancelled")
			o.flag.RequestStop()
		case <-checkTimer:
			o.logger.Info("check_duration_elapsed", "duration", o.config.CheckDuration.String())
			o.flag.RequestStop()
		case <-ticker.C:
		}
	}
}

// RequestStop flips the shared cancellation flag, as the signal handler
// would. Exposed for the dashboard's quit key and for tests.
func (o *Orchestrator) RequestStop() {
	if o.flag != nil {
		o.flag.RequestStop()
	}
}

// Watchdogs returns the spawned watchdogs, for the dashboard.
func (o *Orchestrator) Watchdogs() []*supervisor.Watchdog {
	return o.watchdogs
}

// Collector returns the metrics collector.
func (o *Orchestrator) Collector() *metrics.Collector {
	return o.collector
}

// Callback handlers

func (o *Orchestrator) onSpawn(id, pid int) {
	o.collector.ChildStarted()
}

func (o *Orchestrator) onExit(id, exitCode int, uptime time.Duration) {
	o.collector.ChildExited(exitCode, uptime)
	o.uptimes.Record(uptime)
}

func (o *Orchestrator) onSpawnFailure(id, failures int, delay time.Duration) {
	o.collector.SpawnFailed(failures == o.config.FailureCeiling)
}

// recentOutputLines is how many captured lines each stream contributes to
// the exit summary.
const recentOutputLines = 5

// writeExitSummary writes a summary of the supervised run.
func (o *Orchestrator) writeExitSummary(w io.Writer) {
	snap, err := metrics.TakeSnapshot(o.collector.Registry())
	if err != nil {
		o.logger.Warn("metrics_snapshot_failed", "error", err)
		return
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "═══════════════════════════════════════════════════════════════════")
	fmt.Fprintln(w, "                      go-proc-sentry Exit Summary")
	fmt.Fprintln(w, "═══════════════════════════════════════════════════════════════════")
	fmt.Fprintf(w, "Run Duration:           %s\n", formatDuration(time.Since(o.startTime)))
	fmt.Fprintf(w, "Mode:                   %s (%d watchdogs)\n", o.config.Mode, o.config.Mode.Watchdogs())
	fmt.Fprintln(w)

	if o.uptimes.Count() > 0 {
		p50, p95, p99 := o.uptimes.Percentiles()
		fmt.Fprintln(w, "Child Uptime Distribution:")
		fmt.Fprintf(w, "  P50 (median):         %s\n", formatDuration(p50))
		fmt.Fprintf(w, "  P95:                  %s\n", formatDuration(p95))
		fmt.Fprintf(w, "  P99:                  %s\n", formatDuration(p99))
		fmt.Fprintf(w, "  Longest:              %s\n", formatDuration(o.uptimes.Longest()))
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "Lifecycle:")
	fmt.Fprintf(w, "  Child Starts:         %.0f\n", snap.CounterValue("proc_sentry_spawns_total"))
	fmt.Fprintf(w, "  Spawn Failures:       %.0f\n", snap.CounterValue("proc_sentry_spawn_failures_total"))
	fmt.Fprintf(w, "  Crash-Loop Pauses:    %.0f\n", snap.CounterValue("proc_sentry_crash_loop_pauses_total"))

	exits := snap.CounterValues("proc_sentry_child_exits_total", "class")
	if len(exits) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Child Exits:")
		for _, class := range []string{"clean", "error", "signal"} {
			if count, ok := exits[class]; ok {
				fmt.Fprintf(w, "  %-10s %.0f\n", class, count)
			}
		}
	}

	for _, wd := range o.watchdogs {
		stdout, stderr := wd.RecentOutput(recentOutputLines)
		if len(stdout)+len(stderr) == 0 {
			continue
		}
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Watchdog %d Recent Output:\n", wd.ID())
		for _, line := range stdout {
			fmt.Fprintf(w, "  [stdout] %s\n", line)
		}
		for _, line := range stderr {
			fmt.Fprintf(w, "  [stderr] %s\n", line)
		}
	}
	fmt.Fprintln(w, "═══════════════════════════════════════════════════════════════════")

	if o.config.MetricsDump {
		fmt.Fprintln(w)
		if err := snap.WriteText(w, "proc_sentry_"); err != nil {
			o.logger.Warn("metrics_dump_failed", "error", err)
		}
	}
}

// formatDuration formats a duration as HH:MM:SS.
func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
