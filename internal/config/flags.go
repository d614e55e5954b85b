package config

import (
	"flag"
	"fmt"
	"os"
)

// ParseFlags parses command-line flags and returns a Config.
// Returns an error if required arguments are missing or invalid.
func ParseFlags() (*Config, error) {
	cfg := DefaultConfig()

	// Custom usage message
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `go-proc-sentry - keep a single external executable alive until interrupted

Usage:
  go-proc-sentry [flags] <target-binary-name>

Supervision Flags:
`)
		printFlagCategory([]string{"mode", "poll-interval", "poll-jitter", "system-dir"})

		fmt.Fprintf(os.Stderr, "\nRestart Policy:\n")
		printFlagCategory([]string{"backoff-floor", "backoff-cap", "failure-ceiling", "crash-loop-pause"})

		fmt.Fprintf(os.Stderr, "\nHealth Probing:\n")
		printFlagCategory([]string{"probe", "probe-interval"})

		fmt.Fprintf(os.Stderr, "\nShutdown:\n")
		printFlagCategory([]string{"stop-timeout", "kill-timeout"})

		fmt.Fprintf(os.Stderr, "\nObservability:\n")
		printFlagCategory([]string{"metrics", "metrics-dump", "v", "log-format", "tui"})

		fmt.Fprintf(os.Stderr, "\nSafety & Diagnostics:\n")
		printFlagCategory([]string{"check", "check-duration", "skip-preflight"})

		fmt.Fprintf(os.Stderr, `
Examples:
  # Supervise "worker" with a single watchdog
  go-proc-sentry worker

  # Three redundant watchdogs with Prometheus metrics
  go-proc-sentry -mode super-resilient -metrics 0.0.0.0:17092 worker

  # Validate the setup, run one watchdog for 10 seconds, then exit
  go-proc-sentry --check worker

`)
	}

	// Supervision flags
	mode := flag.String("mode", string(cfg.Mode), `Resilience mode: "resilient" (1 watchdog) or "super-resilient" (3)`)
	flag.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "Watchdog liveness poll interval")
	flag.DurationVar(&cfg.PollJitter, "poll-jitter", cfg.PollJitter, "Random per-watchdog poll desync")
	flag.StringVar(&cfg.SystemDir, "system-dir", cfg.SystemDir, "System-wide install location to search")

	// Restart policy
	flag.DurationVar(&cfg.BackoffFloor, "backoff-floor", cfg.BackoffFloor, "Initial restart backoff delay")
	flag.DurationVar(&cfg.BackoffCap, "backoff-cap", cfg.BackoffCap, "Maximum restart backoff delay")
	flag.IntVar(&cfg.FailureCeiling, "failure-ceiling", cfg.FailureCeiling, "Consecutive failures before the crash-loop pause")
	flag.DurationVar(&cfg.CrashLoopPause, "crash-loop-pause", cfg.CrashLoopPause, "Flat pause inserted at the failure ceiling")

	// Health probing
	flag.BoolVar(&cfg.ProbeEnabled, "probe", cfg.ProbeEnabled, "Probe child run state beyond liveness (Linux only)")
	flag.DurationVar(&cfg.ProbeInterval, "probe-interval", cfg.ProbeInterval, "Interval between health probes")

	// Shutdown
	flag.DurationVar(&cfg.StopTimeout, "stop-timeout", cfg.StopTimeout, "Per-watchdog join budget at shutdown")
	flag.DurationVar(&cfg.KillTimeout, "kill-timeout", cfg.KillTimeout, "Grace period before SIGTERM escalates to SIGKILL")

	// Observability
	flag.StringVar(&cfg.MetricsAddr, "metrics", cfg.MetricsAddr, "Prometheus metrics address (empty = disabled)")
	flag.BoolVar(&cfg.MetricsDump, "metrics-dump", cfg.MetricsDump, "Dump final metrics in Prometheus text format on shutdown")
	flag.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "Verbose logging")
	flag.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, `Log format: "json" or "text"`)
	flag.BoolVar(&cfg.TUIEnabled, "tui", cfg.TUIEnabled, "Enable live terminal dashboard")

	// Safety & Diagnostics (double-dash convention)
	flag.BoolVar(&cfg.Check, "check", cfg.Check, "Validate config and supervise with 1 watchdog for a bounded duration")
	flag.DurationVar(&cfg.CheckDuration, "check-duration", cfg.CheckDuration, "How long --check supervises before stopping")
	flag.BoolVar(&cfg.SkipPreflight, "skip-preflight", cfg.SkipPreflight, "Skip preflight checks")

	// Parse
	flag.Parse()

	cfg.Mode = Mode(*mode)

	// Positional argument: target binary name
	args := flag.Args()
	if len(args) >= 1 {
		cfg.TargetName = args[0]
	}

	return cfg, nil
}

// printFlagCategory prints flags matching the given names (helper for usage).
func printFlagCategory(names []string) {
	flag.VisitAll(func(f *flag.Flag) {
		for _, name := range names {
			if f.Name == name {
				fmt.Fprintf(os.Stderr, "  -%-18s %s\n", f.Name, f.Usage)
			}
		}
	})
}
