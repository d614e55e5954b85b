// Package config provides configuration management for go-proc-sentry.
package config

import "time"

// Mode selects how many redundant watchdogs supervise the target.
type Mode string

const (
	// ModeResilient runs a single watchdog.
	ModeResilient Mode = "resilient"

	// ModeSuperResilient runs three redundant watchdogs, each capable of
	// restarting the target independently.
	ModeSuperResilient Mode = "super-resilient"
)

// Watchdogs returns the number of watchdog instances for the mode.
func (m Mode) Watchdogs() int {
	if m == ModeSuperResilient {
		return 3
	}
	return 1
}

// Config holds all configuration options for the supervisor.
type Config struct {
	// Target
	TargetName string `json:"target_name"` // binary name, resolved by the locator
	SystemDir  string `json:"system_dir"`  // system-wide install location candidate

	// Supervision
	Mode         Mode          `json:"mode"`
	PollInterval time.Duration `json:"poll_interval"`
	PollJitter   time.Duration `json:"poll_jitter"` // per-watchdog desync, random in [0, jitter)
	WaitInterval time.Duration `json:"wait_interval"`

	// Restart policy
	BackoffFloor   time.Duration `json:"backoff_floor"`
	BackoffCap     time.Duration `json:"backoff_cap"`
	FailureCeiling int           `json:"failure_ceiling"`
	CrashLoopPause time.Duration `json:"crash_loop_pause"`

	// Health probing (Linux only; no-op elsewhere)
	ProbeEnabled  bool          `json:"probe_enabled"`
	ProbeInterval time.Duration `json:"probe_interval"`

	// Shutdown
	StopTimeout time.Duration `json:"stop_timeout"` // per-watchdog join budget
	KillTimeout time.Duration `json:"kill_timeout"` // SIGTERM -> SIGKILL escalation

	// Observability
	MetricsAddr string `json:"metrics_addr"` // empty = no metrics server
	MetricsDump bool   `json:"metrics_dump"` // expfmt dump on shutdown
	Verbose     bool   `json:"verbose"`
	LogFormat   string `json:"log_format"` // json, text
	TUIEnabled  bool   `json:"tui"`

	// Diagnostic modes
	Check         bool          `json:"check"`
	CheckDuration time.Duration `json:"check_duration"`
	SkipPreflight bool          `json:"skip_preflight"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		// Target
		SystemDir: "/usr/local/bin",

		// Supervision
		Mode:         ModeResilient,
		PollInterval: 100 * time.Millisecond,
		PollJitter:   25 * time.Millisecond,
		WaitInterval: time.Second,

		// Restart policy
		BackoffFloor:   500 * time.Millisecond,
		BackoffCap:     2 * time.Minute,
		FailureCeiling: 5,
		CrashLoopPause: 30 * time.Second,

		// Health
		ProbeEnabled:  true,
		ProbeInterval: 5 * time.Second,

		// Shutdown
		StopTimeout: 10 * time.Second,
		KillTimeout: 5 * time.Second,

		// Observability
		MetricsAddr: "", // off unless asked for
		Verbose:     false,
		LogFormat:   "text",

		// Diagnostics
		CheckDuration: 10 * time.Second,
	}
}
