package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the configuration for errors and inconsistencies.
// Returns nil if valid, or an error describing the problem.
func Validate(cfg *Config) error {
	var errs []error

	// Target name is required
	if cfg.TargetName == "" {
		errs = append(errs, ValidationError{
			Field:   "target_name",
			Message: "target binary name is required",
		})
	}

	// Target name must be a bare name, not a path
	if cfg.TargetName != "" && strings.ContainsRune(cfg.TargetName, filepath.Separator) {
		errs = append(errs, ValidationError{
			Field:   "target_name",
			Message: fmt.Sprintf("must be a bare binary name, not a path (got %q)", cfg.TargetName),
		})
	}

	// Mode must be valid
	validModes := map[Mode]bool{ModeResilient: true, ModeSuperResilient: true}
	if !validModes[cfg.Mode] {
		errs = append(errs, ValidationError{
			Field:   "mode",
			Message: fmt.Sprintf("must be %q or %q (got %q)", ModeResilient, ModeSuperResilient, cfg.Mode),
		})
	}

	// Poll interval must be positive
	if cfg.PollInterval <= 0 {
		errs = append(errs, ValidationError{
			Field:   "poll_interval",
			Message: "must be positive",
		})
	}
	if cfg.PollJitter < 0 {
		errs = append(errs, ValidationError{
			Field:   "poll_jitter",
			Message: "must not be negative",
		})
	}

	// Backoff settings
	if cfg.BackoffFloor <= 0 {
		errs = append(errs, ValidationError{
			Field:   "backoff_floor",
			Message: "must be positive",
		})
	}
	if cfg.BackoffCap < cfg.BackoffFloor {
		errs = append(errs, ValidationError{
			Field:   "backoff_cap",
			Message: "must be >= backoff_floor",
		})
	}
	if cfg.FailureCeiling < 1 {
		errs = append(errs, ValidationError{
			Field:   "failure_ceiling",
			Message: "must be at least 1",
		})
	}
	if cfg.CrashLoopPause < 0 {
		errs = append(errs, ValidationError{
			Field:   "crash_loop_pause",
			Message: "must not be negative",
		})
	}

	// Probe interval must be positive when probing is enabled
	if cfg.ProbeEnabled && cfg.ProbeInterval <= 0 {
		errs = append(errs, ValidationError{
			Field:   "probe_interval",
			Message: "must be positive when probing is enabled",
		})
	}

	// Shutdown budgets
	if cfg.StopTimeout <= 0 {
		errs = append(errs, ValidationError{
			Field:   "stop_timeout",
			Message: "must be positive",
		})
	}
	if cfg.KillTimeout <= 0 {
		errs = append(errs, ValidationError{
			Field:   "kill_timeout",
			Message: "must be positive",
		})
	}

	// Log format must be valid
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[cfg.LogFormat] {
		errs = append(errs, ValidationError{
			Field:   "log_format",
			Message: fmt.Sprintf("must be 'json' or 'text' (got %q)", cfg.LogFormat),
		})
	}

	// Check mode needs a bounded duration
	if cfg.Check && cfg.CheckDuration <= 0 {
		errs = append(errs, ValidationError{
			Field:   "check_duration",
			Message: "must be positive in --check mode",
		})
	}

	// Return combined errors
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// ApplyCheckMode modifies config for --check mode.
func ApplyCheckMode(cfg *Config) {
	cfg.Mode = ModeResilient
	cfg.Verbose = true
	cfg.TUIEnabled = false
}
