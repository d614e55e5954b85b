// Package hardening applies best-effort protections to the supervisor's own
// process so the OS is less likely to reclaim it under resource pressure.
// Every step is advisory: failures are logged as warnings, never propagated.
package hardening

import (
	"log/slog"
	"syscall"
)

// bestPriority is the most favorable niceness the kernel allows.
const bestPriority = -20

// Result records which hardening steps took effect.
type Result struct {
	PriorityRaised bool
	OOMProtected   bool
}

// Harden raises scheduling priority and lowers OOM-killer eligibility for the
// current process. Insufficient privilege is common and expected; the
// supervisor continues unprotected when a step fails.
func Harden(logger *slog.Logger) Result {
	var res Result

	if err := syscall.Setpriority(syscall.PRIO_PROCESS, 0, bestPriority); err != nil {
		logger.Warn("priority_unchanged", "want", bestPriority, "error", err)
	} else {
		res.PriorityRaised = true
		logger.Info("priority_raised", "niceness", bestPriority)
	}

	if err := protectFromOOMKiller(); err != nil {
		logger.Warn("oom_protection_unavailable", "error", err)
	} else {
		res.OOMProtected = true
		logger.Info("oom_protection_applied")
	}

	return res
}
