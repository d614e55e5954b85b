// Package preflight provides startup validation checks.
package preflight

import (
	"fmt"
	"os"
	"strings"
	"syscall"
)

// Check represents the result of a single preflight check.
type Check struct {
	Name     string // Name of the check
	Required int    // Required value (if applicable)
	Actual   int    // Actual value found
	Passed   bool   // Whether the check passed
	Warning  bool   // True if it's a warning (non-fatal)
	Message  string // Additional context
}

// Result holds the results of all preflight checks.
type Result struct {
	Checks []Check
	Passed bool
}

// String returns a human-readable summary of the check.
func (c Check) String() string {
	status := "✓"
	if !c.Passed {
		status = "✗"
	} else if c.Warning {
		status = "⚠"
	}

	if c.Required > 0 {
		return fmt.Sprintf("  %s %s: %d available (need %d)", status, c.Name, c.Actual, c.Required)
	}
	return fmt.Sprintf("  %s %s: %s", status, c.Name, c.Message)
}

// RunAll executes all preflight checks for the given watchdog count.
func RunAll(watchdogs int) *Result {
	result := &Result{
		Checks: make([]Check, 0, 2),
		Passed: true,
	}

	fdCheck := checkFileDescriptors(watchdogs)
	result.Checks = append(result.Checks, fdCheck)
	if !fdCheck.Passed {
		result.Passed = false
	}

	procCheck := checkProcessLimit(watchdogs)
	result.Checks = append(result.Checks, procCheck)
	if !procCheck.Passed {
		result.Passed = false
	}

	return result
}

// checkFileDescriptors verifies sufficient file descriptors are available.
// Each watchdog holds two capture pipes plus the child's inherited ends.
func checkFileDescriptors(watchdogs int) Check {
	var limit syscall.Rlimit
	syscall.Getrlimit(syscall.RLIMIT_NOFILE, &limit)

	required := watchdogs*10 + 32
	actual := int(limit.Cur)

	return Check{
		Name:     "file_descriptors",
		Required: required,
		Actual:   actual,
		Passed:   actual >= required,
		Message:  fmt.Sprintf("ulimit -n %d (need %d for %d watchdogs)", actual, required, watchdogs),
	}
}

// checkProcessLimit verifies sufficient process slots are available.
// syscall does not export RLIMIT_NPROC, so read /proc/self/limits instead.
func checkProcessLimit(watchdogs int) Check {
	required := watchdogs + 16

	data, err := os.ReadFile("/proc/self/limits")
	if err != nil {
		// Non-Linux or restricted access, assume OK
		return Check{
			Name:    "process_limit",
			Passed:  true,
			Warning: true,
			Message: "unable to check (non-Linux or restricted)",
		}
	}

	// Parse "Max processes" line
	actual := 0
	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(line, "Max processes") {
			fields := strings.Fields(line)
			if len(fields) >= 4 {
				if fields[3] == "unlimited" {
					actual = 1000000
				} else {
					fmt.Sscanf(fields[3], "%d", &actual)
				}
			}
			break
		}
	}

	if actual == 0 {
		return Check{
			Name:    "process_limit",
			Passed:  true,
			Warning: true,
			Message: "unable to determine (assuming OK)",
		}
	}

	return Check{
		Name:     "process_limit",
		Required: required,
		Actual:   actual,
		Passed:   actual >= required,
		Message:  fmt.Sprintf("ulimit -u %d (need %d)", actual, required),
	}
}

// PrintResults writes the check results to stdout.
func PrintResults(r *Result) {
	fmt.Println("Preflight checks:")
	for _, c := range r.Checks {
		fmt.Println(c.String())
	}
	if !r.Passed {
		fmt.Println("  (use -skip-preflight to override)")
	}
}
