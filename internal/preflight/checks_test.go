package preflight

import (
	"strings"
	"testing"
)

func TestRunAll_PassesUnderNormalLimits(t *testing.T) {
	// One watchdog needs only a handful of descriptors and process slots;
	// a CI runner always has that much headroom.
	result := RunAll(1)

	if len(result.Checks) != 2 {
		t.Fatalf("checks = %d, want 2", len(result.Checks))
	}
	if !result.Passed {
		for _, c := range result.Checks {
			t.Logf("check: %s", c.String())
		}
		t.Error("RunAll(1).Passed = false, want true")
	}
}

func TestRunAll_ScalesWithWatchdogs(t *testing.T) {
	one := RunAll(1)
	three := RunAll(3)

	if one.Checks[0].Required >= three.Checks[0].Required {
		t.Errorf("fd requirement did not scale: 1 watchdog needs %d, 3 need %d",
			one.Checks[0].Required, three.Checks[0].Required)
	}
}

func TestCheck_String(t *testing.T) {
	passed := Check{Name: "file_descriptors", Required: 42, Actual: 1024, Passed: true}
	if s := passed.String(); !strings.Contains(s, "✓") || !strings.Contains(s, "1024") {
		t.Errorf("String() = %q, want pass marker and actual value", s)
	}

	failed := Check{Name: "file_descriptors", Required: 4096, Actual: 64, Passed: false}
	if s := failed.String(); !strings.Contains(s, "✗") {
		t.Errorf("String() = %q, want fail marker", s)
	}

	warning := Check{Name: "process_limit", Passed: true, Warning: true, Message: "unable to check"}
	if s := warning.String(); !strings.Contains(s, "⚠") || !strings.Contains(s, "unable to check") {
		t.Errorf("String() = %q, want warning marker and message", s)
	}
}
