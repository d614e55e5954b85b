package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/randomizedcoder/go-proc-sentry/internal/config"
	"github.com/randomizedcoder/go-proc-sentry/internal/locate"
	"github.com/randomizedcoder/go-proc-sentry/internal/logging"
	"github.com/randomizedcoder/go-proc-sentry/internal/metrics"
	"github.com/randomizedcoder/go-proc-sentry/internal/supervisor"
)

// installTarget writes a script as $HOME/<name>/<name> so the locator's first
// candidate resolves, and points HOME at a temp dir for the test's duration.
func installTarget(t *testing.T, name, body string) {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)

	dir := filepath.Join(home, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
}

func testConfig(name string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.TargetName = name
	cfg.SystemDir = "/nonexistent-system-dir"
	cfg.SkipPreflight = true

	// Tight intervals so supervision and shutdown complete quickly.
	cfg.PollInterval = 10 * time.Millisecond
	cfg.PollJitter = 0
	cfg.WaitInterval = 20 * time.Millisecond
	cfg.BackoffFloor = 10 * time.Millisecond
	cfg.BackoffCap = 50 * time.Millisecond
	cfg.CrashLoopPause = 100 * time.Millisecond
	cfg.ProbeEnabled = false
	cfg.StopTimeout = 5 * time.Second
	cfg.KillTimeout = 2 * time.Second

	return cfg
}

func newTestOrchestrator(cfg *config.Config) *Orchestrator {
	logger := logging.NewLoggerWithWriter(io.Discard, "text", "error")
	return New(cfg, logger, "test")
}

func TestSupervise_TargetNotFound(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg := testConfig("definitely-no-such-binary-7788")
	orch := newTestOrchestrator(cfg)

	err := orch.Supervise(context.Background())

	var notFound *locate.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("Supervise = %v, want *locate.NotFoundError", err)
	}
	if len(orch.Watchdogs()) != 0 {
		t.Errorf("watchdogs spawned despite fatal locate error: %d", len(orch.Watchdogs()))
	}
}

func TestSupervise_CleanShutdown(t *testing.T) {
	name := "sentry-orch-clean"
	installTarget(t, name, "sleep 30")

	cfg := testConfig(name)
	orch := newTestOrchestrator(cfg)

	done := make(chan error, 1)
	go func() { done <- orch.Supervise(context.Background()) }()

	// Let the watchdog spawn at least once, then stop.
	time.Sleep(300 * time.Millisecond)
	orch.RequestStop()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Supervise = %v, want nil", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Supervise did not return after stop request")
	}

	wds := orch.Watchdogs()
	if len(wds) != 1 {
		t.Fatalf("watchdogs = %d, want 1 in resilient mode", len(wds))
	}
	wd := wds[0]
	if wd.Spawns() < 1 {
		t.Errorf("Spawns = %d, want at least 1", wd.Spawns())
	}
	if wd.PID() != 0 {
		t.Errorf("PID = %d after shutdown, want 0", wd.PID())
	}
	if wd.State() != supervisor.StateShuttingDown {
		t.Errorf("State = %v, want shutting_down", wd.State())
	}
}

func TestSupervise_ContextCancellation(t *testing.T) {
	name := "sentry-orch-ctx"
	installTarget(t, name, "sleep 30")

	cfg := testConfig(name)
	orch := newTestOrchestrator(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- orch.Supervise(ctx) }()

	time.Sleep(200 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Supervise = %v, want nil", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Supervise did not return after context cancellation")
	}
}

func TestSupervise_CheckModeStopsOnItsOwn(t *testing.T) {
	name := "sentry-orch-check"
	installTarget(t, name, "sleep 30")

	cfg := testConfig(name)
	cfg.Check = true
	cfg.CheckDuration = 300 * time.Millisecond
	orch := newTestOrchestrator(cfg)

	done := make(chan error, 1)
	go func() { done <- orch.Supervise(context.Background()) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Supervise = %v, want nil", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("check mode did not stop after its duration")
	}

	if orch.Watchdogs()[0].Spawns() < 1 {
		t.Error("check mode never started the target")
	}
}

func TestSupervise_SuperResilientJoinsAllWatchdogs(t *testing.T) {
	name := "sentry-orch-super"
	installTarget(t, name, "sleep 30")

	cfg := testConfig(name)
	cfg.Mode = config.ModeSuperResilient
	orch := newTestOrchestrator(cfg)

	done := make(chan error, 1)
	go func() { done <- orch.Supervise(context.Background()) }()

	time.Sleep(300 * time.Millisecond)
	orch.RequestStop()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Supervise = %v, want nil", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Supervise did not return after stop request")
	}

	wds := orch.Watchdogs()
	if len(wds) != 3 {
		t.Fatalf("watchdogs = %d, want 3 in super-resilient mode", len(wds))
	}
	for _, wd := range wds {
		if wd.State() != supervisor.StateShuttingDown {
			t.Errorf("watchdog %d state = %v, want shutting_down", wd.ID(), wd.State())
		}
	}
}

func TestExitSummary_IncludesRecentChildOutput(t *testing.T) {
	name := "sentry-orch-output"
	installTarget(t, name, "echo hello-from-child\necho oops-from-child >&2\nsleep 30")

	cfg := testConfig(name)
	orch := newTestOrchestrator(cfg)

	done := make(chan error, 1)
	go func() { done <- orch.Supervise(context.Background()) }()

	time.Sleep(300 * time.Millisecond)
	orch.RequestStop()
	<-done

	var buf bytes.Buffer
	orch.writeExitSummary(&buf)

	out := buf.String()
	if !strings.Contains(out, "Recent Output") {
		t.Fatalf("summary missing recent output section:\n%s", out)
	}
	if !strings.Contains(out, "[stdout] hello-from-child") {
		t.Errorf("summary missing captured stdout line:\n%s", out)
	}
	if !strings.Contains(out, "[stderr] oops-from-child") {
		t.Errorf("summary missing captured stderr line:\n%s", out)
	}
}

func TestSupervise_RecordsLifecycleMetrics(t *testing.T) {
	name := "sentry-orch-metrics"
	// Exit cleanly and fast, so several clean exits accumulate.
	installTarget(t, name, "exit 0")

	cfg := testConfig(name)
	orch := newTestOrchestrator(cfg)

	done := make(chan error, 1)
	go func() { done <- orch.Supervise(context.Background()) }()

	time.Sleep(400 * time.Millisecond)
	orch.RequestStop()
	<-done

	snap, err := metrics.TakeSnapshot(orch.Collector().Registry())
	if err != nil {
		t.Fatalf("TakeSnapshot: %v", err)
	}

	if got := snap.CounterValue("proc_sentry_spawns_total"); got < 2 {
		t.Errorf("spawns_total = %v, want at least 2 respawns", got)
	}
	exits := snap.CounterValues("proc_sentry_child_exits_total", "class")
	if exits["clean"] < 2 {
		t.Errorf("exits[clean] = %v, want at least 2", exits["clean"])
	}
}
