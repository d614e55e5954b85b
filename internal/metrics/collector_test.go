package metrics

import (
	"strings"
	"testing"
	"time"
)

func TestExitClass(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{0, "clean"},
		{1, "error"},
		{3, "error"},
		{128, "error"},
		{129, "signal"}, // 128+SIGHUP
		{137, "signal"}, // 128+SIGKILL
		{143, "signal"}, // 128+SIGTERM
	}

	for _, tt := range tests {
		if got := exitClass(tt.code); got != tt.want {
			t.Errorf("exitClass(%d) = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestCollector_Lifecycle(t *testing.T) {
	c := NewCollector()
	c.SetInfo("test", "worker", "resilient")
	c.SetWatchdogs(1)

	c.ChildStarted()
	c.ChildExited(0, 2*time.Second)
	c.ChildStarted()
	c.ChildExited(137, 500*time.Millisecond)
	c.SpawnFailed(false)
	c.SpawnFailed(true)

	snap, err := TakeSnapshot(c.Registry())
	if err != nil {
		t.Fatalf("TakeSnapshot: %v", err)
	}

	if got := snap.CounterValue("proc_sentry_spawns_total"); got != 2 {
		t.Errorf("spawns_total = %v, want 2", got)
	}
	if got := snap.CounterValue("proc_sentry_spawn_failures_total"); got != 2 {
		t.Errorf("spawn_failures_total = %v, want 2", got)
	}
	if got := snap.CounterValue("proc_sentry_crash_loop_pauses_total"); got != 1 {
		t.Errorf("crash_loop_pauses_total = %v, want 1", got)
	}

	exits := snap.CounterValues("proc_sentry_child_exits_total", "class")
	if exits["clean"] != 1 {
		t.Errorf("exits[clean] = %v, want 1", exits["clean"])
	}
	if exits["signal"] != 1 {
		t.Errorf("exits[signal] = %v, want 1", exits["signal"])
	}
}

func TestSnapshot_AbsentMetric(t *testing.T) {
	snap, err := TakeSnapshot(NewCollector().Registry())
	if err != nil {
		t.Fatalf("TakeSnapshot: %v", err)
	}

	if got := snap.CounterValue("proc_sentry_no_such_metric"); got != 0 {
		t.Errorf("CounterValue(absent) = %v, want 0", got)
	}
	if got := snap.CounterValues("proc_sentry_no_such_metric", "class"); len(got) != 0 {
		t.Errorf("CounterValues(absent) = %v, want empty", got)
	}
}

func TestSnapshot_WriteText(t *testing.T) {
	c := NewCollector()
	c.ChildStarted()

	snap, err := TakeSnapshot(c.Registry())
	if err != nil {
		t.Fatalf("TakeSnapshot: %v", err)
	}

	var sb strings.Builder
	if err := snap.WriteText(&sb, "proc_sentry_"); err != nil {
		t.Fatalf("WriteText: %v", err)
	}

	out := sb.String()
	if !strings.Contains(out, "proc_sentry_spawns_total 1") {
		t.Errorf("output missing spawns counter:\n%s", out)
	}
	if !strings.Contains(out, "# HELP proc_sentry_spawns_total") {
		t.Errorf("output missing HELP line:\n%s", out)
	}
}
