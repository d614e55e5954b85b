package supervisor

import (
	"testing"
	"time"
)

func TestJitterSource_Deterministic(t *testing.T) {
	j1 := NewJitterSource(42)
	j2 := NewJitterSource(42)

	for id := 0; id < 5; id++ {
		a := j1.PollJitter(id, 100*time.Millisecond)
		b := j2.PollJitter(id, 100*time.Millisecond)
		if a != b {
			t.Errorf("watchdog %d: jitter not deterministic: %v != %v", id, a, b)
		}
	}
}

func TestJitterSource_Bounds(t *testing.T) {
	j := NewJitterSourceFromTime()

	for id := 0; id < 50; id++ {
		d := j.PollJitter(id, 25*time.Millisecond)
		if d < 0 || d >= 25*time.Millisecond {
			t.Errorf("watchdog %d: jitter %v outside [0, 25ms)", id, d)
		}
	}
}

func TestJitterSource_ZeroMax(t *testing.T) {
	j := NewJitterSource(1)
	if d := j.PollJitter(0, 0); d != 0 {
		t.Errorf("PollJitter with zero max = %v, want 0", d)
	}
}
