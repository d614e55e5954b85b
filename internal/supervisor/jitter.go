package supervisor

import (
	"math/rand"
	"time"
)

// JitterSource provides deterministic, per-watchdog jitter values.
// Redundant watchdogs poll on the same nominal interval; a stable per-instance
// offset keeps them from waking in lockstep.
type JitterSource struct {
	configSeed int64
}

// NewJitterSource creates a new jitter source with the given config seed.
func NewJitterSource(configSeed int64) *JitterSource {
	return &JitterSource{configSeed: configSeed}
}

// NewJitterSourceFromTime creates a jitter source seeded from the current time.
func NewJitterSourceFromTime() *JitterSource {
	return NewJitterSource(time.Now().UnixNano())
}

// ForWatchdog returns a random number generator seeded for a specific
// watchdog. The same ID always produces the same sequence.
func (j *JitterSource) ForWatchdog(id int) *rand.Rand {
	seed := int64(id) ^ j.configSeed
	return rand.New(rand.NewSource(seed))
}

// PollJitter returns a stable jitter duration for a watchdog in [0, maxJitter).
func (j *JitterSource) PollJitter(id int, maxJitter time.Duration) time.Duration {
	if maxJitter <= 0 {
		return 0
	}
	return time.Duration(j.ForWatchdog(id).Int63n(int64(maxJitter)))
}
