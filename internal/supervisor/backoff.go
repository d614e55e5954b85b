package supervisor

import "time"

// BackoffConfig holds the configuration for restart backoff.
type BackoffConfig struct {
	Floor time.Duration // delay after the first failure (default: 500ms)
	Cap   time.Duration // maximum delay (default: 2m)
}

// DefaultBackoffConfig returns sensible defaults for backoff.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		Floor: 500 * time.Millisecond,
		Cap:   2 * time.Minute,
	}
}

// NextDelay is the pure backoff step function: a zero previous delay yields
// the floor, otherwise the delay doubles up to the cap. Kept independent of
// the watchdog loop so it can be tested without spawning processes.
func NextDelay(prev time.Duration, cfg BackoffConfig) time.Duration {
	if prev <= 0 {
		return cfg.Floor
	}

	next := prev * 2
	if next > cfg.Cap {
		next = cfg.Cap
	}
	return next
}

// Backoff tracks the current restart delay for one watchdog.
// The delay is monotonically non-decreasing across consecutive failures and
// resets to the floor after a successful spawn.
type Backoff struct {
	config  BackoffConfig
	current time.Duration
}

// NewBackoff creates a Backoff calculator with the given configuration.
func NewBackoff(cfg BackoffConfig) *Backoff {
	return &Backoff{config: cfg}
}

// Next advances to the next delay and returns it.
func (b *Backoff) Next() time.Duration {
	b.current = NextDelay(b.current, b.config)
	return b.current
}

// Current returns the delay last returned by Next, or zero before any failure.
func (b *Backoff) Current() time.Duration {
	return b.current
}

// Reset returns the backoff to its initial state, so the next failure
// starts again from the floor.
func (b *Backoff) Reset() {
	b.current = 0
}
