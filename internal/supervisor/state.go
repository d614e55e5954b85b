// Package supervisor implements the watchdog loop that keeps the supervised
// child process alive, restarting it with backoff until cancellation.
package supervisor

// State represents the current state of a watchdog.
type State int

const (
	// StateNoChild means the watchdog owns no child process.
	StateNoChild State = iota

	// StateSpawning means a child process is being started.
	StateSpawning

	// StateRunning means the child process is alive.
	StateRunning

	// StateBackoff means the watchdog is waiting before the next spawn attempt.
	StateBackoff

	// StateShuttingDown is the terminal state entered once cancellation
	// has been observed.
	StateShuttingDown
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateNoChild:
		return "no_child"
	case StateSpawning:
		return "spawning"
	case StateRunning:
		return "running"
	case StateBackoff:
		return "backoff"
	case StateShuttingDown:
		return "shutting_down"
	default:
		return "unknown"
	}
}

// IsTerminal returns true once the watchdog has begun its shutdown sequence.
func (s State) IsTerminal() bool {
	return s == StateShuttingDown
}
