package supervisor

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/randomizedcoder/go-proc-sentry/internal/locate"
	"github.com/randomizedcoder/go-proc-sentry/internal/logging"
)

// Callbacks contains optional callback functions for watchdog events.
type Callbacks struct {
	// OnStateChange is called when the watchdog state changes.
	OnStateChange func(id int, oldState, newState State)

	// OnSpawn is called when a child process starts.
	OnSpawn func(id int, pid int)

	// OnExit is called when a child process exits, for any reason.
	OnExit func(id int, exitCode int, uptime time.Duration)

	// OnSpawnFailure is called when a spawn attempt fails, before the
	// backoff sleep.
	OnSpawnFailure func(id int, failures int, delay time.Duration)
}

// Config holds configuration for creating a new Watchdog.
type Config struct {
	ID        int
	Target    *locate.TargetSpec
	Flag      *Flag
	Logger    *slog.Logger
	Callbacks Callbacks

	PollInterval time.Duration
	PollJitter   time.Duration // stable per-instance offset, already resolved
	Backoff      BackoffConfig

	FailureCeiling int
	CrashLoopPause time.Duration

	ProbeEnabled  bool
	ProbeInterval time.Duration

	// Reconcile kills stray processes running the target path before each
	// spawn. Used only in the highest-resilience configuration; it is a
	// blunt instrument that will take down any process sharing the path.
	Reconcile bool

	KillTimeout time.Duration
	Verbose     bool
}

// exitStatus is delivered by the wait goroutine when the child exits.
type exitStatus struct {
	code int
	err  error
}

// child is the watchdog's exclusively-owned handle to a running process.
// No other component may signal or wait on it.
type child struct {
	cmd       *exec.Cmd
	pid       int
	startedAt time.Time
	exitCh    chan exitStatus
}

// Watchdog owns one child process slot. It repeatedly checks liveness,
// restarts the child on death with failure-driven backoff, and exits its
// loop only when the cancellation flag flips.
type Watchdog struct {
	cfg     Config
	logger  *slog.Logger
	backoff *Backoff

	// State management
	state   State
	stateMu sync.RWMutex

	// Loop-owned; never touched outside Run's goroutine.
	ch        *child
	lastProbe time.Time

	// Mirrors readable from other goroutines (dashboard, tests).
	pid       atomic.Int64
	startedNs atomic.Int64
	failures  atomic.Int32
	spawns    atomic.Int64

	stdout *logging.OutputHandler
	stderr *logging.OutputHandler
}

// New creates a new Watchdog with the given configuration.
func New(cfg Config) *Watchdog {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 100 * time.Millisecond
	}
	if cfg.Backoff == (BackoffConfig{}) {
		cfg.Backoff = DefaultBackoffConfig()
	}
	if cfg.FailureCeiling <= 0 {
		cfg.FailureCeiling = 5
	}
	if cfg.CrashLoopPause <= 0 {
		cfg.CrashLoopPause = 30 * time.Second
	}
	if cfg.KillTimeout <= 0 {
		cfg.KillTimeout = 5 * time.Second
	}
	if cfg.ProbeInterval <= 0 {
		cfg.ProbeInterval = 5 * time.Second
	}

	return &Watchdog{
		cfg:     cfg,
		logger:  cfg.Logger,
		backoff: NewBackoff(cfg.Backoff),
		state:   StateNoChild,
		stdout:  logging.NewOutputHandler(cfg.ID, "stdout", cfg.Logger, cfg.Verbose),
		stderr:  logging.NewOutputHandler(cfg.ID, "stderr", cfg.Logger, cfg.Verbose),
	}
}

// Run executes the watchdog loop. It blocks until the cancellation flag
// flips, then terminates the owned child (if any) and returns. This is the
// sole exit path; every transient error is absorbed inside the loop.
func (w *Watchdog) Run() {
	w.logger.Debug("watchdog_starting",
		"watchdog_id", w.cfg.ID,
		"target", w.cfg.Target.Path,
		"poll_interval", (w.cfg.PollInterval + w.cfg.PollJitter).String(),
	)

	for {
		if w.cfg.Flag.Stopping() {
			w.shutdown()
			return
		}

		w.iterate()

		time.Sleep(w.cfg.PollInterval + w.cfg.PollJitter)
	}
}

// iterate runs one loop body. A panic anywhere inside is recovered here and
// converted into a log line plus a no-child transition: a dead watchdog
// would defeat the purpose of supervision.
func (w *Watchdog) iterate() {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("watchdog_iteration_panic",
				"watchdog_id", w.cfg.ID,
				"panic", fmt.Sprint(r),
			)
			w.discardChild()
		}
	}()

	if w.ch == nil {
		w.attemptSpawn()
		return
	}
	w.pollChild()
}

// attemptSpawn reconciles strays if configured, then tries to start a new
// child. On failure it backs off in place; cancellation is observed on the
// next iteration after the sleep completes.
func (w *Watchdog) attemptSpawn() {
	if w.cfg.Reconcile {
		w.reapStrays()
	}

	w.setState(StateSpawning)

	if err := w.spawn(); err != nil {
		failures := int(w.failures.Add(1))
		delay := w.backoff.Next()
		if failures == w.cfg.FailureCeiling {
			w.logger.Warn("crash_loop_detected",
				"watchdog_id", w.cfg.ID,
				"failures", failures,
				"pause", w.cfg.CrashLoopPause.String(),
			)
			delay += w.cfg.CrashLoopPause
		}

		w.logger.Warn("spawn_failed",
			"watchdog_id", w.cfg.ID,
			"error", err,
			"failures", failures,
			"delay", delay.String(),
		)

		if w.cfg.Callbacks.OnSpawnFailure != nil {
			w.cfg.Callbacks.OnSpawnFailure(w.cfg.ID, failures, delay)
		}

		w.setState(StateBackoff)
		time.Sleep(delay)
		w.setState(StateNoChild)
		return
	}

	w.failures.Store(0)
	w.backoff.Reset()
	w.setState(StateRunning)
}

// reapStrays kills any process already running the target path so the new
// child starts from a clean slate. Own PID and children are never touched.
func (w *Watchdog) reapStrays() {
	skip := map[int]bool{os.Getpid(): true}
	killed, err := killStrays(w.cfg.Target.Path, skip)
	if err != nil {
		// Unsupported platform or /proc unavailable; spawn anyway.
		return
	}
	if len(killed) > 0 {
		w.logger.Warn("strays_killed",
			"watchdog_id", w.cfg.ID,
			"target", w.cfg.Target.Path,
			"pids", killed,
		)
	}
}

// spawn starts a new child with stdout/stderr captured.
func (w *Watchdog) spawn() error {
	cmd := exec.Command(w.cfg.Target.Path)

	// Own process group, so termination takes grandchildren with it.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return err
	}

	c := &child{
		cmd:       cmd,
		pid:       cmd.Process.Pid,
		startedAt: time.Now(),
		exitCh:    make(chan exitStatus, 1),
	}

	go w.stdout.HandleReader(stdout)
	go w.stderr.HandleReader(stderr)
	go func() {
		waitErr := cmd.Wait()
		c.exitCh <- exitStatus{code: extractExitCode(waitErr), err: waitErr}
	}()

	w.ch = c
	w.pid.Store(int64(c.pid))
	w.startedNs.Store(c.startedAt.UnixNano())
	w.spawns.Add(1)

	w.logger.Info("child_started",
		"watchdog_id", w.cfg.ID,
		"pid", c.pid,
	)

	if w.cfg.Callbacks.OnSpawn != nil {
		w.cfg.Callbacks.OnSpawn(w.cfg.ID, c.pid)
	}

	return nil
}

// pollChild checks the owned child's exit status without blocking and, while
// it is still running, occasionally probes its kernel run state.
func (w *Watchdog) pollChild() {
	select {
	case st := <-w.ch.exitCh:
		w.reapExit(st)
	default:
		w.maybeProbe()
	}
}

// maybeProbe inspects the child's run state at most once per probe interval.
// A child that is neither runnable nor sleeping is killed; its exit is reaped
// on a later iteration, routing back through the no-child path.
func (w *Watchdog) maybeProbe() {
	if !w.cfg.ProbeEnabled || time.Since(w.lastProbe) < w.cfg.ProbeInterval {
		return
	}
	w.lastProbe = time.Now()

	state, err := probeRunState(w.ch.pid)
	if err != nil {
		// Unsupported platform, or the process vanished between the
		// liveness poll and the probe. The exit channel will tell.
		return
	}

	if !healthyRunState(state) {
		w.logger.Warn("child_unresponsive",
			"watchdog_id", w.cfg.ID,
			"pid", w.ch.pid,
			"run_state", string(state),
		)
		w.signalChildGroup(syscall.SIGKILL)
	}
}

// reapExit releases the child handle and updates the failure accounting.
func (w *Watchdog) reapExit(st exitStatus) {
	uptime := time.Since(w.ch.startedAt)
	pid := w.ch.pid
	w.releaseChild()
	w.setState(StateNoChild)

	if st.code == 0 {
		w.failures.Store(0)
		w.logger.Info("child_exited",
			"watchdog_id", w.cfg.ID,
			"pid", pid,
			"exit_code", 0,
			"uptime", uptime.String(),
		)
	} else {
		failures := int(w.failures.Add(1))
		w.logger.Warn("child_failed",
			"watchdog_id", w.cfg.ID,
			"pid", pid,
			"exit_code", st.code,
			"uptime", uptime.String(),
			"failures", failures,
		)

		if failures == w.cfg.FailureCeiling {
			w.logger.Warn("crash_loop_detected",
				"watchdog_id", w.cfg.ID,
				"failures", failures,
				"pause", w.cfg.CrashLoopPause.String(),
			)
			w.setState(StateBackoff)
			time.Sleep(w.cfg.CrashLoopPause)
			w.setState(StateNoChild)
		}
	}

	if w.cfg.Callbacks.OnExit != nil {
		w.cfg.Callbacks.OnExit(w.cfg.ID, st.code, uptime)
	}
}

// shutdown terminates the owned child and marks the watchdog stopped.
func (w *Watchdog) shutdown() {
	w.setState(StateShuttingDown)

	if w.ch != nil {
		w.terminateChild()
	}

	w.logger.Info("watchdog_stopped", "watchdog_id", w.cfg.ID)
}

// terminateChild sends SIGTERM to the child's process group, escalates to
// SIGKILL after the kill timeout, and reaps the exit status.
func (w *Watchdog) terminateChild() {
	pid := w.ch.pid
	w.signalChildGroup(syscall.SIGTERM)

	select {
	case st := <-w.ch.exitCh:
		w.logger.Info("child_terminated",
			"watchdog_id", w.cfg.ID,
			"pid", pid,
			"exit_code", st.code,
		)
	case <-time.After(w.cfg.KillTimeout):
		w.logger.Warn("force_killing_child",
			"watchdog_id", w.cfg.ID,
			"pid", pid,
		)
		w.signalChildGroup(syscall.SIGKILL)
		<-w.ch.exitCh
	}

	w.releaseChild()
}

// discardChild force-kills and reaps the owned child after a recovered
// panic, leaving the watchdog in the no-child state.
func (w *Watchdog) discardChild() {
	if w.ch == nil {
		w.setState(StateNoChild)
		return
	}

	w.signalChildGroup(syscall.SIGKILL)
	<-w.ch.exitCh
	w.releaseChild()
	w.setState(StateNoChild)
}

// releaseChild drops the handle and clears the cross-goroutine mirrors.
func (w *Watchdog) releaseChild() {
	w.ch = nil
	w.pid.Store(0)
	w.startedNs.Store(0)
}

// signalChildGroup signals the child's process group, falling back to the
// process itself if the group lookup fails.
func (w *Watchdog) signalChildGroup(sig syscall.Signal) {
	pid := w.ch.pid
	if pgid, err := syscall.Getpgid(pid); err == nil {
		syscall.Kill(-pgid, sig)
	} else {
		w.ch.cmd.Process.Signal(sig)
	}
}

// setState updates the state and calls the callback if registered.
func (w *Watchdog) setState(newState State) {
	w.stateMu.Lock()
	oldState := w.state
	w.state = newState
	w.stateMu.Unlock()

	if w.cfg.Callbacks.OnStateChange != nil && oldState != newState {
		w.cfg.Callbacks.OnStateChange(w.cfg.ID, oldState, newState)
	}
}

// ID returns the watchdog's instance ID.
func (w *Watchdog) ID() int {
	return w.cfg.ID
}

// State returns the current state of the watchdog.
func (w *Watchdog) State() State {
	w.stateMu.RLock()
	defer w.stateMu.RUnlock()
	return w.state
}

// PID returns the current child PID, or 0 when no child is owned.
func (w *Watchdog) PID() int {
	return int(w.pid.Load())
}

// Spawns returns the number of successful child starts.
func (w *Watchdog) Spawns() int64 {
	return w.spawns.Load()
}

// Failures returns the consecutive-failure counter.
func (w *Watchdog) Failures() int {
	return int(w.failures.Load())
}

// Uptime returns the current child's uptime, or 0 when no child is owned.
func (w *Watchdog) Uptime() time.Duration {
	started := w.startedNs.Load()
	if started == 0 {
		return 0
	}
	return time.Since(time.Unix(0, started))
}

// RecentOutput returns the most recent captured lines from the child's
// stdout and stderr, for the exit summary.
func (w *Watchdog) RecentOutput(n int) (stdout, stderr []string) {
	return w.stdout.RecentLines(n), w.stderr.RecentLines(n)
}

// extractExitCode extracts the exit code from a Wait() error.
func extractExitCode(err error) int {
	if err == nil {
		return 0
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			if status.Signaled() {
				// Signal exit: 128 + signal number
				return 128 + int(status.Signal())
			}
			return status.ExitStatus()
		}
	}

	// Unknown error, assume exit code 1
	return 1
}
