package supervisor

import (
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
)

// ErrHandlerInstalled is returned when a signal handler has already been
// registered for this process.
var ErrHandlerInstalled = errors.New("cancellation handler already installed")

// Flag is the process-wide cancellation flag. It has exactly one writer (the
// signal handler) and many readers (every watchdog and the orchestrator's
// wait loop). The only legal transition is running -> stopping, so an atomic
// read/write is all the synchronization required.
type Flag struct {
	stopping atomic.Bool
}

// Stopping reports whether cancellation has been requested.
func (f *Flag) Stopping() bool {
	return f.stopping.Load()
}

// RequestStop flips the flag to stopping. Idempotent; the flag never reverts.
func (f *Flag) RequestStop() {
	f.stopping.Store(true)
}

// handlerInstalled guards against double registration within one process.
var handlerInstalled atomic.Bool

// InstallHandler registers the operator interrupt handler and returns the
// shared cancellation flag. The handler goroutine does nothing but flip the
// flag; all logging and cleanup happen cooperatively in the watchdog loops.
//
// Returns ErrHandlerInstalled if a handler was already registered; the caller
// should log a warning and proceed, accepting that supervision can then only
// be stopped by external force-kill.
func InstallHandler(logger *slog.Logger) (*Flag, error) {
	flag := &Flag{}

	if !handlerInstalled.CompareAndSwap(false, true) {
		return flag, ErrHandlerInstalled
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		flag.RequestStop()
		// Safe to log here: this is an ordinary goroutine, not an async
		// signal context.
		logger.Info("received_signal", "signal", sig.String())
	}()

	return flag, nil
}
