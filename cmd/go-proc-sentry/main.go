// Package main provides the go-proc-sentry CLI entry point.
//
// go-proc-sentry keeps a single long-lived external executable alive across
// crashes and kill attempts, restarting it with backoff until the operator
// interrupts the supervisor.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/randomizedcoder/go-proc-sentry/internal/config"
	"github.com/randomizedcoder/go-proc-sentry/internal/locate"
	"github.com/randomizedcoder/go-proc-sentry/internal/logging"
	"github.com/randomizedcoder/go-proc-sentry/internal/orchestrator"
	"github.com/randomizedcoder/go-proc-sentry/internal/tui"
)

// version is set at build time via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0" ./cmd/go-proc-sentry
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// Handle version flag early (before flag parsing)
	if len(os.Args) > 1 {
		arg := os.Args[1]
		if arg == "-version" || arg == "--version" || arg == "version" {
			fmt.Printf("go-proc-sentry %s\n", version)
			return 0
		}
	}

	// Parse command-line flags
	cfg, err := config.ParseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		return 1
	}

	// Apply --check mode modifications before validation
	if cfg.Check {
		config.ApplyCheckMode(cfg)
	}

	// Initialize logger
	// When the TUI is enabled, suppress logs to avoid corrupting the display
	var logger *slog.Logger
	if cfg.TUIEnabled {
		logger = logging.NewLoggerWithWriter(io.Discard, "json", "info")
	} else {
		logger = logging.NewLogger(cfg.LogFormat, "info", cfg.Verbose)
	}
	logging.SetDefault(logger)

	// Validate configuration
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		flagUsageHint()
		return 1
	}

	logger.Info("starting",
		"version", version,
		"target", cfg.TargetName,
		"mode", string(cfg.Mode),
		"watchdogs", cfg.Mode.Watchdogs(),
	)

	orch := orchestrator.New(cfg, logger, version)

	var supErr error
	supDone := make(chan struct{})
	go func() {
		supErr = orch.Supervise(context.Background())
		close(supDone)
	}()

	if cfg.TUIEnabled {
		prog := tea.NewProgram(tui.New(tui.Config{
			Source: orch,
			Target: cfg.TargetName,
			Mode:   string(cfg.Mode),
		}), tea.WithAltScreen())

		// Stop the dashboard once supervision ends on its own.
		go func() {
			<-supDone
			prog.Send(tui.QuitMsg{})
		}()

		if _, err := prog.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "dashboard error: %v\n", err)
		}
		orch.RequestStop()
	}

	<-supDone

	if supErr != nil {
		reportFatal(supErr)
		return 1
	}

	return 0
}

// reportFatal explains a fatal supervision error to the operator.
func reportFatal(err error) {
	var notFound *locate.NotFoundError
	var perm *locate.PermissionError

	switch {
	case errors.As(err, &notFound):
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fmt.Fprintln(os.Stderr, "Place the target at one of the candidate paths, or add it to PATH.")
	case errors.As(err, &perm):
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fmt.Fprintln(os.Stderr, "Fix the file's ownership or mount options and retry.")
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
}

// flagUsageHint points at -h without dumping the full usage text.
func flagUsageHint() {
	fmt.Fprintf(os.Stderr, "Run 'go-proc-sentry -h' for usage.\n")
}
