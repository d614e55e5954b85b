// Package locate resolves the supervised executable on the local filesystem
// and ensures it carries the executable bit.
package locate

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// execMode is the permission set applied by the chmod fallback:
// owner read/write/execute, group and world read/execute.
const execMode = os.FileMode(0o755)

// TargetSpec describes the resolved supervised executable.
// It is created once at startup and read-only afterward.
type TargetSpec struct {
	// Path is the absolute path to the executable.
	Path string

	// Executable reports whether the executable bit is confirmed set.
	Executable bool
}

// NotFoundError indicates the target was absent from every candidate location.
type NotFoundError struct {
	Name       string
	Candidates []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("target %q not found (tried: %s)", e.Name, strings.Join(e.Candidates, ", "))
}

// PermissionError indicates the executable bit could not be set by any mechanism.
type PermissionError struct {
	Path        string
	ChmodErr    error
	FallbackErr error
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("cannot make %s executable: chmod: %v; fallback: %v", e.Path, e.ChmodErr, e.FallbackErr)
}

// Locator resolves a binary name to a TargetSpec.
type Locator struct {
	name      string
	systemDir string
	logger    *slog.Logger
}

// New creates a Locator for the given binary name.
// systemDir is the fixed system-wide install location candidate.
func New(name, systemDir string, logger *slog.Logger) *Locator {
	return &Locator{
		name:      name,
		systemDir: systemDir,
		logger:    logger,
	}
}

// Candidates returns the ordered candidate paths searched by Locate,
// excluding the final PATH lookup.
func (l *Locator) Candidates() []string {
	candidates := make([]string, 0, 3)

	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, l.name, l.name))
	}

	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, l.name))
	}

	if l.systemDir != "" {
		candidates = append(candidates, filepath.Join(l.systemDir, l.name))
	}

	return candidates
}

// Locate resolves the target executable and ensures it is executable.
// Candidates are tried in order: a home-derived path, a path relative to the
// working directory, the system install dir, and finally a PATH lookup.
// Returns *NotFoundError if no candidate exists, or *PermissionError if the
// executable bit cannot be set.
func (l *Locator) Locate() (*TargetSpec, error) {
	candidates := l.Candidates()

	var path string
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			path = c
			break
		}
	}

	// Last resort: PATH lookup
	if path == "" {
		if p, err := exec.LookPath(l.name); err == nil {
			path = p
		}
	}

	if path == "" {
		return nil, &NotFoundError{Name: l.name, Candidates: candidates}
	}

	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}

	l.logger.Info("target_resolved", "name", l.name, "path", path)

	if err := EnsureExecutable(path); err != nil {
		return nil, err
	}

	return &TargetSpec{Path: path, Executable: true}, nil
}

// EnsureExecutable marks the file at path executable. It first shells out to
// the platform chmod binary; if that fails it falls back to setting the
// permission bits directly. Idempotent on an already-executable file.
// Returns *PermissionError if both mechanisms fail.
func EnsureExecutable(path string) error {
	chmodErr := runChmod(path)
	if chmodErr == nil {
		return nil
	}

	if err := os.Chmod(path, execMode); err != nil {
		return &PermissionError{Path: path, ChmodErr: chmodErr, FallbackErr: err}
	}

	return nil
}

// runChmod invokes the platform chmod binary to set the executable bit.
func runChmod(path string) error {
	chmod, err := exec.LookPath("chmod")
	if err != nil {
		return fmt.Errorf("chmod not found: %w", err)
	}

	out, err := exec.Command(chmod, "+x", path).CombinedOutput()
	if err != nil {
		return fmt.Errorf("chmod +x %s: %w (%s)", path, err, strings.TrimSpace(string(out)))
	}

	return nil
}
