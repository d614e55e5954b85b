package locate

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLocator_FindsHomeCandidate(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	// $HOME/<name>/<name>
	name := "sentry-target"
	dir := filepath.Join(home, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	l := New(name, t.TempDir(), testLogger())
	spec, err := l.Locate()
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}

	if spec.Path != path {
		t.Errorf("Path = %q, want %q", spec.Path, path)
	}
	if !spec.Executable {
		t.Error("Executable = false, want true")
	}

	// The locator must have set the executable bit.
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode()&0o111 == 0 {
		t.Errorf("mode %v has no executable bits", info.Mode())
	}
}

func TestLocator_FindsSystemDirCandidate(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	name := "sentry-sys-target"
	systemDir := t.TempDir()
	path := filepath.Join(systemDir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	l := New(name, systemDir, testLogger())
	spec, err := l.Locate()
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if spec.Path != path {
		t.Errorf("Path = %q, want %q", spec.Path, path)
	}
}

func TestLocator_NotFound(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	l := New("definitely-not-a-real-binary-4242", t.TempDir(), testLogger())
	_, err := l.Locate()

	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("error = %v, want *NotFoundError", err)
	}
	if len(notFound.Candidates) < 2 {
		t.Errorf("candidates = %v, want the searched paths listed", notFound.Candidates)
	}
}

func TestLocator_CandidateOrder(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	name := "ordered-target"
	systemDir := t.TempDir()

	l := New(name, systemDir, testLogger())
	candidates := l.Candidates()

	if len(candidates) != 3 {
		t.Fatalf("candidates = %v, want 3 entries", candidates)
	}
	if candidates[0] != filepath.Join(home, name, name) {
		t.Errorf("first candidate = %q, want home-derived path", candidates[0])
	}
	if candidates[2] != filepath.Join(systemDir, name) {
		t.Errorf("last candidate = %q, want system dir path", candidates[2])
	}
}

func TestEnsureExecutable_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bin")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	// Fixing permissions on an already-executable file is a no-op and
	// still succeeds, twice.
	if err := EnsureExecutable(path); err != nil {
		t.Fatalf("first EnsureExecutable: %v", err)
	}
	if err := EnsureExecutable(path); err != nil {
		t.Fatalf("second EnsureExecutable: %v", err)
	}
}

func TestEnsureExecutable_SetsBit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bin")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := EnsureExecutable(path); err != nil {
		t.Fatalf("EnsureExecutable: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode()&0o100 == 0 {
		t.Errorf("mode %v missing owner executable bit", info.Mode())
	}
}
