//go:build linux

package supervisor

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// probeRunState reads the kernel-reported run state for a process from
// /proc/<pid>/stat. The state is the third field, after the parenthesized
// comm, which may itself contain spaces or parens.
func probeRunState(pid int) (byte, error) {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return 0, err
	}

	// Everything up to the last ')' is "pid (comm"
	i := strings.LastIndexByte(string(data), ')')
	if i < 0 || i+2 >= len(data) {
		return 0, fmt.Errorf("malformed stat for pid %d", pid)
	}

	fields := strings.Fields(string(data[i+1:]))
	if len(fields) == 0 || len(fields[0]) != 1 {
		return 0, fmt.Errorf("malformed stat for pid %d", pid)
	}

	return fields[0][0], nil
}

// healthyRunState reports whether the state is runnable or sleeping.
// Anything else (zombie, stopped, uninterruptible, dead) is treated as
// unresponsive.
func healthyRunState(state byte) bool {
	return state == 'R' || state == 'S'
}

// listStrays scans /proc for processes whose executable resolves to path,
// excluding the PIDs in skip. Symlink targets of deleted binaries carry a
// " (deleted)" suffix, which still counts as a match.
func listStrays(path string, skip map[int]bool) ([]int, error) {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return nil, err
	}

	var strays []int
	for _, e := range entries {
		pid, err := strconv.Atoi(e.Name())
		if err != nil || skip[pid] {
			continue
		}

		exe, err := os.Readlink(filepath.Join("/proc", e.Name(), "exe"))
		if err != nil {
			// Not ours to inspect (different user) or already gone.
			continue
		}

		if strings.TrimSuffix(exe, " (deleted)") == path {
			strays = append(strays, pid)
		}
	}

	return strays, nil
}

// killStrays kills every process running the target path, excluding the PIDs
// in skip. Returns the PIDs that were signaled.
func killStrays(path string, skip map[int]bool) ([]int, error) {
	strays, err := listStrays(path, skip)
	if err != nil {
		return nil, err
	}

	killed := make([]int, 0, len(strays))
	for _, pid := range strays {
		if err := syscall.Kill(pid, syscall.SIGKILL); err == nil {
			killed = append(killed, pid)
		}
	}

	return killed, nil
}
