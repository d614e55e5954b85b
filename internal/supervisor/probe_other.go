//go:build !linux

package supervisor

import "errors"

// errProbeUnsupported marks platforms without a /proc run-state source.
// The watchdog falls back to plain liveness polling.
var errProbeUnsupported = errors.New("run-state probing not supported on this platform")

func probeRunState(pid int) (byte, error) {
	return 0, errProbeUnsupported
}

func healthyRunState(state byte) bool {
	return true
}

func killStrays(path string, skip map[int]bool) ([]int, error) {
	return nil, errProbeUnsupported
}
