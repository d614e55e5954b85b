//go:build !linux

package hardening

// protectFromOOMKiller is a no-op on platforms without an OOM score knob.
func protectFromOOMKiller() error {
	return nil
}
