//go:build linux

package hardening

import "os"

// oomScoreAdjPath is the kernel knob for this process's OOM-killer bias.
// -1000 exempts the process from OOM selection entirely.
const (
	oomScoreAdjPath = "/proc/self/oom_score_adj"
	oomScoreAdjMin  = "-1000"
)

// protectFromOOMKiller writes the most protective oom_score_adj value.
// Requires CAP_SYS_RESOURCE to lower the score; fails otherwise.
func protectFromOOMKiller() error {
	return os.WriteFile(oomScoreAdjPath, []byte(oomScoreAdjMin), 0)
}
