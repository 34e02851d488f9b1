//go:build !linux

package supervisor

import (
	"log/slog"

	"github.com/joshuarubin/pmtrd/internal/job"
)

// applyPlatform is a no-op outside Linux: cpuset/rlimit/nice application
// relies on sched_setaffinity/prlimit, which this tree only wires up on
// Linux.
func applyPlatform(logger *slog.Logger, def *job.Definition, pid int) {
	if len(def.CPUSet) > 0 || len(def.Rlimits) > 0 || def.Nice != 0 {
		logger.Warn("cpuset/rlimit/nice are not enforced on this platform", "job", def.Name)
	}
}
