//go:build linux

package supervisor

import (
	"log/slog"

	"golang.org/x/sys/unix"

	"github.com/joshuarubin/pmtrd/internal/job"
)

// applyPlatform applies cpuset, rlimits and nice to a just-started child,
// using prlimit(2)/sched_setaffinity(2)/setpriority(2) against the
// child's own pid since os/exec exposes no pre-exec hook to do this the
// way the upstream fork()ed child does it in-process before execv.
// Best-effort: a failure here is logged, not fatal to the job.
func applyPlatform(logger *slog.Logger, def *job.Definition, pid int) {
	if len(def.CPUSet) > 0 {
		var set unix.CPUSet
		for _, cpu := range def.CPUSet.Sorted() {
			set.Set(cpu)
		}
		if err := unix.SchedSetaffinity(pid, &set); err != nil {
			logger.Warn("setting cpu affinity failed", "job", def.Name, "err", err)
		}
	}

	for _, rl := range def.Rlimits {
		resource, ok := rlimitSyscallResource(rl.Resource)
		if !ok {
			continue
		}
		val := rlimitValue(rl.Value)
		lim := unix.Rlimit{Cur: val, Max: val}
		if err := unix.Prlimit(pid, resource, &lim, nil); err != nil {
			logger.Warn("setting rlimit failed", "job", def.Name, "resource", rl.Resource, "err", err)
		}
	}

	if def.Nice != 0 {
		if err := unix.Setpriority(unix.PRIO_PROCESS, pid, def.Nice); err != nil {
			logger.Warn("setting nice failed", "job", def.Name, "err", err)
		}
	}
}

func rlimitValue(v int64) uint64 {
	if v == job.Infinity {
		return unix.RLIM_INFINITY
	}
	return uint64(v)
}

func rlimitSyscallResource(r job.RlimitResource) (int, bool) {
	switch r {
	case job.RlimitCore:
		return unix.RLIMIT_CORE, true
	case job.RlimitData:
		return unix.RLIMIT_DATA, true
	case job.RlimitNice:
		return unix.RLIMIT_NICE, true
	case job.RlimitFSize:
		return unix.RLIMIT_FSIZE, true
	case job.RlimitSigPending:
		return unix.RLIMIT_SIGPENDING, true
	case job.RlimitMemLock:
		return unix.RLIMIT_MEMLOCK, true
	case job.RlimitRSS:
		return unix.RLIMIT_RSS, true
	case job.RlimitNoFile:
		return unix.RLIMIT_NOFILE, true
	case job.RlimitMsgQueue:
		return unix.RLIMIT_MSGQUEUE, true
	case job.RlimitRTPrio:
		return unix.RLIMIT_RTPRIO, true
	case job.RlimitStack:
		return unix.RLIMIT_STACK, true
	case job.RlimitCPU:
		return unix.RLIMIT_CPU, true
	case job.RlimitNProc:
		return unix.RLIMIT_NPROC, true
	case job.RlimitAS:
		return unix.RLIMIT_AS, true
	default:
		return 0, false
	}
}
