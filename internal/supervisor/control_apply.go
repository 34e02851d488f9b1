package supervisor

import (
	"syscall"
	"time"

	"github.com/joshuarubin/pmtrd/internal/control"
	"github.com/joshuarubin/pmtrd/internal/job"
)

// serviceSocket applies one received control datagram to the job table.
// Unknown names are logged and ignored; enable/disable on a job already
// in that state is a no-op; any state change re-signals the watcher so
// it re-arms its dependency list.
func (s *Supervisor) serviceSocket(dg control.Datagram) {
	cmds, err := control.ParseDatagram(dg.Data)
	if err != nil {
		s.logger.Warn("discarding malformed control datagram", "err", err)
		return
	}

	var changed bool

	for _, cmd := range cmds {
		j := s.jobs.ByName(cmd.Name)
		if j == nil {
			s.logger.Warn("control command for unknown job", "job", cmd.Name)
			continue
		}

		switch cmd.Mode {
		case control.ModeEnable:
			if !j.Def.Disabled {
				continue
			}
			j.Def.Disabled = false
			changed = true
			s.alarmWithin(time.Second)

		case control.ModeDisable:
			if j.Def.Disabled {
				continue
			}
			j.Def.Disabled = true
			if j.Ins.Running() {
				j.Ins.Terminate = job.TerminateRequested
			}
			changed = true
			s.alarmWithin(time.Second)
		}
	}

	if changed && s.watcherPID != 0 {
		_ = syscall.Kill(s.watcherPID, syscall.SIGHUP)
	}
}
