package supervisor

import (
	"fmt"

	"github.com/joshuarubin/pmtrd/internal/config"
	"github.com/joshuarubin/pmtrd/internal/job"
)

// Rescan reloads the config file, diffs it against the live job table, and
// either adopts the new state or preserves the old one on failure: a
// load-atomic guarantee, identity preservation via Definition.Equal,
// restart-on-change, and tombstoning of deleted-but-running jobs.
func (s *Supervisor) Rescan() error {
	previous := s.jobs

	cfg, err := config.Load(s.configPath, false)
	if err != nil {
		s.logger.Error("config rescan failed, keeping previous config", "err", err)
		return fmt.Errorf("rescan: %w", err)
	}

	fresh := job.NewTable()

	for _, def := range cfg.Jobs {
		old := previous.ByName(def.Name)

		switch {
		case old == nil:
			fresh.Add(&job.Job{Def: def, Ins: job.NewInstance()})

		case def.Equal(old.Def):
			fresh.Add(&job.Job{Def: old.Def.Clone(), Ins: old.Ins})

		default:
			ins := &job.Instance{
				PID:       old.Ins.PID,
				StartedAt: old.Ins.StartedAt,
				Respawn:   true,
			}
			if ins.PID != 0 {
				ins.Terminate = job.TerminateRequested
			}
			fresh.Add(&job.Job{Def: def, Ins: ins})
		}

		if old != nil {
			previous.Remove(old.Def.Name)
		}
	}

	for _, leftover := range previous.All() {
		if !leftover.Ins.Running() {
			continue
		}
		leftover.Ins.Terminate = job.TerminateRequested
		leftover.Ins.Respawn = false
		leftover.Ins.DeleteWhenCollected = true
		leftover.Def = leftover.Def.Clone()
		leftover.Def.Name = leftover.Def.Name + "(deleted)"
		fresh.Add(leftover)
	}

	fresh.SortByOrder()
	s.jobs = fresh

	if err := s.control.Configure(cfg.Listen, cfg.Report); err != nil {
		s.logger.Error("reconfiguring control sockets failed", "err", err)
	}

	return nil
}
