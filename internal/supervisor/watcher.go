package supervisor

import (
	"fmt"
	"os"

	"github.com/joshuarubin/pmtrd/internal/reexec"
)

// spawnWatcher reexecs the current binary into its hidden "watch"
// subcommand, which will fsnotify-subscribe to the config file and every
// enabled job's deps and signal SIGHUP back to this pid on change.
func (s *Supervisor) spawnWatcher() {
	args := []string{"watch", "--config", s.configPath, "--ppid", fmt.Sprint(os.Getpid())}
	for _, j := range s.jobs.All() {
		if j.Def.Disabled {
			continue
		}
		for _, dep := range j.Def.Deps {
			args = append(args, "--dep", dep)
		}
	}

	cmd := reexec.Command(args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		s.logger.Error("failed to start change watcher", "err", err)
		s.alarmWithin(ShortDelay)
		return
	}

	s.watcherPID = cmd.Process.Pid
	_ = cmd.Process.Release() // reaped by collectJobs, which respawns it
}

// spawnRelay reexecs into the hidden "relay" subcommand, which listens on
// an abstract unix socket and forwards each connected child's stdio lines
// to the daemon's own log, line-prefixed by job name.
func (s *Supervisor) spawnRelay() error {
	addr := fmt.Sprintf("@pmtrd-relay-%d", os.Getpid())

	cmd := reexec.Command("relay", "--addr", addr)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return err
	}

	s.relayPID = cmd.Process.Pid
	s.relayAddr = addr
	_ = cmd.Process.Release() // reaped by collectJobs, which treats its exit as fatal
	return nil
}
