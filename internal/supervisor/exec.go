// Package supervisor implements the lifecycle executor (spawn, signal,
// reap), the config-diff reconciler, and the signal-to-channel main loop
// that together form the supervision engine.
package supervisor

import (
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"os/user"
	"strconv"
	"syscall"
	"time"

	"github.com/joshuarubin/pmtrd/internal/job"
)

// ShortDelay is the grace interval used both as the per-job restart
// throttle and as the SIGTERM-to-SIGKILL escalation window. Configurable
// at build time, matching the upstream SHORT_DELAY constant.
var ShortDelay = 2 * time.Second

// doJobs walks the table in order, starting, signalling, or throttling
// each entry. Grounded on upstream do_jobs.
func (s *Supervisor) doJobs() {
	now := time.Now()

	for _, j := range s.jobs.All() {
		def, ins := j.Def, j.Ins

		if def.BounceInterval > 0 && ins.Running() &&
			now.Sub(ins.StartedAt) >= time.Duration(def.BounceInterval)*time.Second {
			ins.Terminate = job.TerminateRequested
		}

		if ins.Terminate > job.TerminateNone {
			s.signalJob(j)
			continue
		}

		if def.Disabled || ins.Running() || !ins.Respawn {
			continue
		}

		if ins.StartAt.After(now) {
			s.alarmWithin(ins.StartAt.Sub(now))
			continue
		}

		s.spawn(j)
	}
}

// signalJob advances the termination state machine for one running job.
// Grounded on upstream signal_job.
func (s *Supervisor) signalJob(j *job.Job) {
	ins := j.Ins
	if !ins.Running() {
		return
	}

	now := time.Now()

	switch {
	case ins.Terminate == job.TerminateRequested:
		s.logger.Info("sending SIGTERM", "job", j.Def.Name, "pid", ins.PID)
		_ = syscall.Kill(ins.PID, syscall.SIGTERM)
		ins.Terminate = job.Terminate(now.Add(ShortDelay).Unix())

	default:
		deadline, _ := ins.Terminate.Deadline()
		if deadline.After(now) {
			return
		}
		s.logger.Warn("grace period expired, sending SIGKILL", "job", j.Def.Name, "pid", ins.PID)
		_ = syscall.Kill(ins.PID, syscall.SIGKILL)
		ins.Terminate = job.TerminateNone
	}
}

// termJobs requests graceful termination of every running job. Grounded on
// upstream term_jobs.
func (s *Supervisor) termJobs() {
	for _, j := range s.jobs.All() {
		if j.Ins.Running() && j.Ins.Terminate == job.TerminateNone {
			j.Ins.Terminate = job.TerminateRequested
		}
	}
}

// collectJobs drains exited children with a non-blocking wait loop.
// Grounded on upstream collect_jobs.
func (s *Supervisor) collectJobs() {
	for {
		var status syscall.WaitStatus
		pid, err := syscall.Wait4(-1, &status, syscall.WNOHANG, nil)
		if err != nil || pid <= 0 {
			return
		}

		switch pid {
		case s.watcherPID:
			s.watcherPID = 0
			s.spawnWatcher()
			continue
		case s.relayPID:
			s.logger.Error("log relay exited, shutting down", "pid", pid)
			_ = syscall.Kill(os.Getpid(), syscall.SIGTERM)
			continue
		}

		j := s.jobs.ByPID(pid)
		if j == nil {
			s.logger.Warn("SIGCHLD for unknown pid", "pid", pid)
			continue
		}

		s.logExit(j.Def.Name, status)

		ins := j.Ins
		elapsed := time.Since(ins.StartedAt)
		ins.PID = 0
		ins.Terminate = job.TerminateNone

		if elapsed < ShortDelay {
			ins.StartAt = time.Now().Add(ShortDelay)
		} else {
			ins.StartAt = time.Now()
		}

		if j.Def.Once {
			ins.Respawn = false
		}
		if status.Exited() && status.ExitStatus() == job.NoRestartExitCode {
			ins.Respawn = false
		}

		if ins.DeleteWhenCollected {
			s.jobs.Remove(j.Def.Name)
		}
	}
}

func (s *Supervisor) logExit(name string, status syscall.WaitStatus) {
	switch {
	case status.Exited():
		s.logger.Info("job exited", "job", name, "code", status.ExitStatus())
	case status.Signaled():
		s.logger.Info("job killed", "job", name, "signal", status.Signal())
	default:
		s.logger.Info("job reaped", "job", name)
	}
}

// spawn forks and execs def's command. Grounded on upstream do_jobs's fork
// path, reimagined atop os/exec: Credential covers the
// setgid/initgroups/setuid ordering Go's runtime already performs
// pre-exec; cpuset, rlimits and nice are applied to the live child pid
// immediately after Start returns, since os/exec has no pre-exec hook
// (documented race window, acceptable per DESIGN.md).
func (s *Supervisor) spawn(j *job.Job) {
	def, ins := j.Def, j.Ins

	cmd := exec.Command(def.Argv[0], def.Argv[1:]...)
	cmd.Dir = def.Dir
	cmd.Env = append(os.Environ(), def.Env...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if def.User != "" {
		cred, err := credentialFor(def.User)
		if err != nil {
			s.logger.Error("unknown user at spawn", "job", def.Name, "user", def.User, "err", err)
			s.scheduleThrottledRetry(ins)
			return
		}
		cmd.SysProcAttr.Credential = cred
	}

	closers, err := s.attachStdio(cmd, def)
	for _, c := range closers {
		defer c.Close()
	}
	if err != nil {
		s.logger.Error("stdio setup failed", "job", def.Name, "err", err)
		s.scheduleThrottledRetry(ins)
		return
	}

	if err := cmd.Start(); err != nil {
		s.logger.Error("exec failed", "job", def.Name, "err", err)
		s.scheduleThrottledRetry(ins)
		return
	}

	pid := cmd.Process.Pid
	applyPlatform(s.logger, def, pid)

	ins.PID = pid
	ins.StartedAt = time.Now()

	// collectJobs reaps the child with wait4(-1); a cmd.Wait here would
	// reap it first and collectJobs would never see the exit.
	_ = cmd.Process.Release()

	if def.Wait {
		s.logger.Info("waiting for synchronous job", "job", def.Name, "pid", pid)
		for ins.PID == pid {
			s.collectJobs()
			if ins.PID == pid {
				// ESRCH: no process, not even a zombie, is left to reap.
				if err := syscall.Kill(pid, 0); errors.Is(err, syscall.ESRCH) {
					s.logger.Error("synchronous job vanished before it was reaped", "job", def.Name, "pid", pid)
					ins.PID = 0
					break
				}
				time.Sleep(10 * time.Millisecond)
			}
		}
	}
}

// scheduleThrottledRetry applies the crashloop throttle to a job that
// never successfully spawned, so a persistently broken job (bad user,
// bad stdio target) doesn't spin the loop.
func (s *Supervisor) scheduleThrottledRetry(ins *job.Instance) {
	ins.StartAt = time.Now().Add(ShortDelay)
	s.alarmWithin(ShortDelay)
}

func credentialFor(name string) (*syscall.Credential, error) {
	u, err := user.Lookup(name)
	if err != nil {
		return nil, err
	}
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return nil, fmt.Errorf("bad uid %q: %w", u.Uid, err)
	}
	gid, err := strconv.Atoi(u.Gid)
	if err != nil {
		return nil, fmt.Errorf("bad gid %q: %w", u.Gid, err)
	}

	groupIDs, err := u.GroupIds()
	if err != nil {
		return nil, err
	}
	groups := make([]uint32, 0, len(groupIDs))
	for _, g := range groupIDs {
		n, err := strconv.Atoi(g)
		if err != nil {
			continue
		}
		groups = append(groups, uint32(n))
	}

	return &syscall.Credential{
		Uid:    uint32(uid),
		Gid:    uint32(gid),
		Groups: groups,
	}, nil
}

// attachStdio opens def's In/Out/Err targets and assigns them to cmd,
// returning any *os.File handles the caller must close once the child has
// inherited them. The literal value "syslog" dials the log relay's
// abstract-socket-shaped unix listener instead of opening a file.
func (s *Supervisor) attachStdio(cmd *exec.Cmd, def *job.Definition) ([]closer, error) {
	var closers []closer

	in, err := openStdio(def.In, os.O_RDONLY, 0)
	if err != nil {
		return closers, fmt.Errorf("opening in %q: %w", def.In, err)
	}
	if in != nil {
		closers = append(closers, in)
	}
	cmd.Stdin = in

	out, err := s.openOutput(def.Out, def.Name, "out")
	if err != nil {
		return closers, fmt.Errorf("opening out %q: %w", def.Out, err)
	}
	if c, ok := out.(closer); ok {
		closers = append(closers, c)
	}
	cmd.Stdout = out

	errOut, err := s.openOutput(def.Err, def.Name, "err")
	if err != nil {
		return closers, fmt.Errorf("opening err %q: %w", def.Err, err)
	}
	if c, ok := errOut.(closer); ok {
		closers = append(closers, c)
	}
	cmd.Stderr = errOut

	return closers, nil
}

type closer interface {
	Close() error
}

func openStdio(path string, flag int, perm os.FileMode) (*os.File, error) {
	if path == "" {
		return os.Open(os.DevNull)
	}
	return os.OpenFile(path, flag, perm)
}

// openOutput resolves an out/err target into an io.Writer: a plain file,
// or — for the literal name "syslog" — a connection to the log relay's
// unix socket. An unset out/err defaults to "syslog" rather than
// /dev/null: a job that doesn't specify where its output goes is routed
// through the relay, not silenced. The relay connection opens with a
// one-line handshake identifying the job and stream so the relay can
// prefix every subsequent line it forwards.
func (s *Supervisor) openOutput(path, jobName, stream string) (interface{ Write([]byte) (int, error) }, error) {
	if path == "" {
		path = "syslog"
	}
	if path == "syslog" {
		if s.relayAddr == "" {
			return nil, fmt.Errorf("job %q requests syslog output but no log relay is running", jobName)
		}
		conn, err := net.Dial("unix", s.relayAddr)
		if err != nil {
			return nil, err
		}
		if _, err := fmt.Fprintf(conn, "JOB %s %s\n", jobName, stream); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("relay handshake: %w", err)
		}
		// hand the child a dup of the socket itself, so it writes to the
		// relay directly and the caller may close its copy after Start.
		f, err := conn.(*net.UnixConn).File()
		_ = conn.Close()
		if err != nil {
			return nil, fmt.Errorf("relay connection: %w", err)
		}
		return f, nil
	}
	return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
}
