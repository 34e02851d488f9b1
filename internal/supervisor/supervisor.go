package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joshuarubin/pmtrd/internal/config"
	"github.com/joshuarubin/pmtrd/internal/control"
	"github.com/joshuarubin/pmtrd/internal/job"
)

// Supervisor owns the job table, the control sockets, and the single
// goroutine that runs the signal-to-channel select loop. Every method in
// this package except Run assumes it is only ever called from that one
// goroutine — the same "no lock needed outside the suspension point"
// discipline the upstream daemon gets from blocking signals everywhere
// but its one sigsuspend call.
type Supervisor struct {
	logger *slog.Logger

	configPath string
	pidFile    string
	enableLog  bool

	jobs    *job.Table
	control *control.Socket

	watcherPID int
	relayPID   int
	relayAddr  string

	nextAlarm time.Time
	timer     *time.Timer
	sigCh     chan os.Signal
}

// New returns a Supervisor ready to Run, reading jobs from configPath. If
// enableRelay is set, a log relay child is spawned at startup so jobs may
// route stdio through "out syslog"/"err syslog".
func New(logger *slog.Logger, configPath string, enableRelay bool) *Supervisor {
	return &Supervisor{
		logger:     logger,
		configPath: configPath,
		enableLog:  enableRelay,
		jobs:       job.NewTable(),
		control:    control.NewSocket(logger),
	}
}

// alarmWithin reschedules the next wakeup to fire within d, unless an
// earlier wakeup is already armed: unset/past/later-than-requested all
// reschedule; zero coerces to the minimum tick.
func (s *Supervisor) alarmWithin(d time.Duration) {
	if d <= 0 {
		d = time.Millisecond
	}

	now := time.Now()
	target := now.Add(d)

	if s.nextAlarm.IsZero() || !s.nextAlarm.After(now) || s.nextAlarm.After(target) {
		s.nextAlarm = target
		if s.timer == nil {
			s.timer = time.NewTimer(d)
		} else {
			if !s.timer.Stop() {
				select {
				case <-s.timer.C:
				default:
				}
			}
			s.timer.Reset(d)
		}
	}
}

// Run is the supervisor's single suspension point: a select loop over
// process signals, the alarm timer, and control-socket arrivals. Each
// branch runs exactly one dispatch-table action to completion before
// looping back to select, reproducing the upstream daemon's dispatch
// table and single-suspension-point discipline without needing
// sigsetjmp/siglongjmp — Go delivers signals onto a channel instead of
// interrupting arbitrary code.
func (s *Supervisor) Run(ctx context.Context) error {
	cfg, err := config.Load(s.configPath, false)
	if err != nil {
		return fmt.Errorf("initial load: %w", err)
	}
	s.jobs = config.BuildJobs(cfg)
	if err := s.control.Configure(cfg.Listen, cfg.Report); err != nil {
		s.logger.Error("configuring control sockets failed", "err", err)
	}

	if s.enableLog {
		if err := s.spawnRelay(); err != nil {
			s.logger.Error("starting log relay failed", "err", err)
		}
	}

	s.doJobs()
	s.spawnWatcher()
	s.control.Report(s.jobs.All())
	s.alarmWithin(ShortDelay)

	s.sigCh = make(chan os.Signal, 8)
	signal.Notify(s.sigCh,
		syscall.SIGHUP, syscall.SIGCHLD, syscall.SIGTERM,
		syscall.SIGINT, syscall.SIGQUIT)
	defer signal.Stop(s.sigCh)

	for {
		var timerC <-chan time.Time
		if s.timer != nil {
			timerC = s.timer.C
		}

		select {
		case <-ctx.Done():
			return s.shutdown()

		case sig := <-s.sigCh:
			switch sig {
			case syscall.SIGHUP:
				_ = s.Rescan()
				s.doJobs()

			case syscall.SIGCHLD:
				s.collectJobs()
				s.doJobs()

			case syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT:
				return s.shutdown()
			}

		case <-timerC:
			s.nextAlarm = time.Time{}
			s.doJobs()
			s.control.Report(s.jobs.All())
			s.alarmWithin(ShortDelay)

		case dg := <-s.control.Incoming:
			s.serviceSocket(dg)
			s.doJobs()
			for drain := true; drain; {
				select {
				case dg := <-s.control.Incoming:
					s.serviceSocket(dg)
				default:
					drain = false
				}
			}
			s.doJobs()
		}
	}
}

func (s *Supervisor) shutdown() error {
	s.termJobs()
	s.doJobs()
	time.Sleep(200 * time.Millisecond)
	s.collectJobs()
	s.control.Close()
	return nil
}
