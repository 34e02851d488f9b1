// Package watch implements the change-watcher child: subscribe to the
// config file and every enabled job's dependency files, and on the first
// change event signal the parent supervisor to rescan. This library runs
// from inside the `pmtrd watch` hidden subcommand, a separate process
// rather than a goroutine, since the supervisor's own reap loop (not a
// context cancellation) is what restarts it.
package watch

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sys/unix"

	"github.com/joshuarubin/pmtrd/internal/procutil"
)

// signalReset restores default disposition for SIGHUP (Go never blocks
// signals in the first place, so only the disposition half applies). It
// undoes every signal.Notify registration for SIGHUP in the calling
// process, so a parent-death SIGHUP terminates the watcher.
func signalReset() {
	signal.Reset(syscall.SIGHUP)
}

// Quiescence is the settle delay between the first filesystem event and
// signalling the parent, letting an editor's rename-then-rewrite finish.
const Quiescence = 500 * time.Millisecond

// Run subscribes to configPath and every path in deps, blocks for the
// first change, sleeps Quiescence, then sends SIGHUP to ppid and returns
// nil. If the watch set cannot be established at all, it returns an
// error without signalling — the caller should sleep a short delay and
// exit non-zero so the supervisor's reap loop retries it.
func Run(logger *slog.Logger, configPath string, deps []string, ppid int) error {
	if err := procutil.SetParentDeathSignal(unix.SIGHUP); err != nil {
		logger.Warn("failed to set parent-death signal", "err", err)
	}
	signalReset()

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(configPath); err != nil {
		return fmt.Errorf("watching config file: %w", err)
	}

	for _, dep := range deps {
		if err := w.Add(dep); err != nil {
			logger.Warn("dependency file not watchable", "path", dep, "err", err)
		}
	}

	select {
	case ev, ok := <-w.Events:
		if !ok {
			return fmt.Errorf("watcher event channel closed")
		}
		logger.Info("change detected", "path", ev.Name, "op", ev.Op.String())
	case err, ok := <-w.Errors:
		if !ok {
			return fmt.Errorf("watcher error channel closed")
		}
		return fmt.Errorf("watcher error: %w", err)
	}

	time.Sleep(Quiescence)

	if err := syscall.Kill(ppid, syscall.SIGHUP); err != nil {
		return fmt.Errorf("signalling parent: %w", err)
	}

	return nil
}
