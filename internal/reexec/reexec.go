// Package reexec spawns the running binary as a hidden subcommand of
// itself, standing in for the fork()-only children (the change watcher,
// the log relay) that the upstream daemon creates with plain fork().
package reexec

import (
	"os"
	"os/exec"
)

// Self is the path used to reinvoke the current binary. /proc/self/exe is
// preferred on Linux since it survives the original argv[0] being
// relative, deleted, or replaced; it falls back to os.Args[0] when
// unavailable (non-Linux, or a sandbox without /proc).
func Self() string {
	if _, err := os.Stat("/proc/self/exe"); err == nil {
		return "/proc/self/exe"
	}
	return os.Args[0]
}

// Command builds an *exec.Cmd that reinvokes the current binary with args,
// ready for the caller to attach stdio and SysProcAttr before Start.
func Command(args ...string) *exec.Cmd {
	cmd := exec.Command(Self(), args...)
	cmd.Env = os.Environ()
	return cmd
}
