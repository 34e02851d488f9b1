//go:build linux

// Package procutil holds small Linux process-control helpers used by the
// reexec'd watch child.
package procutil

import "golang.org/x/sys/unix"

// SetParentDeathSignal arranges for the calling process to receive sig
// when its parent dies.
func SetParentDeathSignal(sig unix.Signal) error {
	return unix.Prctl(unix.PR_SET_PDEATHSIG, uintptr(sig), 0, 0, 0)
}
