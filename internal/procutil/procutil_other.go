//go:build !linux

package procutil

import "golang.org/x/sys/unix"

// SetParentDeathSignal is a no-op outside Linux: PR_SET_PDEATHSIG has no
// equivalent here, so an orphaned watcher just keeps running without the
// guaranteed prompt exit if its parent dies unexpectedly.
func SetParentDeathSignal(sig unix.Signal) error {
	return nil
}
