//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package lineage

import (
	"os"
	"syscall"

	"github.com/teranos/curate/errors"
)

// lockFile takes a non-blocking exclusive advisory lock on f. The lock is
// released when f is closed.
func lockFile(f *os.File) error {
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		if errors.Is(err, syscall.EWOULDBLOCK) {
			return errors.Mark(errors.Newf("%s is locked by another writer", f.Name()), ErrLocked)
		}
		return errors.Wrapf(err, "failed to lock %s", f.Name())
	}
	return nil
}
