//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package lineage

import "os"

// lockFile is a no-op where flock is unavailable; the recorder mutex still
// serializes writers inside the process.
func lockFile(f *os.File) error {
	return nil
}
