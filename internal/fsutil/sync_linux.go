//go:build linux

package fsutil

import (
	"os"

	"golang.org/x/sys/unix"
)

// Fdatasync flushes f's written data to the device. It skips the metadata
// flush a full fsync would force when only file contents changed.
func Fdatasync(f *os.File) error {
	return unix.Fdatasync(int(f.Fd()))
}
