//go:build aix || darwin || dragonfly || freebsd || linux || netbsd || openbsd || solaris
// +build aix darwin dragonfly freebsd linux netbsd openbsd solaris

package storage

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// lock takes an advisory exclusive lock on the backing file for the
// lifetime of this process's handle. The filesystem core is single-process
// and single-threaded per its concurrency model; this guards only against a
// second process opening the same image for write concurrently, not against
// in-process races.
func (fs *FileStorage) lock() error {
	if err := unix.Flock(int(fs.f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		return fmt.Errorf("storage: lock %s: %w", fs.path, err)
	}
	fs.locked = true
	return nil
}

func (fs *FileStorage) unlock() error {
	return unix.Flock(int(fs.f.Fd()), unix.LOCK_UN)
}

func (fs *FileStorage) sync() error {
	if err := unix.Fsync(int(fs.f.Fd())); err != nil {
		return fmt.Errorf("storage: fsync %s: %w", fs.path, err)
	}
	return nil
}
