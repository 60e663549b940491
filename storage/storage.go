// Package storage provides the sector-addressable backing store for the ofs
// filesystem: a fixed-size-sector byte container that can be backed by
// memory or by a host file.
package storage

import (
	"errors"
	"fmt"
	"time"
)

// ErrOutOfRange is returned when an LBA falls outside [0, SectorCount()).
var ErrOutOfRange = errors.New("storage: lba out of range")

// ErrClosed is returned by any operation performed on a closed Storage.
var ErrClosed = errors.New("storage: storage is closed")

// ErrShortTransfer is returned when a caller's buffer does not match the
// sector size exactly; every transfer must move exactly SectorSize() bytes.
var ErrShortTransfer = errors.New("storage: buffer does not match sector size")

// Storage is a fixed-size-sector byte container. Implementations must
// transfer exactly SectorSize() bytes per ReadSector/WriteSector call and
// fail on any LBA outside [0, SectorCount()). There is no internal caching;
// that is the job of the buffer package layered on top.
type Storage interface {
	// ReadSector reads the sector at lba into out, which must have length
	// SectorSize().
	ReadSector(lba uint64, out []byte) error
	// WriteSector writes in (which must have length SectorSize()) to the
	// sector at lba.
	WriteSector(lba uint64, in []byte) error
	// SectorSize returns the fixed sector size in bytes.
	SectorSize() int
	// SectorCount returns the total number of addressable sectors.
	SectorCount() uint64
	// Close releases any resources (file handles, locks) held by the
	// storage. A file-backed image is left intact on disk; a memory-backed
	// storage discards its contents and rejects later transfers with
	// ErrClosed.
	Close() error
}

// HostTimes is implemented by Storage backends that are rooted in a host
// filesystem file and can report its access/modification/creation times.
// This is distinct from the on-disk inode actime/modtime words, which are
// untouched placeholder fields per the filesystem's data model.
type HostTimes interface {
	HostTimes() (access, modify, create time.Time, err error)
}

func checkTransfer(s Storage, lba uint64, buf []byte) error {
	if len(buf) != s.SectorSize() {
		return fmt.Errorf("%w: got %d want %d", ErrShortTransfer, len(buf), s.SectorSize())
	}
	if lba >= s.SectorCount() {
		return fmt.Errorf("%w: lba %d, sector count %d", ErrOutOfRange, lba, s.SectorCount())
	}
	return nil
}

// latencySim optionally sleeps before every transfer to emulate real disk
// latency. It is off by default (zero Duration) and is never active in the
// correctness property tests; it exists to let buffer-cache tests observe
// eviction timing deterministically when they choose to enable it.
type latencySim struct {
	delay time.Duration
}

func (l latencySim) sleep() {
	if l.delay > 0 {
		time.Sleep(l.delay)
	}
}

// Option configures a Storage at construction time.
type Option func(*latencySim)

// WithLatency makes every ReadSector/WriteSector call sleep for d before
// performing the transfer. The default is no delay.
func WithLatency(d time.Duration) Option {
	return func(l *latencySim) {
		l.delay = d
	}
}
