// Package ofs implements a simulated UNIX System V "Old File System":
// a superblock, free-sector manager, inode allocator, multi-level block
// map, and directory layer, all operating through a buffer.Cache over a
// storage.Storage.
package ofs

import "fmt"

// Errno is a user-facing result code, the first of the two error classes
// named in the filesystem's error model: resource exhaustion and name
// validation failures that callers are expected to handle.
type Errno int

const (
	// Success indicates the operation completed normally.
	Success Errno = iota
	// ErrNameTooLong is returned when a directory entry name exceeds the
	// maximum name length for the mounted word size.
	ErrNameTooLong
	// ErrIllegalChar is returned when a directory entry name contains a
	// character outside [A-Z][a-z][0-9]._- and space.
	ErrIllegalChar
	// ErrIllegalName is returned for names that are otherwise
	// well-formed but forbidden: all dots, or all spaces.
	ErrIllegalName
	// ErrNoSpace is returned when sector allocation is exhausted.
	ErrNoSpace
	// ErrNoInode is returned when inode allocation is exhausted.
	ErrNoInode
)

func (e Errno) Error() string {
	switch e {
	case Success:
		return "success"
	case ErrNameTooLong:
		return "name too long"
	case ErrIllegalChar:
		return "illegal character in name"
	case ErrIllegalName:
		return "illegal name"
	case ErrNoSpace:
		return "no space left on device"
	case ErrNoInode:
		return "no free inodes"
	default:
		return fmt.Sprintf("ofs: unknown errno %d", int(e))
	}
}

// FileType is the two-bit type code packed into an inode's flags word.
type FileType uint8

const (
	TypeFile  FileType = 0b00
	TypeChar  FileType = 0b01
	TypeDir   FileType = 0b10
	TypeBlock FileType = 0b11
)

// Geometry constants from the data model. FreeArrayMax (K) is the capacity
// of both the superblock's cached free-sector array and the free-inode
// hint array. AddrArrayLen (A) is the number of direct/indirect address
// slots in an inode.
const (
	FreeArrayMax = 100
	AddrArrayLen = 8

	sigSize = 4
)

// Signature is the 4-byte magic stored in the superblock, identifying a
// valid filesystem image.
var Signature = [sigSize]byte{'W', 'Z', 'Q', 0}

// SBSector is the fixed sector index of the superblock.
const SBSector = 1

// InvalidSector is the sentinel sector ID marking a free/unallocated or
// hole slot. Sector 0 is reserved (boot sector) and is never a valid data
// or inode-region sector, which is what makes 0 safe to use as the
// sentinel.
const InvalidSector = 0

// invalidWord returns the all-ones value representable in wordWidth w,
// used as InvalidInode ((sector_t)-1) for the mounted word size.
func invalidWord(w wordWidth) uint64 {
	return w.max()
}

// RootInode is the inode ID of the filesystem root directory.
const RootInode = 0

// DirNameDisallowAllDot / DirNameAllowAllDot select whether name
// validation in Add accepts a name made entirely of dots (used only when
// installing "." and "..").
const (
	DirNameDisallowAllDot = false
	DirNameAllowAllDot    = true
)
