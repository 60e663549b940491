package ofs

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/wzq/ofs/buffer"
	"github.com/wzq/ofs/storage"
)

// FormatOptions parameterizes Format: the word width, the inode-region
// size, the buffer cache size and the logger. The total sector count is
// taken from the storage, and the data-region size is derived from it.
type FormatOptions struct {
	WordSize         int
	InodeSectorCount uint64
	CacheSize        int
	Log              *logrus.Logger
}

// Format zeroes the inode region, threads every data sector onto the
// free list, writes a fresh superblock, and installs the root directory
// with "." and ".." self-referencing entries, matching the original's
// mkfs sequence: inode zeroing first, then the free list built from the
// high end of the disk downward so that low-numbered sectors are
// allocated first in subsequent use, then the superblock, then the root
// directory.
func Format(s storage.Storage, opts FormatOptions) (*FileSystem, error) {
	w, err := newWordWidth(opts.WordSize)
	if err != nil {
		return nil, err
	}
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	total := s.SectorCount()
	if opts.InodeSectorCount == 0 || opts.InodeSectorCount+SBSector+1 >= total {
		return nil, fmt.Errorf("ofs: invalid inode sector count %d for %d total sectors", opts.InodeSectorCount, total)
	}

	sb := &superblock{
		isize: opts.InodeSectorCount,
		fsize: total - SBSector - 1 - opts.InodeSectorCount,
		uuid:  uuid.New(),
	}

	cache := buffer.New(s, opts.CacheSize, log)
	fs := &FileSystem{store: s, cache: cache, log: log, word: w, sb: sb}
	fs.ctx = deriveContext(w, s.SectorSize(), sb)

	if err := fs.zeroInodeRegion(); err != nil {
		return nil, err
	}
	if err := fs.buildFreeList(); err != nil {
		return nil, err
	}
	if err := fs.writeSuperblock(); err != nil {
		return nil, err
	}
	if err := fs.cache.FlushAllNoRemove(); err != nil {
		return nil, err
	}
	if err := fs.initRoot(); err != nil {
		return nil, err
	}
	if err := fs.Sync(); err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"isize": sb.isize,
		"fsize": sb.fsize,
		"uuid":  sb.uuid,
	}).Info("ofs: formatted volume")
	return fs, nil
}

func (fs *FileSystem) zeroInodeRegion() error {
	for s := fs.ctx.InodeStartSector; s < fs.ctx.InodeEndSector; s++ {
		if err := fs.ZeroSector(s); err != nil {
			return err
		}
	}
	return nil
}

// buildFreeList threads every data sector onto the free chain, starting
// from the highest-numbered sector and working down, so that
// AllocSector (a LIFO pop) hands out low-numbered sectors first. The
// array starts with free[0] = InvalidSector, the end-of-chain marker.
func (fs *FileSystem) buildFreeList() error {
	fs.sb.freeArr = freeArray{nfree: 1}
	for s := fs.ctx.FreeEndSector; s > fs.ctx.FreeStartSector; s-- {
		if err := fs.FreeSector(s - 1); err != nil {
			return err
		}
	}
	return nil
}

// initRoot allocates the root inode, which is RootInode because the
// inode region has just been zeroed and AllocInode hands out the lowest
// free ID first, and installs its self-referencing "." and ".." entries.
func (fs *FileSystem) initRoot() error {
	in, errno, err := fs.AllocInode()
	if err != nil {
		return err
	}
	if errno != Success {
		return errno
	}
	if in.ID != RootInode {
		return fmt.Errorf("ofs: expected root inode id %d, got %d", RootInode, in.ID)
	}
	in.SetType(TypeDir)
	in.SetPerm(Perm{OwnerRead: true, OwnerWrite: true, OwnerExec: true, GroupRead: true, GroupExec: true, OtherRead: true, OtherExec: true})
	in.NLinks = 2
	if err := fs.StoreInode(in); err != nil {
		return err
	}

	if errno, err := fs.Add(in, ".", RootInode, DirNameAllowAllDot); err != nil {
		return err
	} else if errno != Success {
		return errno
	}
	if errno, err := fs.Add(in, "..", RootInode, DirNameAllowAllDot); err != nil {
		return err
	} else if errno != Success {
		return errno
	}
	return nil
}
