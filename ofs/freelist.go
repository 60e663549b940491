package ofs

import (
	"github.com/wzq/ofs/internal/fault"
)

// AllocSector pops one sector off the superblock's cached free list,
// mirroring the original's alloc algorithm. free[0] is the chain pointer
// to the next free-list node: when it is the last entry popped, that
// node's contents are loaded as the superblock's new array and the node
// sector itself is handed out. A free[0] of InvalidSector ends the chain.
func (fs *FileSystem) AllocSector() (sector, Errno) {
	sb := fs.sb
	if sb.freeArr.nfree == 0 {
		return InvalidSector, ErrNoSpace
	}
	sb.freeArr.nfree--
	s := sb.freeArr.free[sb.freeArr.nfree]
	if s == InvalidSector {
		// Exhausted: the array held only the terminating zero entry,
		// which stays in place for later frees to build on.
		sb.freeArr.nfree = 1
		return InvalidSector, ErrNoSpace
	}
	if sb.freeArr.nfree == 0 {
		if err := fs.replenishFreeArray(s); err != nil {
			fault.Check(false, "ofs: replenish free array: %v", err)
		}
	}
	fs.dirtySB = true
	return s, Success
}

// replenishFreeArray reads the free-list node stored at sector s (which
// has just been allocated to the caller) and installs its contents as
// the new cached free array, exactly mirroring the chain format written
// by FreeSector.
func (fs *FileSystem) replenishFreeArray(s sector) error {
	h, err := fs.cache.ReadLBA(s)
	if err != nil {
		return err
	}
	defer fs.cache.Pinned(h)()
	b := fs.cache.Bytes(h)
	fs.sb.freeArr.decode(fs.word, b)
	return nil
}

// FreeSector pushes sector s back onto the free list. When the cached
// free array is full, the current array is flushed into s itself (s
// becomes the new head-of-chain free-list node) and the array is reset
// to hold only s.
func (fs *FileSystem) FreeSector(s sector) error {
	fault.Check(s != InvalidSector, "ofs: free of InvalidSector")
	sb := fs.sb
	if sb.freeArr.nfree >= FreeArrayMax {
		h, err := fs.cache.WriteLBA(s)
		if err != nil {
			return err
		}
		b := fs.cache.Bytes(h)
		sb.freeArr.encode(fs.word, b)
		if err := fs.cache.Flush(h); err != nil {
			return err
		}
		sb.freeArr.nfree = 0
	}
	sb.freeArr.free[sb.freeArr.nfree] = s
	sb.freeArr.nfree++
	fs.dirtySB = true
	return nil
}

// ZeroSector overwrites sector s with zero bytes, used to initialize a
// freshly allocated indirection sector and the inode region at format
// time (the original's clrbuf behavior). Data sectors are not zeroed.
func (fs *FileSystem) ZeroSector(s sector) error {
	h, err := fs.cache.WriteLBA(s)
	if err != nil {
		return err
	}
	b := fs.cache.Bytes(h)
	for i := range b {
		b[i] = 0
	}
	return fs.cache.Flush(h)
}
