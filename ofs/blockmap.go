package ofs

import "github.com/wzq/ofs/internal/fault"

// sectorKind distinguishes a sector holding raw file/directory data from
// one holding an array of sector_t pointers (single- or double-indirect
// blocks). Per spec.md §9, only indirection sectors are initialized on
// allocation; a freshly allocated data sector is left untouched and the
// caller must overwrite it before any read, matching
// original_source/src/util/ofs.c's fs_addr_read_or_alloc, which runs its
// blind zero-fill loop only on the FS_INDIR_SECTOR path.
type sectorKind int

const (
	kindData sectorKind = iota
	kindIndir
)

// allocSectorOfKind allocates a sector and, for kindIndir only,
// zero-initializes it so every pointer slot reads as InvalidSector.
// A kindData sector is returned uninitialized.
func (fs *FileSystem) allocSectorOfKind(kind sectorKind) (sector, Errno, error) {
	ns, errno := fs.AllocSector()
	if errno != Success {
		return InvalidSector, errno, nil
	}
	if kind == kindIndir {
		if err := fs.ZeroSector(ns); err != nil {
			return InvalidSector, Success, err
		}
	}
	return ns, Success, nil
}

// GetFileSector translates a logical block number within in's data to
// the physical sector holding it, returning InvalidSector for a hole
// (a block never written). It never allocates.
func (fs *FileSystem) GetFileSector(in *Inode, block sector) (sector, error) {
	return fs.mapBlock(in, block, false)
}

// GetFileSectorForWrite is like GetFileSector but allocates any sector
// along the path that does not yet exist, including converting a small
// file to large and installing indirect/double-indirect blocks as
// needed. A freshly allocated data sector is NOT zeroed; the caller must
// overwrite it before relying on its contents. It is the caller's
// responsibility to persist the inode afterward via StoreInode, since
// addr[] may have changed.
func (fs *FileSystem) GetFileSectorForWrite(in *Inode, block sector) (sector, error) {
	return fs.mapBlock(in, block, true)
}

func (fs *FileSystem) mapBlock(in *Inode, block sector, write bool) (sector, error) {
	if !in.Large() {
		if block < AddrArrayLen {
			return fs.directSlot(in, block, write)
		}
		if !write {
			return InvalidSector, nil
		}
		if err := fs.convertToLarge(in); err != nil {
			return InvalidSector, err
		}
	}

	if block < fs.ctx.ExtraLargeStartSector {
		indirIdx := block / fs.ctx.IDPerIndirSector
		indirOff := block % fs.ctx.IDPerIndirSector
		fault.Check(indirIdx < AddrArrayLen-1, "ofs: indirect index %d out of range", indirIdx)
		return fs.indirectSlot(in, uint64(indirIdx), indirOff, write)
	}

	// Extra-large: addr[A-1] is a double-indirect block.
	rel := block - fs.ctx.ExtraLargeStartSector
	dblIdx := rel / fs.ctx.IDPerIndirSector
	dblOff := rel % fs.ctx.IDPerIndirSector
	return fs.doubleIndirectSlot(in, dblIdx, dblOff, write)
}

// directSlot resolves (and, if write, allocates) a direct data sector.
// The allocated sector is a data sector and is left unzeroed.
func (fs *FileSystem) directSlot(in *Inode, idx sector, write bool) (sector, error) {
	s := in.Addr[idx]
	if s != InvalidSector {
		return s, nil
	}
	if !write {
		return InvalidSector, nil
	}
	ns, errno, err := fs.allocSectorOfKind(kindData)
	if err != nil {
		return InvalidSector, err
	}
	if errno != Success {
		return InvalidSector, errno
	}
	in.Addr[idx] = ns
	return ns, nil
}

// convertToLarge migrates a small file's A direct blocks into
// a freshly allocated first indirect block, then sets the large bit.
// addr[A-1] is left InvalidSector until extra-large indirection is
// needed. The new indirect block is an indirection sector and is
// zero-initialized.
func (fs *FileSystem) convertToLarge(in *Inode) error {
	indirSector, errno, err := fs.allocSectorOfKind(kindIndir)
	if err != nil {
		return err
	}
	if errno != Success {
		return errno
	}
	h, err := fs.cache.ReadLBAForWrite(indirSector)
	if err != nil {
		return err
	}
	b := fs.cache.Bytes(h)
	for i := 0; i < AddrArrayLen; i++ {
		fs.word.putWord(b, i*fs.word.wordSize(), in.Addr[i])
	}
	if ferr := fs.cache.Flush(h); ferr != nil {
		return ferr
	}
	for i := 0; i < AddrArrayLen; i++ {
		in.Addr[i] = InvalidSector
	}
	in.Addr[0] = indirSector
	in.SetLarge()
	return nil
}

// indirectSlot resolves block via the single-indirect chain rooted at
// in.Addr[level]. The indirect block itself is an indirection sector and
// is zero-initialized on allocation; the data sector it ultimately
// resolves to is not.
func (fs *FileSystem) indirectSlot(in *Inode, level uint64, off sector, write bool) (sector, error) {
	indirSector := in.Addr[level]
	if indirSector == InvalidSector {
		if !write {
			return InvalidSector, nil
		}
		ns, errno, err := fs.allocSectorOfKind(kindIndir)
		if err != nil {
			return InvalidSector, err
		}
		if errno != Success {
			return InvalidSector, errno
		}
		in.Addr[level] = ns
		indirSector = ns
	}
	return fs.resolveIndirectEntry(indirSector, off, write, kindData)
}

// doubleIndirectSlot resolves block via the second-level indirect block
// referenced from addr[A-1][dblIdx]. Both the top-level and second-level
// indirect blocks are indirection sectors and are zero-initialized; only
// the final data sector is left unzeroed.
func (fs *FileSystem) doubleIndirectSlot(in *Inode, dblIdx, off sector, write bool) (sector, error) {
	topSector := in.Addr[AddrArrayLen-1]
	if topSector == InvalidSector {
		if !write {
			return InvalidSector, nil
		}
		ns, errno, err := fs.allocSectorOfKind(kindIndir)
		if err != nil {
			return InvalidSector, err
		}
		if errno != Success {
			return InvalidSector, errno
		}
		in.Addr[AddrArrayLen-1] = ns
		topSector = ns
	}
	indirSector, err := fs.resolveIndirectEntry(topSector, dblIdx, write, kindIndir)
	if err != nil || indirSector == InvalidSector {
		return InvalidSector, err
	}
	return fs.resolveIndirectEntry(indirSector, off, write, kindData)
}

// resolveIndirectEntry reads (and, if write, allocates) the entry at
// index idx within the indirect block at sector parent. kind describes
// the sector the entry itself points to: kindIndir entries are
// zero-initialized on allocation, kindData entries are not.
func (fs *FileSystem) resolveIndirectEntry(parent sector, idx sector, write bool, kind sectorKind) (sector, error) {
	h, err := fs.cache.ReadLBA(parent)
	if err != nil {
		return InvalidSector, err
	}
	fs.cache.Pin(h)
	off := int(idx) * fs.word.wordSize()
	cur := fs.word.getWord(fs.cache.Bytes(h), off)
	if cur != InvalidSector || !write {
		fs.cache.Unpin(h)
		return cur, nil
	}
	fs.cache.Unpin(h)

	ns, errno, err := fs.allocSectorOfKind(kind)
	if err != nil {
		return InvalidSector, err
	}
	if errno != Success {
		return InvalidSector, errno
	}
	wh, err := fs.cache.ReadLBAForWrite(parent)
	if err != nil {
		return InvalidSector, err
	}
	fs.cache.Pin(wh)
	fs.word.putWord(fs.cache.Bytes(wh), off, ns)
	fs.cache.Unpin(wh)
	return ns, nil
}
