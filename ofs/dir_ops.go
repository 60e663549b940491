package ofs

import "github.com/wzq/ofs/internal/fault"

// dirBlockCount returns the number of data blocks currently allocated
// to a directory inode, derived from its size.
func (fs *FileSystem) dirBlockCount(in *Inode) sector {
	sz := in.Size(fs.word)
	ss := uint64(fs.store.SectorSize())
	return (sz + ss - 1) / ss
}

// ReadDir returns every occupied entry of dirInode, in on-disk block
// and slot order.
func (fs *FileSystem) ReadDir(dirInode *Inode) ([]DirEntry, error) {
	fault.Check(dirInode.Type() == TypeDir, "ofs: ReadDir on non-directory inode %d", dirInode.ID)
	var out []DirEntry
	n := fs.dirBlockCount(dirInode)
	for blk := sector(0); blk < n; blk++ {
		s, err := fs.GetFileSector(dirInode, blk)
		if err != nil {
			return nil, err
		}
		if s == InvalidSector {
			continue
		}
		h, err := fs.cache.ReadLBA(s)
		if err != nil {
			return nil, err
		}
		fs.cache.Pin(h)
		b := fs.cache.Bytes(h)
		esz := dirEntrySize(fs.word)
		for off := 0; off+esz <= len(b); off += esz {
			e := decodeDirEntry(fs.word, b[off:off+esz])
			if !e.free(fs.word) {
				out = append(out, e)
			}
		}
		fs.cache.Unpin(h)
	}
	return out, nil
}

// Lookup searches dirInode for name, returning its inode ID and true if
// found.
func (fs *FileSystem) Lookup(dirInode *Inode, name string) (inodeID, bool, error) {
	entries, err := fs.ReadDir(dirInode)
	if err != nil {
		return 0, false, err
	}
	for _, e := range entries {
		if trimmedEqual(e.Name, name) {
			return e.Inode, true, nil
		}
	}
	return 0, false, nil
}

// Add installs a new (name, childID) entry into dirInode. It scans for
// a free slot starting from the last allocated block working backward,
// and within a block scans every slot without stopping early even after
// finding a match earlier in the same block, matching the original
// directory-insertion scan order. If no free slot exists, a new block
// is appended and the entry is placed in its first slot.
func (fs *FileSystem) Add(dirInode *Inode, name string, childID inodeID, allowAllDot bool) (Errno, error) {
	if errno := validateName(fs.word, name, allowAllDot); errno != Success {
		return errno, nil
	}

	esz := dirEntrySize(fs.word)
	n := fs.dirBlockCount(dirInode)

	for i := n; i > 0; i-- {
		blk := i - 1
		s, err := fs.GetFileSector(dirInode, blk)
		if err != nil {
			return Success, err
		}
		if s == InvalidSector {
			continue
		}
		h, err := fs.cache.ReadLBAForWrite(s)
		if err != nil {
			return Success, err
		}
		fs.cache.Pin(h)
		b := fs.cache.Bytes(h)
		found := -1
		for off := 0; off+esz <= len(b); off += esz {
			e := decodeDirEntry(fs.word, b[off:off+esz])
			if e.free(fs.word) && found < 0 {
				found = off
			}
		}
		if found >= 0 {
			copy(b[found:found+esz], (&DirEntry{Inode: childID, Name: name}).encode(fs.word))
			fs.cache.Unpin(h)
			return Success, nil
		}
		fs.cache.Unpin(h)
	}

	s, err := fs.GetFileSectorForWrite(dirInode, n)
	if err != nil {
		return Success, err
	}
	h, err := fs.cache.ReadLBAForWrite(s)
	if err != nil {
		return Success, err
	}
	fs.cache.Pin(h)
	b := fs.cache.Bytes(h)
	free := freeDirEntry(fs.word).encode(fs.word)
	for off := 0; off+esz <= len(b); off += esz {
		copy(b[off:off+esz], free)
	}
	copy(b[:esz], (&DirEntry{Inode: childID, Name: name}).encode(fs.word))
	fs.cache.Unpin(h)

	dirInode.SetSize(fs.word, dirInode.Size(fs.word)+uint64(fs.store.SectorSize()))
	return Success, fs.StoreInode(dirInode)
}

// Remove clears the entry named name from dirInode by overwriting its
// slot with the free sentinel, leaving it available for reuse.
func (fs *FileSystem) Remove(dirInode *Inode, name string) (bool, error) {
	n := fs.dirBlockCount(dirInode)
	esz := dirEntrySize(fs.word)
	free := freeDirEntry(fs.word).encode(fs.word)
	for blk := sector(0); blk < n; blk++ {
		s, err := fs.GetFileSector(dirInode, blk)
		if err != nil {
			return false, err
		}
		if s == InvalidSector {
			continue
		}
		h, err := fs.cache.ReadLBAForWrite(s)
		if err != nil {
			return false, err
		}
		fs.cache.Pin(h)
		b := fs.cache.Bytes(h)
		for off := 0; off+esz <= len(b); off += esz {
			e := decodeDirEntry(fs.word, b[off:off+esz])
			if !e.free(fs.word) && trimmedEqual(e.Name, name) {
				copy(b[off:off+esz], free)
				fs.cache.Unpin(h)
				return true, nil
			}
		}
		fs.cache.Unpin(h)
	}
	return false, nil
}
