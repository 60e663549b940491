package ofs

import (
	"fmt"
	"strings"
)

// Resolve walks a slash-separated absolute path from the root and
// returns the inode ID of the final component.
func (fs *FileSystem) Resolve(path string) (inodeID, error) {
	id := inodeID(RootInode)
	for _, part := range splitPath(path) {
		dir, err := fs.LoadInode(id)
		if err != nil {
			return 0, err
		}
		if dir.Type() != TypeDir {
			return 0, fmt.Errorf("ofs: %q: not a directory", part)
		}
		next, ok, err := fs.Lookup(dir, part)
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, fmt.Errorf("ofs: %q: no such file or directory", part)
		}
		id = next
	}
	return id, nil
}

func splitPath(path string) []string {
	var parts []string
	for _, p := range strings.Split(path, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// Create makes a new regular file named name inside the directory
// inode dirID and returns its inode.
func (fs *FileSystem) Create(dirID inodeID, name string) (*Inode, error) {
	return fs.createEntry(dirID, name, TypeFile)
}

// Mkdir makes a new, empty (only "." and "..") directory named name
// inside dirID.
func (fs *FileSystem) Mkdir(dirID inodeID, name string) (*Inode, error) {
	child, err := fs.createEntry(dirID, name, TypeDir)
	if err != nil {
		return nil, err
	}
	child.NLinks = 2
	if errno, err := fs.Add(child, ".", child.ID, DirNameAllowAllDot); err != nil {
		return nil, err
	} else if errno != Success {
		return nil, errno
	}
	if errno, err := fs.Add(child, "..", dirID, DirNameAllowAllDot); err != nil {
		return nil, err
	} else if errno != Success {
		return nil, errno
	}
	if err := fs.StoreInode(child); err != nil {
		return nil, err
	}
	parent, err := fs.LoadInode(dirID)
	if err != nil {
		return nil, err
	}
	parent.NLinks++
	return child, fs.StoreInode(parent)
}

func (fs *FileSystem) createEntry(dirID inodeID, name string, t FileType) (*Inode, error) {
	dir, err := fs.LoadInode(dirID)
	if err != nil {
		return nil, err
	}
	if dir.Type() != TypeDir {
		return nil, fmt.Errorf("ofs: inode %d is not a directory", dirID)
	}
	if errno := validateName(fs.word, name, DirNameDisallowAllDot); errno != Success {
		return nil, errno
	}
	if _, ok, err := fs.Lookup(dir, name); err != nil {
		return nil, err
	} else if ok {
		return nil, fmt.Errorf("ofs: %q: already exists", name)
	}

	child, errno, err := fs.AllocInode()
	if err != nil {
		return nil, err
	}
	if errno != Success {
		return nil, errno
	}
	child.SetType(t)
	child.NLinks = 1
	child.SetPerm(Perm{OwnerRead: true, OwnerWrite: true, GroupRead: true, OtherRead: true})
	if err := fs.StoreInode(child); err != nil {
		return nil, err
	}

	if errno, err := fs.Add(dir, name, child.ID, DirNameDisallowAllDot); err != nil {
		return nil, err
	} else if errno != Success {
		return nil, errno
	}
	return child, nil
}

// ReadAt reads len(buf) bytes of in's data starting at byte offset off,
// returning a short read at end-of-file. Holes read as zero bytes.
func (fs *FileSystem) ReadAt(in *Inode, off int64, buf []byte) (int, error) {
	size := int64(in.Size(fs.word))
	if off >= size {
		return 0, nil
	}
	if off+int64(len(buf)) > size {
		buf = buf[:size-off]
	}
	ss := int64(fs.store.SectorSize())
	n := 0
	for n < len(buf) {
		blk := sector((off + int64(n)) / ss)
		blkOff := int((off + int64(n)) % ss)
		s, err := fs.GetFileSector(in, blk)
		if err != nil {
			return n, err
		}
		chunk := int(ss) - blkOff
		if chunk > len(buf)-n {
			chunk = len(buf) - n
		}
		if s == InvalidSector {
			for i := 0; i < chunk; i++ {
				buf[n+i] = 0
			}
		} else {
			h, err := fs.cache.ReadLBA(s)
			if err != nil {
				return n, err
			}
			fs.cache.Pin(h)
			copy(buf[n:n+chunk], fs.cache.Bytes(h)[blkOff:blkOff+chunk])
			fs.cache.Unpin(h)
		}
		n += chunk
	}
	return n, nil
}

// WriteAt writes buf into in's data starting at byte offset off,
// allocating blocks (and growing the file's recorded size) as needed,
// and persists in via StoreInode before returning.
func (fs *FileSystem) WriteAt(in *Inode, off int64, buf []byte) (int, error) {
	ss := int64(fs.store.SectorSize())
	n := 0
	for n < len(buf) {
		blk := sector((off + int64(n)) / ss)
		blkOff := int((off + int64(n)) % ss)
		s, err := fs.GetFileSectorForWrite(in, blk)
		if err != nil {
			return n, err
		}
		chunk := int(ss) - blkOff
		if chunk > len(buf)-n {
			chunk = len(buf) - n
		}
		h, err := fs.cache.ReadLBAForWrite(s)
		if err != nil {
			return n, err
		}
		fs.cache.Pin(h)
		copy(fs.cache.Bytes(h)[blkOff:blkOff+chunk], buf[n:n+chunk])
		fs.cache.Unpin(h)
		n += chunk
	}
	if end := uint64(off) + uint64(n); end > in.Size(fs.word) {
		in.SetSize(fs.word, end)
	}
	return n, fs.StoreInode(in)
}
