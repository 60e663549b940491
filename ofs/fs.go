package ofs

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/wzq/ofs/buffer"
	"github.com/wzq/ofs/internal/fault"
	"github.com/wzq/ofs/storage"
)

// FileSystem is a mounted OFS volume: a buffer cache over a Storage, the
// decoded superblock, and the geometry Context derived from it.
type FileSystem struct {
	store storage.Storage
	cache *buffer.Cache
	log   *logrus.Logger

	word wordWidth
	sb   *superblock
	ctx  *Context

	dirtySB bool
}

// Options configure Mount beyond the storage and word width. Format takes
// its own FormatOptions.
type Options struct {
	// CacheSize is the number of buffer slots. Zero selects
	// buffer.DefaultSize.
	CacheSize int
	// Log receives structured diagnostics. A nil Log falls back to
	// logrus's standard logger.
	Log *logrus.Logger
}

// Mount reads and validates the superblock at SBSector, derives the
// geometry Context, and returns a ready-to-use FileSystem.
func Mount(s storage.Storage, wordSize int, opts Options) (*FileSystem, error) {
	w, err := newWordWidth(wordSize)
	if err != nil {
		return nil, err
	}
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	cache := buffer.New(s, opts.CacheSize, log)

	h, err := cache.ReadLBA(SBSector)
	if err != nil {
		return nil, fmt.Errorf("ofs: read superblock: %w", err)
	}
	defer cache.Pinned(h)()
	sb, err := decodeSuperblock(w, cache.Bytes(h))
	if err != nil {
		return nil, err
	}

	fs := &FileSystem{
		store: s,
		cache: cache,
		log:   log,
		word:  w,
		sb:    sb,
	}
	fs.ctx = deriveContext(w, s.SectorSize(), sb)
	return fs, nil
}

// Context returns the mounted filesystem's derived geometry.
func (fs *FileSystem) Context() *Context { return fs.ctx }

// Sync writes the superblock back if modified and flushes every dirty
// buffer without discarding the cache, the steady-state durability
// operation a caller should invoke periodically or before closing.
func (fs *FileSystem) Sync() error {
	if fs.dirtySB {
		if err := fs.writeSuperblock(); err != nil {
			return err
		}
		fs.dirtySB = false
	}
	return fs.cache.FlushAllNoRemove()
}

// Close flushes all state and releases the underlying storage. It is
// fatal to call Close while any buffer remains pinned, since that means
// some caller above the filesystem boundary has leaked a reference.
func (fs *FileSystem) Close() error {
	if err := fs.Sync(); err != nil {
		return err
	}
	fault.Check(fs.cache.PinnedCount() == 0, "ofs: close with %d buffers still pinned", fs.cache.PinnedCount())
	if err := fs.cache.FlushAll(); err != nil {
		return err
	}
	return fs.store.Close()
}

func (fs *FileSystem) writeSuperblock() error {
	h, err := fs.cache.WriteLBA(SBSector)
	if err != nil {
		return err
	}
	b := fs.sb.encode(fs.word, fs.store.SectorSize())
	copy(fs.cache.Bytes(h), b)
	return fs.cache.Flush(h)
}

// inodeLocation returns the sector holding inode id and id's byte offset
// within that sector.
func (fs *FileSystem) inodeLocation(id inodeID) (sector, int) {
	perSector := fs.ctx.InodePerSector
	sec := fs.ctx.InodeStartSector + id/perSector
	off := int(id%perSector) * fs.ctx.inodeSize
	return sec, off
}

// LoadInode reads and decodes inode id.
func (fs *FileSystem) LoadInode(id inodeID) (*Inode, error) {
	fault.Check(id < fs.ctx.TotalInodeCount, "ofs: inode id %d out of range", id)
	sec, off := fs.inodeLocation(id)
	h, err := fs.cache.ReadLBA(sec)
	if err != nil {
		return nil, err
	}
	defer fs.cache.Pinned(h)()
	b := fs.cache.Bytes(h)
	return decodeInode(fs.word, id, b[off:off+fs.ctx.inodeSize]), nil
}

// StoreInode encodes and writes in back to its sector.
func (fs *FileSystem) StoreInode(in *Inode) error {
	sec, off := fs.inodeLocation(in.ID)
	h, err := fs.cache.ReadLBAForWrite(sec)
	if err != nil {
		return err
	}
	defer fs.cache.Pinned(h)()
	b := fs.cache.Bytes(h)
	copy(b[off:off+fs.ctx.inodeSize], in.encode(fs.word, in.ID))
	return nil
}
