// Package buffer implements the write-back buffer cache interposed between
// the filesystem and raw Storage: a bounded pool of sector-sized buffers
// with LRU eviction, explicit pinning, and dirty tracking.
//
// Every persistent read or write made by the filesystem layer goes through
// a Cache. The cache's pinning protocol is the coherence discipline that
// replaces locks in this single-threaded design: any caller that loads a
// buffer and then performs another buffer operation while still needing
// the first must Pin it first, because eviction may otherwise invalidate
// it at any time.
package buffer

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/wzq/ofs/internal/fault"
	"github.com/wzq/ofs/storage"
)

// DefaultSize is the reference buffer pool size (MAX_BUFFER in the
// original).
const DefaultSize = 16

const noSlot = -1

type slot struct {
	inUse       bool
	dirty       bool
	pinnedCount int
	lba         uint64
	data        []byte
	prev, next  int
}

// Cache is a fixed pool of sector-sized buffer slots backed by a Storage,
// with an MRU-to-LRU doubly linked list of in-use slots.
type Cache struct {
	storage storage.Storage
	log     *logrus.Logger
	slots   []slot
	head    int // MRU
	tail    int // LRU
	inUse   int
}

// New creates a Cache of size slots over storage. A nil logger falls back
// to logrus's standard logger, matching the rest of the module's logging
// convention.
func New(s storage.Storage, size int, log *logrus.Logger) *Cache {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if size <= 0 {
		size = DefaultSize
	}
	c := &Cache{
		storage: s,
		log:     log,
		slots:   make([]slot, size),
		head:    noSlot,
		tail:    noSlot,
	}
	for i := range c.slots {
		c.slots[i].data = make([]byte, s.SectorSize())
		c.slots[i].prev = noSlot
		c.slots[i].next = noSlot
	}
	return c
}

// Handle is an opaque reference to a cached buffer slot. It replaces the
// "pointer anywhere inside the buffer" addressing scheme of the original
// with an explicit slot index, per the filesystem's pointer-into-cache
// design guidance.
type Handle struct {
	idx int
}

func (c *Cache) handle(idx int) *Handle {
	return &Handle{idx: idx}
}

func (c *Cache) slotFor(h *Handle) *slot {
	fault.Check(h != nil, "buffer: nil handle")
	fault.Check(h.idx >= 0 && h.idx < len(c.slots), "buffer: handle index %d out of range", h.idx)
	return &c.slots[h.idx]
}

// Bytes returns the data area backing h within this cache.
func (c *Cache) Bytes(h *Handle) []byte {
	s := c.slotFor(h)
	fault.Check(s.inUse, "buffer: handle refers to a free slot")
	return s.data
}

func (c *Cache) listRemove(idx int) {
	s := &c.slots[idx]
	fault.Check(s.inUse, "buffer: remove on unused slot %d", idx)
	switch {
	case c.head == idx && c.tail == idx:
		c.head, c.tail = noSlot, noSlot
	case c.head == idx:
		c.head = s.next
		c.slots[c.head].prev = noSlot
	case c.tail == idx:
		c.tail = s.prev
		c.slots[c.tail].next = noSlot
	default:
		c.slots[s.prev].next = s.next
		c.slots[s.next].prev = s.prev
	}
	s.prev, s.next = noSlot, noSlot
	c.inUse--
}

func (c *Cache) listAddHead(idx int) {
	s := &c.slots[idx]
	if c.head == noSlot {
		c.head, c.tail = idx, idx
		s.prev, s.next = noSlot, noSlot
	} else {
		c.slots[c.head].prev = idx
		s.next = c.head
		s.prev = noSlot
		c.head = idx
	}
	c.inUse++
}

func (c *Cache) listAccess(idx int) {
	c.listRemove(idx)
	c.listAddHead(idx)
}

// writeBack writes the slot's contents to storage if dirty and clears the
// dirty flag. It does not touch the slot's position in the list.
func (c *Cache) writeBack(idx int) error {
	s := &c.slots[idx]
	if !s.dirty {
		return nil
	}
	if err := c.storage.WriteSector(s.lba, s.data); err != nil {
		return fmt.Errorf("buffer: write back lba %d: %w", s.lba, err)
	}
	s.dirty = false
	c.log.WithField("lba", s.lba).Debug("buffer: wrote back dirty slot")
	return nil
}

// evictLRU walks the in-use list from the LRU end toward the MRU end,
// skipping pinned slots, and writes back and detaches the first unpinned
// slot it finds. If every in-use slot is pinned, the working set has
// exceeded the pool size; this is a fatal condition.
func (c *Cache) evictLRU() (int, error) {
	fault.Check(c.tail != noSlot, "buffer: evictLRU called on empty cache")
	idx := c.tail
	for c.slots[idx].pinnedCount != 0 {
		idx = c.slots[idx].prev
		fault.Check(idx != noSlot, "buffer: all buffers are pinned; could not evict")
	}
	if err := c.writeBack(idx); err != nil {
		return noSlot, err
	}
	c.listRemove(idx)
	c.slots[idx].inUse = false
	c.slots[idx].dirty = false
	return idx, nil
}

// getEmptyBuffer returns the index of a free slot, evicting the LRU
// unpinned in-use slot if the pool is full.
func (c *Cache) getEmptyBuffer() (int, error) {
	for i := range c.slots {
		if !c.slots[i].inUse {
			c.slots[i].inUse = true
			c.slots[i].dirty = false
			return i, nil
		}
	}
	idx, err := c.evictLRU()
	if err != nil {
		return noSlot, err
	}
	c.slots[idx].inUse = true
	return idx, nil
}

func (c *Cache) findLBA(lba uint64) int {
	for idx := c.head; idx != noSlot; idx = c.slots[idx].next {
		if c.slots[idx].lba == lba {
			return idx
		}
	}
	return noSlot
}

func (c *Cache) readLBA(lba uint64, readFlag bool) (int, error) {
	if idx := c.findLBA(lba); idx != noSlot {
		c.listAccess(idx)
		return idx, nil
	}

	idx, err := c.getEmptyBuffer()
	if err != nil {
		return noSlot, err
	}
	c.slots[idx].lba = lba
	if readFlag {
		if err := c.storage.ReadSector(lba, c.slots[idx].data); err != nil {
			return noSlot, fmt.Errorf("buffer: read lba %d: %w", lba, err)
		}
	}
	c.listAddHead(idx)
	c.log.WithField("lba", lba).Debug("buffer: filled slot")
	return idx, nil
}

// ReadLBA returns a handle to the sector's contents, promoting it to MRU.
// If the sector is not cached, a victim slot is chosen and filled from
// storage.
func (c *Cache) ReadLBA(lba uint64) (*Handle, error) {
	idx, err := c.readLBA(lba, true)
	if err != nil {
		return nil, err
	}
	return c.handle(idx), nil
}

// ReadLBAForWrite is like ReadLBA but also marks the buffer dirty.
func (c *Cache) ReadLBAForWrite(lba uint64) (*Handle, error) {
	idx, err := c.readLBA(lba, true)
	if err != nil {
		return nil, err
	}
	c.slots[idx].dirty = true
	return c.handle(idx), nil
}

// WriteLBA reserves and marks dirty a buffer for lba without reading the
// sector from storage first (a blind-write intent); the caller must
// overwrite the entire data area before the buffer is evicted.
func (c *Cache) WriteLBA(lba uint64) (*Handle, error) {
	idx, err := c.readLBA(lba, false)
	if err != nil {
		return nil, err
	}
	c.slots[idx].dirty = true
	return c.handle(idx), nil
}

// Pin increments the pinned count for h's slot, making it ineligible for
// eviction until a matching Unpin.
func (c *Cache) Pin(h *Handle) {
	s := c.slotFor(h)
	fault.Check(s.inUse, "buffer: pin on unused slot")
	s.pinnedCount++
}

// Unpin decrements the pinned count for h's slot. Pin/Unpin calls must be
// balanced; unpinning an already-unpinned slot is a fatal invariant
// violation.
func (c *Cache) Unpin(h *Handle) {
	s := c.slotFor(h)
	fault.Check(s.inUse, "buffer: unpin on unused slot")
	fault.Check(s.pinnedCount != 0, "buffer: unpin on slot with zero pin count")
	s.pinnedCount--
}

// Pinned acquires a pin on h and returns a release func for deferred,
// scoped release, per the cache's "pin as scoped acquisition" idiom.
func (c *Cache) Pinned(h *Handle) func() {
	c.Pin(h)
	return func() { c.Unpin(h) }
}

// SetDirty marks h's slot dirty.
func (c *Cache) SetDirty(h *Handle) {
	s := c.slotFor(h)
	fault.Check(s.inUse, "buffer: set dirty on unused slot")
	s.dirty = true
}

// IsDirty reports whether h's slot is dirty.
func (c *Cache) IsDirty(h *Handle) bool {
	s := c.slotFor(h)
	fault.Check(s.inUse, "buffer: is dirty on unused slot")
	return s.dirty
}

// IsPinned reports whether h's slot has a nonzero pin count.
func (c *Cache) IsPinned(h *Handle) bool {
	s := c.slotFor(h)
	fault.Check(s.inUse, "buffer: is pinned on unused slot")
	return s.pinnedCount != 0
}

// Flush writes h's slot back to storage if dirty and clears the dirty
// flag. The slot remains cached.
func (c *Cache) Flush(h *Handle) error {
	s := c.slotFor(h)
	fault.Check(s.inUse, "buffer: flush on unused slot")
	return c.writeBack(h.idx)
}

// FlushAll writes back and detaches every cached buffer. It is fatal if
// any buffer is still pinned, since that indicates a caller has not
// released a resource it should have by the time all external operations
// have returned.
func (c *Cache) FlushAll() error {
	for c.head != noSlot {
		idx := c.head
		fault.Check(c.slots[idx].pinnedCount == 0, "buffer: flush_all with pinned slot (lba %d)", c.slots[idx].lba)
		if err := c.writeBack(idx); err != nil {
			return err
		}
		c.listRemove(idx)
		c.slots[idx].inUse = false
		c.slots[idx].dirty = false
	}
	return nil
}

// FlushAllNoRemove writes back every dirty buffer but keeps all buffers
// cached, clearing their dirty flags.
func (c *Cache) FlushAllNoRemove() error {
	for idx := c.head; idx != noSlot; idx = c.slots[idx].next {
		if err := c.writeBack(idx); err != nil {
			return err
		}
	}
	return nil
}

// PinnedCount returns the number of slots with a nonzero pin count. The
// filesystem's external operations are expected to leave this at zero on
// return.
func (c *Cache) PinnedCount() int {
	count := 0
	for i := range c.slots {
		if c.slots[i].inUse && c.slots[i].pinnedCount != 0 {
			count++
		}
	}
	return count
}

// InUseCount returns the number of slots currently holding a cached
// sector.
func (c *Cache) InUseCount() int {
	return c.inUse
}
