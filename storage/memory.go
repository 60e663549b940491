package storage

import "sync/atomic"

// MemoryStorage is a Storage implementation backed by a single heap
// allocation of sectorCount*sectorSize bytes. It is the in-memory variant
// named in the storage component design.
type MemoryStorage struct {
	sectorSize  int
	sectorCount uint64
	data        []byte
	latency     latencySim
	closed      atomic.Bool
}

// NewMemory allocates a new memory-backed Storage of sectorCount sectors of
// sectorSize bytes each.
func NewMemory(sectorSize int, sectorCount uint64, opts ...Option) *MemoryStorage {
	m := &MemoryStorage{
		sectorSize:  sectorSize,
		sectorCount: sectorCount,
		data:        make([]byte, sectorSize*int(sectorCount)),
	}
	for _, opt := range opts {
		opt(&m.latency)
	}
	return m
}

func (m *MemoryStorage) SectorSize() int     { return m.sectorSize }
func (m *MemoryStorage) SectorCount() uint64 { return m.sectorCount }

func (m *MemoryStorage) ReadSector(lba uint64, out []byte) error {
	if m.closed.Load() {
		return ErrClosed
	}
	if err := checkTransfer(m, lba, out); err != nil {
		return err
	}
	m.latency.sleep()
	offset := int(lba) * m.sectorSize
	copy(out, m.data[offset:offset+m.sectorSize])
	return nil
}

func (m *MemoryStorage) WriteSector(lba uint64, in []byte) error {
	if m.closed.Load() {
		return ErrClosed
	}
	if err := checkTransfer(m, lba, in); err != nil {
		return err
	}
	m.latency.sleep()
	offset := int(lba) * m.sectorSize
	copy(m.data[offset:offset+m.sectorSize], in)
	return nil
}

func (m *MemoryStorage) Close() error {
	m.closed.Store(true)
	m.data = nil
	return nil
}
