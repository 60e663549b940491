package buffer_test

import (
	"testing"

	"github.com/wzq/ofs/buffer"
	"github.com/wzq/ofs/internal/fault"
	"github.com/wzq/ofs/storage"
)

func newTestCache(t *testing.T, poolSize int, sectorCount uint64) (*storage.MemoryStorage, *buffer.Cache) {
	t.Helper()
	s := storage.NewMemory(512, sectorCount)
	c := buffer.New(s, poolSize, nil)
	return s, c
}

func TestBufferIdentity(t *testing.T) {
	_, c := newTestCache(t, buffer.DefaultSize, 64)
	h1, err := c.ReadLBA(3)
	if err != nil {
		t.Fatal(err)
	}
	h2, err := c.ReadLBA(3)
	if err != nil {
		t.Fatal(err)
	}
	c.Bytes(h1)[0] = 0x42
	if c.Bytes(h2)[0] != 0x42 {
		t.Fatal("two ReadLBA calls for the same lba did not return the same underlying buffer")
	}
}

// TestLRUEviction mirrors the C test_buffer() / §8 scenario 2: with a pool
// of 16, read-for-write lba 0..31, filling each with byte value lba; after
// the 32nd call 16 buffers are cached ({16..31}), and the sectors evicted
// along the way ({0..15}) were written back to storage on eviction.
func TestLRUEviction(t *testing.T) {
	s, c := newTestCache(t, 16, 64)
	for lba := uint64(0); lba < 32; lba++ {
		h, err := c.ReadLBAForWrite(lba)
		if err != nil {
			t.Fatalf("ReadLBAForWrite(%d): %v", lba, err)
		}
		buf := c.Bytes(h)
		for i := range buf {
			buf[i] = byte(lba)
		}
	}

	if c.InUseCount() != 16 {
		t.Fatalf("expected 16 cached buffers, got %d", c.InUseCount())
	}

	out := make([]byte, 512)
	for lba := uint64(0); lba < 16; lba++ {
		if err := s.ReadSector(lba, out); err != nil {
			t.Fatalf("ReadSector(%d): %v", lba, err)
		}
		for _, b := range out {
			if b != byte(lba) {
				t.Fatalf("lba %d: evicted data not written back correctly, got %#x want %#x", lba, b, byte(lba))
			}
		}
	}
}

// TestPinRetention mirrors §8 scenario 3: pin 5 buffers, access 50 more,
// and confirm the pinned ones are never evicted.
func TestPinRetention(t *testing.T) {
	_, c := newTestCache(t, 16, 200)
	const pinnedCount = 5
	handles := make([]*buffer.Handle, pinnedCount)
	for i := 0; i < pinnedCount; i++ {
		h, err := c.ReadLBA(uint64(i))
		if err != nil {
			t.Fatal(err)
		}
		c.Pin(h)
		handles[i] = h
	}

	if c.PinnedCount() != pinnedCount {
		t.Fatalf("expected %d pinned, got %d", pinnedCount, c.PinnedCount())
	}

	for i := 100; i < 150; i++ {
		if _, err := c.ReadLBA(uint64(i)); err != nil {
			t.Fatal(err)
		}
	}

	if c.PinnedCount() != pinnedCount {
		t.Fatalf("pinned buffers were evicted: expected %d pinned, got %d", pinnedCount, c.PinnedCount())
	}

	for _, h := range handles {
		c.Unpin(h)
	}
	if c.PinnedCount() != 0 {
		t.Fatalf("expected 0 pinned after unpin, got %d", c.PinnedCount())
	}
}

func TestFlushAllRequiresUnpinned(t *testing.T) {
	_, c := newTestCache(t, 4, 16)
	h, err := c.ReadLBA(0)
	if err != nil {
		t.Fatal(err)
	}
	c.Pin(h)
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected FlushAll to panic while a buffer is pinned")
		} else if _, ok := r.(*fault.Violation); !ok {
			t.Fatalf("expected *fault.Violation, got %T", r)
		}
	}()
	_ = c.FlushAll()
}

func TestUnpinUnpinnedIsFatal(t *testing.T) {
	_, c := newTestCache(t, 4, 16)
	h, err := c.ReadLBA(0)
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected Unpin on an unpinned buffer to panic")
		}
	}()
	c.Unpin(h)
}

func TestAllPinnedEvictionFatal(t *testing.T) {
	_, c := newTestCache(t, 4, 16)
	for i := uint64(0); i < 4; i++ {
		h, err := c.ReadLBA(i)
		if err != nil {
			t.Fatal(err)
		}
		c.Pin(h)
	}
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected eviction to panic when all buffers are pinned")
		}
	}()
	_, _ = c.ReadLBA(4)
}

func TestWriteLBADoesNotRead(t *testing.T) {
	s, c := newTestCache(t, 4, 4)
	sentinel := []byte{0xAA, 0xBB}
	_ = s.WriteSector(0, append(sentinel, make([]byte, 510)...))

	h, err := c.WriteLBA(0)
	if err != nil {
		t.Fatal(err)
	}
	if !c.IsDirty(h) {
		t.Fatal("WriteLBA should mark the buffer dirty")
	}
	buf := c.Bytes(h)
	if buf[0] == sentinel[0] && buf[1] == sentinel[1] {
		t.Fatal("WriteLBA read the sector from storage")
	}
	for i := range buf {
		buf[i] = 0xFF
	}
	if err := c.Flush(h); err != nil {
		t.Fatal(err)
	}
	out := make([]byte, 512)
	if err := s.ReadSector(0, out); err != nil {
		t.Fatal(err)
	}
	if out[0] != 0xFF {
		t.Fatalf("flush did not write back blind-write buffer, got %#x", out[0])
	}
}

// TestBufferTransparency mirrors §8: write_lba; fill with p; flush_all;
// read p back directly via Storage.
func TestBufferTransparency(t *testing.T) {
	s, c := newTestCache(t, 4, 4)
	h, err := c.WriteLBA(1)
	if err != nil {
		t.Fatal(err)
	}
	buf := c.Bytes(h)
	for i := range buf {
		buf[i] = byte(0x77)
	}
	if err := c.FlushAll(); err != nil {
		t.Fatal(err)
	}
	out := make([]byte, 512)
	if err := s.ReadSector(1, out); err != nil {
		t.Fatal(err)
	}
	for _, b := range out {
		if b != 0x77 {
			t.Fatalf("got %#x want 0x77", b)
		}
	}
}
