package storage_test

import (
	"testing"

	"github.com/wzq/ofs/storage"
)

// TestMemoryRoundTrip mirrors the C test_lba_rw() scenario: write every
// sector with a distinct byte pattern, then read every sector back and
// verify the pattern round-trips exactly.
func TestMemoryRoundTrip(t *testing.T) {
	const sectorSize = 512
	const sectorCount = 2880

	s := storage.NewMemory(sectorSize, sectorCount)
	buf := make([]byte, sectorSize)
	for i := uint64(0); i < sectorCount; i++ {
		for j := range buf {
			buf[j] = byte(i)
		}
		if err := s.WriteSector(i, buf); err != nil {
			t.Fatalf("WriteSector(%d): %v", i, err)
		}
	}

	out := make([]byte, sectorSize)
	for i := uint64(0); i < sectorCount; i++ {
		if err := s.ReadSector(i, out); err != nil {
			t.Fatalf("ReadSector(%d): %v", i, err)
		}
		for j, b := range out {
			if b != byte(i) {
				t.Fatalf("sector %d byte %d = %#x, want %#x", i, j, b, byte(i))
			}
		}
	}
}

func TestMemoryOutOfRange(t *testing.T) {
	s := storage.NewMemory(512, 10)
	buf := make([]byte, 512)
	if err := s.ReadSector(10, buf); err == nil {
		t.Fatal("expected error reading out-of-range lba 10")
	}
	if err := s.WriteSector(9999, buf); err == nil {
		t.Fatal("expected error writing out-of-range lba")
	}
}

func TestMemoryShortTransfer(t *testing.T) {
	s := storage.NewMemory(512, 10)
	if err := s.ReadSector(0, make([]byte, 10)); err == nil {
		t.Fatal("expected error for short buffer")
	}
}

func TestMemoryClosed(t *testing.T) {
	s := storage.NewMemory(512, 10)
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.ReadSector(0, make([]byte, 512)); err == nil {
		t.Fatal("expected error reading from closed storage")
	}
}
