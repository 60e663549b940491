package ofs

import (
	"encoding/binary"
	"fmt"

	"github.com/wzq/ofs/internal/fault"
)

// wordWidth is the WORD_SIZE parameter (2 or 4 bytes) that controls the
// width of sector IDs, inode IDs, and the other fields the original ties
// to word_t/halfword_t. It is fixed for the lifetime of a mounted
// filesystem.
type wordWidth int

const (
	width16 wordWidth = 2
	width32 wordWidth = 4
)

func newWordWidth(w int) (wordWidth, error) {
	switch w {
	case 2:
		return width16, nil
	case 4:
		return width32, nil
	default:
		return 0, fmt.Errorf("ofs: unsupported word size %d (must be 2 or 4)", w)
	}
}

// wordSize is the byte width of a word_t (also the byte width of
// sector_t/inode_id_t) for this mounted filesystem.
func (w wordWidth) wordSize() int { return int(w) }

// halfSize is the byte width of a halfword_t: half of wordSize, rounding
// as the original's uint8_t/uint16_t split does (1 byte for W=2, 2 bytes
// for W=4).
func (w wordWidth) halfSize() int { return int(w) / 2 }

func (w wordWidth) max() uint64 {
	switch w {
	case width16:
		return 1<<16 - 1
	default:
		return 1<<32 - 1
	}
}

func (w wordWidth) halfMax() uint64 {
	switch w {
	case width16:
		return 1<<8 - 1
	default:
		return 1<<16 - 1
	}
}

// getWord reads a word_t (or sector_t/inode_id_t) field at offset off.
func (w wordWidth) getWord(b []byte, off int) uint64 {
	switch w {
	case width16:
		return uint64(binary.LittleEndian.Uint16(b[off : off+2]))
	default:
		return uint64(binary.LittleEndian.Uint32(b[off : off+4]))
	}
}

// putWord writes a word_t field at offset off.
func (w wordWidth) putWord(b []byte, off int, v uint64) {
	fault.Check(v <= w.max(), "ofs: value %d overflows %d-byte word", v, w.wordSize())
	switch w {
	case width16:
		binary.LittleEndian.PutUint16(b[off:off+2], uint16(v))
	default:
		binary.LittleEndian.PutUint32(b[off:off+4], uint32(v))
	}
}

// getHalf reads a halfword_t field at offset off.
func (w wordWidth) getHalf(b []byte, off int) uint64 {
	switch w {
	case width16:
		return uint64(b[off])
	default:
		return uint64(binary.LittleEndian.Uint16(b[off : off+2]))
	}
}

// putHalf writes a halfword_t field at offset off.
func (w wordWidth) putHalf(b []byte, off int, v uint64) {
	fault.Check(v <= w.halfMax(), "ofs: value %d overflows %d-byte halfword", v, w.halfSize())
	switch w {
	case width16:
		b[off] = byte(v)
	default:
		binary.LittleEndian.PutUint16(b[off:off+2], uint16(v))
	}
}
