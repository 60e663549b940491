package ofs

import (
	"fmt"

	"github.com/google/uuid"
)

// freeArray is the LIFO free-sector structure chained through the
// superblock and through free-list nodes stored in otherwise-free data
// sectors: nfree counts the occupied entries free[0..nfree-1], free[0] is
// the chain pointer to the next free-list sector (InvalidSector at the end
// of the chain), and free[1..nfree-1] are currently cached free sector IDs.
type freeArray struct {
	nfree uint64
	free  [FreeArrayMax]uint64
}

func (w wordWidth) freeArraySize() int {
	return w.wordSize() * (1 + FreeArrayMax)
}

func (fa *freeArray) encode(w wordWidth, b []byte) {
	w.putWord(b, 0, fa.nfree)
	for i, v := range fa.free {
		w.putWord(b, w.wordSize()*(1+i), v)
	}
}

func (fa *freeArray) decode(w wordWidth, b []byte) {
	fa.nfree = w.getWord(b, 0)
	for i := range fa.free {
		fa.free[i] = w.getWord(b, w.wordSize()*(1+i))
	}
}

// superblock is the persistent root structure of the filesystem, stored at
// the fixed sector SBSector.
type superblock struct {
	isize     uint64 // count of inode sectors
	fsize     uint64 // count of free (data) sectors
	freeArr   freeArray
	ninode    uint64
	inode     [FreeArrayMax]uint64
	flock     uint64
	ilock     uint64
	fmod      uint64
	time      [2]uint64
	uuid      uuid.UUID // additive: not present in the original layout
}

func (w wordWidth) superblockOffsets() (isize, fsize, freeArr, ninode, inodeArr, flock, ilock, fmod, timeOff, uuidOff int) {
	ws, hs := w.wordSize(), w.halfSize()
	isize = sigSize
	fsize = isize + ws
	freeArr = fsize + ws
	ninode = freeArr + w.freeArraySize()
	inodeArr = ninode + ws
	flock = inodeArr + ws*FreeArrayMax
	ilock = flock + hs
	fmod = ilock + hs
	timeOff = fmod + hs
	uuidOff = timeOff + ws*2
	return
}

func (w wordWidth) superblockSize() int {
	_, _, _, _, _, _, _, _, _, uuidOff := w.superblockOffsets()
	return uuidOff + 16
}

func (sb *superblock) encode(w wordWidth, sectorSize int) []byte {
	b := make([]byte, sectorSize)
	isizeOff, fsizeOff, freeArrOff, ninodeOff, inodeArrOff, flockOff, ilockOff, fmodOff, timeOff, uuidOff := w.superblockOffsets()
	copy(b[:sigSize], Signature[:])
	w.putWord(b, isizeOff, sb.isize)
	w.putWord(b, fsizeOff, sb.fsize)
	sb.freeArr.encode(w, b[freeArrOff:])
	w.putWord(b, ninodeOff, sb.ninode)
	for i, v := range sb.inode {
		w.putWord(b, inodeArrOff+i*w.wordSize(), v)
	}
	w.putHalf(b, flockOff, sb.flock)
	w.putHalf(b, ilockOff, sb.ilock)
	w.putHalf(b, fmodOff, sb.fmod)
	w.putWord(b, timeOff, sb.time[0])
	w.putWord(b, timeOff+w.wordSize(), sb.time[1])
	copy(b[uuidOff:uuidOff+16], sb.uuid[:])
	return b
}

func decodeSuperblock(w wordWidth, b []byte) (*superblock, error) {
	if len(b) < w.superblockSize() {
		return nil, fmt.Errorf("ofs: superblock buffer too small: %d < %d", len(b), w.superblockSize())
	}
	if string(b[:sigSize]) != string(Signature[:]) {
		return nil, fmt.Errorf("ofs: bad superblock signature %q", b[:sigSize])
	}
	isizeOff, fsizeOff, freeArrOff, ninodeOff, inodeArrOff, flockOff, ilockOff, fmodOff, timeOff, uuidOff := w.superblockOffsets()
	sb := &superblock{}
	sb.isize = w.getWord(b, isizeOff)
	sb.fsize = w.getWord(b, fsizeOff)
	sb.freeArr.decode(w, b[freeArrOff:])
	sb.ninode = w.getWord(b, ninodeOff)
	for i := range sb.inode {
		sb.inode[i] = w.getWord(b, inodeArrOff+i*w.wordSize())
	}
	sb.flock = w.getHalf(b, flockOff)
	sb.ilock = w.getHalf(b, ilockOff)
	sb.fmod = w.getHalf(b, fmodOff)
	sb.time[0] = w.getWord(b, timeOff)
	sb.time[1] = w.getWord(b, timeOff+w.wordSize())
	copy(sb.uuid[:], b[uuidOff:uuidOff+16])
	return sb, nil
}
