package ofs

import (
	"testing"

	"github.com/go-test/deep"
	"github.com/google/uuid"
)

func TestSuperblockEncodeDecodeRoundTrip(t *testing.T) {
	for _, w := range []wordWidth{width16, width32} {
		sb := &superblock{
			isize: 12,
			fsize: 900,
			ninode: 3,
			flock: 0,
			ilock: 0,
			fmod:  1,
			time:  [2]uint64{1000, 2000},
			uuid:  uuid.New(),
		}
		sb.freeArr.nfree = 2
		sb.freeArr.free[0] = 10
		sb.freeArr.free[1] = 11
		sb.inode[0] = 5
		sb.inode[1] = 6
		sb.inode[2] = 7

		sectorSize := 512
		if w == width32 {
			sectorSize = 4096
		}
		b := sb.encode(w, sectorSize)
		got, err := decodeSuperblock(w, b)
		if err != nil {
			t.Fatalf("w=%d: decodeSuperblock: %v", w, err)
		}
		if diff := deep.Equal(sb, got); diff != nil {
			t.Fatalf("w=%d: round trip mismatch: %v", w, diff)
		}
	}
}

func TestInodeEncodeDecodeRoundTrip(t *testing.T) {
	for _, w := range []wordWidth{width16, width32} {
		in := &Inode{ID: 3}
		in.SetInUse(true)
		in.SetType(TypeDir)
		in.NLinks = 2
		in.UID = 1
		in.GID = 1
		for i := range in.Addr {
			in.Addr[i] = sector(i + 1)
		}
		in.SetSize(w, 1<<20)
		in.ActimeHi, in.ActimeLo = 1, 2
		in.ModtimeHi, in.ModtimeLo = 3, 4

		b := in.encode(w, in.ID)
		got := decodeInode(w, in.ID, b)
		if diff := deep.Equal(in, got); diff != nil {
			t.Fatalf("w=%d: round trip mismatch: %v", w, diff)
		}
	}
}
