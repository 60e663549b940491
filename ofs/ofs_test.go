package ofs_test

import (
	"testing"

	"github.com/wzq/ofs/internal/bitmap"
	"github.com/wzq/ofs/ofs"
	"github.com/wzq/ofs/storage"
)

func formatSmall(t *testing.T) *ofs.FileSystem {
	t.Helper()
	s := storage.NewMemory(512, 512)
	fs, err := ofs.Format(s, ofs.FormatOptions{WordSize: 2, InodeSectorCount: 16})
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	return fs
}

func TestFormatMountRoundTrip(t *testing.T) {
	s := storage.NewMemory(512, 512)
	fs1, err := ofs.Format(s, ofs.FormatOptions{WordSize: 2, InodeSectorCount: 16})
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	if err := fs1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	fs2, err := ofs.Mount(s, 2, ofs.Options{})
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	root, err := fs2.LoadInode(ofs.RootInode)
	if err != nil {
		t.Fatalf("LoadInode(root): %v", err)
	}
	if root.Type() != ofs.TypeDir {
		t.Fatalf("root type = %v, want TypeDir", root.Type())
	}
	entries, err := fs2.ReadDir(root)
	if err != nil {
		t.Fatalf("ReadDir(root): %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("root entries = %d, want 2 (. and ..)", len(entries))
	}
	names := map[string]bool{}
	for _, e := range entries {
		names[e.Name] = true
		if e.Inode != ofs.RootInode {
			t.Fatalf("entry %q points at inode %d, want root", e.Name, e.Inode)
		}
	}
	if !names["."] || !names[".."] {
		t.Fatalf("root entries = %v, want . and ..", names)
	}
}

func TestCreateAndReadWrite(t *testing.T) {
	fs := formatSmall(t)
	child, err := fs.Create(ofs.RootInode, "hello.txt")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	data := []byte("hello, ofs")
	if _, err := fs.WriteAt(child, 0, data); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}

	got := make([]byte, len(data))
	in, err := fs.LoadInode(child.ID)
	if err != nil {
		t.Fatalf("LoadInode: %v", err)
	}
	n, err := fs.ReadAt(in, 0, got)
	if err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if n != len(data) || string(got) != string(data) {
		t.Fatalf("ReadAt = %q, want %q", got[:n], data)
	}

	id, ok, err := fs.Lookup(mustLoadRoot(t, fs), "hello.txt")
	if err != nil || !ok {
		t.Fatalf("Lookup(hello.txt) = %v, %v, %v", id, ok, err)
	}
	if id != child.ID {
		t.Fatalf("Lookup returned inode %d, want %d", id, child.ID)
	}
}

func mustLoadRoot(t *testing.T, fs *ofs.FileSystem) *ofs.Inode {
	t.Helper()
	in, err := fs.LoadInode(ofs.RootInode)
	if err != nil {
		t.Fatalf("LoadInode(root): %v", err)
	}
	return in
}

func TestHoleReadsAsZero(t *testing.T) {
	fs := formatSmall(t)
	child, err := fs.Create(ofs.RootInode, "sparse")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	// Write only at a high offset, leaving earlier blocks as holes.
	if _, err := fs.WriteAt(child, 3*512, []byte("tail")); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	in, err := fs.LoadInode(child.ID)
	if err != nil {
		t.Fatalf("LoadInode: %v", err)
	}
	buf := make([]byte, 512)
	if _, err := fs.ReadAt(in, 0, buf); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	for i, b := range buf {
		if b != 0 {
			t.Fatalf("hole byte %d = %#x, want 0", i, b)
		}
	}
	s, err := fs.GetFileSector(in, 0)
	if err != nil {
		t.Fatalf("GetFileSector: %v", err)
	}
	if s != ofs.InvalidSector {
		t.Fatalf("GetFileSector(block 0) = %d, want InvalidSector (hole)", s)
	}
}

// TestDataSectorNotZeroedOnAlloc matches spec.md §9's explicit contract
// (mirroring original_source/src/util/ofs.c's fs_addr_read_or_alloc,
// whose blind zero-fill loop only runs for FS_INDIR_SECTOR): a freshly
// allocated data sector is handed to the caller untouched, carrying
// whatever stale bytes were left from its previous tenant, rather than
// being zeroed the way an indirect block is.
func TestDataSectorNotZeroedOnAlloc(t *testing.T) {
	s := storage.NewMemory(512, 512)
	fs, err := ofs.Format(s, ofs.FormatOptions{WordSize: 2, InodeSectorCount: 16})
	if err != nil {
		t.Fatalf("Format: %v", err)
	}

	dirty, err := fs.Create(ofs.RootInode, "dirty")
	if err != nil {
		t.Fatalf("Create(dirty): %v", err)
	}
	pattern := make([]byte, 512)
	for i := range pattern {
		pattern[i] = 0xCD
	}
	if _, err := fs.WriteAt(dirty, 0, pattern); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	in, err := fs.LoadInode(dirty.ID)
	if err != nil {
		t.Fatalf("LoadInode: %v", err)
	}
	sec, err := fs.GetFileSector(in, 0)
	if err != nil {
		t.Fatalf("GetFileSector: %v", err)
	}
	if sec == ofs.InvalidSector {
		t.Fatal("expected an allocated sector")
	}
	if err := fs.FreeSector(sec); err != nil {
		t.Fatalf("FreeSector: %v", err)
	}

	reused, err := fs.Create(ofs.RootInode, "reused")
	if err != nil {
		t.Fatalf("Create(reused): %v", err)
	}
	if _, err := fs.WriteAt(reused, 0, []byte("abcd")); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	in2, err := fs.LoadInode(reused.ID)
	if err != nil {
		t.Fatalf("LoadInode: %v", err)
	}
	sec2, err := fs.GetFileSector(in2, 0)
	if err != nil {
		t.Fatalf("GetFileSector: %v", err)
	}
	if sec2 != sec {
		t.Fatalf("expected freed sector %d to be reused immediately (LIFO free list), got %d", sec, sec2)
	}

	// The cache is write-back; flush it so the raw storage read sees it.
	if err := fs.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	raw := make([]byte, 512)
	if err := s.ReadSector(sec2, raw); err != nil {
		t.Fatalf("ReadSector: %v", err)
	}
	if string(raw[:4]) != "abcd" {
		t.Fatalf("overwritten prefix = %q, want %q", raw[:4], "abcd")
	}
	for i := 4; i < len(raw); i++ {
		if raw[i] != 0xCD {
			t.Fatalf("byte %d = %#x, want stale 0xcd (data sectors must not be zeroed on allocation)", i, raw[i])
		}
	}
}

func TestLargeFileConversion(t *testing.T) {
	s := storage.NewMemory(512, 4096)
	fs, err := ofs.Format(s, ofs.FormatOptions{WordSize: 2, InodeSectorCount: 32})
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	child, err := fs.Create(ofs.RootInode, "big")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	// AddrArrayLen direct blocks fit without conversion; one more forces
	// the small-to-large transition.
	buf := make([]byte, 512)
	for blk := 0; blk < ofs.AddrArrayLen+2; blk++ {
		for i := range buf {
			buf[i] = byte(blk)
		}
		if _, err := fs.WriteAt(child, int64(blk)*512, buf); err != nil {
			t.Fatalf("WriteAt block %d: %v", blk, err)
		}
	}
	in, err := fs.LoadInode(child.ID)
	if err != nil {
		t.Fatalf("LoadInode: %v", err)
	}
	if !in.Large() {
		t.Fatal("expected file to have converted to large")
	}
	for blk := 0; blk < ofs.AddrArrayLen+2; blk++ {
		sec, err := fs.GetFileSector(in, uint64(blk))
		if err != nil {
			t.Fatalf("GetFileSector(%d): %v", blk, err)
		}
		if sec == ofs.InvalidSector {
			t.Fatalf("block %d unexpectedly a hole after write", blk)
		}
		got := make([]byte, 512)
		if _, err := fs.ReadAt(in, int64(blk)*512, got); err != nil {
			t.Fatalf("ReadAt block %d: %v", blk, err)
		}
		for i, b := range got {
			if b != byte(blk) {
				t.Fatalf("block %d byte %d = %#x, want %#x", blk, i, b, byte(blk))
			}
		}
	}
}

func TestSectorAllocBijection(t *testing.T) {
	fs := formatSmall(t)
	seen := bitmap.New(512)
	var allocated []uint64
	for {
		s, errno := fs.AllocSector()
		if errno == ofs.ErrNoSpace {
			break
		}
		if errno != ofs.Success {
			t.Fatalf("AllocSector: %v", errno)
		}
		if err := seen.Mark(s); err != nil {
			t.Fatalf("AllocSector returned a sector twice: %v", err)
		}
		allocated = append(allocated, s)
	}
	if len(allocated) == 0 {
		t.Fatal("expected at least one sector to be allocated")
	}
	for _, s := range allocated {
		if err := fs.FreeSector(s); err != nil {
			t.Fatalf("FreeSector(%d): %v", s, err)
		}
		if err := seen.Unmark(s); err != nil {
			t.Fatalf("Unmark(%d): %v", s, err)
		}
	}
	for range allocated {
		s, errno := fs.AllocSector()
		if errno != ofs.Success {
			t.Fatalf("re-alloc: %v", errno)
		}
		if err := seen.Mark(s); err != nil {
			t.Fatalf("sector %d re-allocated twice: %v", s, err)
		}
	}
	if seen.Count() != len(allocated) {
		t.Fatalf("marked count = %d, want %d", seen.Count(), len(allocated))
	}
}

func TestInodeAllocBijection(t *testing.T) {
	fs := formatSmall(t)
	// Root already consumed inode 0.
	seen := map[uint64]bool{0: true}
	var allocated []*ofs.Inode
	for i := 0; i < 5; i++ {
		in, errno, err := fs.AllocInode()
		if err != nil {
			t.Fatalf("AllocInode: %v", err)
		}
		if errno != ofs.Success {
			t.Fatalf("AllocInode errno: %v", errno)
		}
		if seen[in.ID] {
			t.Fatalf("inode %d allocated twice", in.ID)
		}
		seen[in.ID] = true
		allocated = append(allocated, in)
	}
	for _, in := range allocated {
		if err := fs.FreeInode(in.ID); err != nil {
			t.Fatalf("FreeInode(%d): %v", in.ID, err)
		}
	}
}

func TestNameValidation(t *testing.T) {
	fs := formatSmall(t)
	cases := []struct {
		name string
		want error
	}{
		{"ok_name-1.txt", nil},
		{"...", ofs.ErrIllegalName},
		{"   ", ofs.ErrIllegalName},
		{"bad/slash", ofs.ErrIllegalChar},
		{"", ofs.ErrNameTooLong},
	}
	for _, c := range cases {
		_, err := fs.Create(ofs.RootInode, c.name)
		if c.want == nil {
			if err != nil {
				t.Errorf("Create(%q): unexpected error %v", c.name, err)
			}
			continue
		}
		if err == nil || err.Error() != c.want.Error() {
			t.Errorf("Create(%q) = %v, want %v", c.name, err, c.want)
		}
	}
}

func TestDirectoryReuseFreedSlot(t *testing.T) {
	fs := formatSmall(t)
	root := mustLoadRoot(t, fs)
	if _, err := fs.Create(ofs.RootInode, "a"); err != nil {
		t.Fatalf("Create(a): %v", err)
	}
	root = mustLoadRoot(t, fs)
	if ok, err := fs.Remove(root, "a"); err != nil || !ok {
		t.Fatalf("Remove(a) = %v, %v", ok, err)
	}
	before, err := fs.ReadDir(root)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if _, err := fs.Create(ofs.RootInode, "b"); err != nil {
		t.Fatalf("Create(b): %v", err)
	}
	root = mustLoadRoot(t, fs)
	after, err := fs.ReadDir(root)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(after) != len(before)+1 {
		t.Fatalf("entries after reuse = %d, want %d", len(after), len(before)+1)
	}
}

func TestInodeSizeSplitRoundTrip(t *testing.T) {
	in := &ofs.Inode{}
	for _, sz := range []uint64{0, 1, 65535, 65536, 1 << 20} {
		in.SetSize(2, sz)
		if got := in.Size(2); got != sz {
			t.Errorf("W=2: SetSize(%d) -> Size() = %d", sz, got)
		}
	}
}
