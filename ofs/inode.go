package ofs

// Inode flag bit positions, scaled to the mounted word width. The
// reference bit positions below are for W=2 (a 16-bit flags word); for
// W=4 the same relative layout is scaled into the low 16 bits of the
// 32-bit flags word, since the original only ever defines these masks
// against a word_t without widening them for WORD_SIZE==4.
const (
	flagInUse   = 0x8000
	flagTypeMsk = 0x6000
	flagLarge   = 0x1000
	flagSetUID  = 0x0800
	flagSetGID  = 0x0400

	permOwnerRead  = 0x0100
	permOwnerWrite = 0x0080
	permOwnerExec  = 0x0040
	permGroupRead  = 0x0020
	permGroupWrite = 0x0010
	permGroupExec  = 0x0008
	permOtherRead  = 0x0004
	permOtherWrite = 0x0002
	permOtherExec  = 0x0001

	typeShift = 13
)

// Inode is the persistent file descriptor: type, permission bits, link
// count, size, and the block map (addr array).
type Inode struct {
	ID      inodeID
	flags   uint64
	NLinks  uint64
	UID     uint64
	GID     uint64
	size0   uint64
	size1   uint64
	Addr    [AddrArrayLen]sector
	ActimeHi, ActimeLo   uint64
	ModtimeHi, ModtimeLo uint64
}

func inodeSize(w wordWidth) int {
	ws, hs := w.wordSize(), w.halfSize()
	// flags(word) + nlinks/uid/gid/size0(4 halfwords) + size1(word) +
	// addr[A](A words) + actime[2](2 words) + modtime[2](2 words)
	return ws + 4*hs + ws + AddrArrayLen*ws + 2*ws + 2*ws
}

func inodeOffsets(w wordWidth) (flags, nlinks, uid, gid, size0, size1, addr, actime, modtime int) {
	ws, hs := w.wordSize(), w.halfSize()
	flags = 0
	nlinks = flags + ws
	uid = nlinks + hs
	gid = uid + hs
	size0 = gid + hs
	size1 = size0 + hs
	addr = size1 + ws
	actime = addr + AddrArrayLen*ws
	modtime = actime + 2*ws
	return
}

func (in *Inode) encode(w wordWidth, id inodeID) []byte {
	b := make([]byte, inodeSize(w))
	flagsOff, nlinksOff, uidOff, gidOff, size0Off, size1Off, addrOff, actimeOff, modtimeOff := inodeOffsets(w)
	w.putWord(b, flagsOff, in.flags)
	w.putHalf(b, nlinksOff, in.NLinks)
	w.putHalf(b, uidOff, in.UID)
	w.putHalf(b, gidOff, in.GID)
	w.putHalf(b, size0Off, in.size0)
	w.putWord(b, size1Off, in.size1)
	for i, a := range in.Addr {
		w.putWord(b, addrOff+i*w.wordSize(), a)
	}
	w.putWord(b, actimeOff, in.ActimeHi)
	w.putWord(b, actimeOff+w.wordSize(), in.ActimeLo)
	w.putWord(b, modtimeOff, in.ModtimeHi)
	w.putWord(b, modtimeOff+w.wordSize(), in.ModtimeLo)
	_ = id
	return b
}

func decodeInode(w wordWidth, id inodeID, b []byte) *Inode {
	flagsOff, nlinksOff, uidOff, gidOff, size0Off, size1Off, addrOff, actimeOff, modtimeOff := inodeOffsets(w)
	in := &Inode{ID: id}
	in.flags = w.getWord(b, flagsOff)
	in.NLinks = w.getHalf(b, nlinksOff)
	in.UID = w.getHalf(b, uidOff)
	in.GID = w.getHalf(b, gidOff)
	in.size0 = w.getHalf(b, size0Off)
	in.size1 = w.getWord(b, size1Off)
	for i := range in.Addr {
		in.Addr[i] = w.getWord(b, addrOff+i*w.wordSize())
	}
	in.ActimeHi = w.getWord(b, actimeOff)
	in.ActimeLo = w.getWord(b, actimeOff+w.wordSize())
	in.ModtimeHi = w.getWord(b, modtimeOff)
	in.ModtimeLo = w.getWord(b, modtimeOff+w.wordSize())
	return in
}

// ResetAddr sets every addr slot to InvalidSector. Needed at allocation
// time because the zero word coincides with InvalidSector only by
// construction (InvalidSector == 0); this makes that explicit and keeps
// working even if a future sentinel choice changes that coincidence.
func (in *Inode) ResetAddr() {
	for i := range in.Addr {
		in.Addr[i] = InvalidSector
	}
}

// InUse reports whether the inode's in-use flag is set.
func (in *Inode) InUse() bool { return in.flags&flagInUse != 0 }

// SetInUse sets or clears the in-use flag.
func (in *Inode) SetInUse(v bool) {
	if v {
		in.flags |= flagInUse
	} else {
		in.flags &^= flagInUse
	}
}

// Type returns the inode's file type.
func (in *Inode) Type() FileType {
	return FileType((in.flags & flagTypeMsk) >> typeShift)
}

// SetType sets the inode's file type.
func (in *Inode) SetType(t FileType) {
	in.flags &^= flagTypeMsk
	in.flags |= uint64(t) << typeShift
}

// Large reports whether the large-file bit is set.
func (in *Inode) Large() bool { return in.flags&flagLarge != 0 }

// SetLarge sets the large-file bit.
func (in *Inode) SetLarge() { in.flags |= flagLarge }

// ExtraLarge reports whether the file is large AND has a valid sector in
// the last addr slot (used as a first-level indirection for extra-large
// files).
func (in *Inode) ExtraLarge() bool {
	return in.Large() && in.Addr[AddrArrayLen-1] != InvalidSector
}

// Size returns the file size reconstructed from the size0/size1 split:
// (size0 << bits(W)) | size1, where bits(W) is the bit width of a word_t
// for the mounted word size.
func (in *Inode) Size(w wordWidth) uint64 {
	return (in.size0 << (8 * uint(w.wordSize()))) | in.size1
}

// SetSize installs sz into the size0/size1 split for word width w.
func (in *Inode) SetSize(w wordWidth, sz uint64) {
	in.size1 = sz & w.max()
	in.size0 = (sz >> (8 * uint(w.wordSize()))) & w.halfMax()
}

// SetUID / SetGID bits (distinct from owner UID/GID fields).
func (in *Inode) SetUIDBit() bool   { return in.flags&flagSetUID != 0 }
func (in *Inode) SetGIDBit() bool   { return in.flags&flagSetGID != 0 }
func (in *Inode) SetSetUIDBit(v bool) {
	if v {
		in.flags |= flagSetUID
	} else {
		in.flags &^= flagSetUID
	}
}
func (in *Inode) SetSetGIDBit(v bool) {
	if v {
		in.flags |= flagSetGID
	} else {
		in.flags &^= flagSetGID
	}
}

// Perm is the owner/group/other rwx permission bits packed in the low 9
// bits of the flags word.
type Perm struct {
	OwnerRead, OwnerWrite, OwnerExec bool
	GroupRead, GroupWrite, GroupExec bool
	OtherRead, OtherWrite, OtherExec bool
}

func (in *Inode) Perm() Perm {
	return Perm{
		OwnerRead:  in.flags&permOwnerRead != 0,
		OwnerWrite: in.flags&permOwnerWrite != 0,
		OwnerExec:  in.flags&permOwnerExec != 0,
		GroupRead:  in.flags&permGroupRead != 0,
		GroupWrite: in.flags&permGroupWrite != 0,
		GroupExec:  in.flags&permGroupExec != 0,
		OtherRead:  in.flags&permOtherRead != 0,
		OtherWrite: in.flags&permOtherWrite != 0,
		OtherExec:  in.flags&permOtherExec != 0,
	}
}

func (in *Inode) SetPerm(p Perm) {
	const mask = permOwnerRead | permOwnerWrite | permOwnerExec |
		permGroupRead | permGroupWrite | permGroupExec |
		permOtherRead | permOtherWrite | permOtherExec
	in.flags &^= mask
	set := func(cond bool, bit uint64) {
		if cond {
			in.flags |= bit
		}
	}
	set(p.OwnerRead, permOwnerRead)
	set(p.OwnerWrite, permOwnerWrite)
	set(p.OwnerExec, permOwnerExec)
	set(p.GroupRead, permGroupRead)
	set(p.GroupWrite, permGroupWrite)
	set(p.GroupExec, permGroupExec)
	set(p.OtherRead, permOtherRead)
	set(p.OtherWrite, permOtherWrite)
	set(p.OtherExec, permOtherExec)
}
