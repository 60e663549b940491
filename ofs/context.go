package ofs

import "github.com/google/uuid"

// Context is the in-memory snapshot of superblock-derived geometry, built
// once per mount and never changed for the lifetime of that mount.
type Context struct {
	WordSize   int
	SectorSize int
	UUID       uuid.UUID

	word wordWidth

	SBSector                sector
	InodeStartSector        sector
	InodeEndSector          sector
	InodeSectorCount        sector
	FreeStartSector         sector
	FreeEndSector           sector
	FreeSectorCount         sector
	TotalSectorCount        sector
	TotalInodeCount         inodeID
	InodePerSector          inodeID
	IDPerIndirSector        sector
	ExtraLargeStartSector   sector
	DirPerSector            uint64
	inodeSize               int
	dirEntrySize            int
	dirNameMax              int
}

// sector and inodeID are plain uint64 aliases used throughout the package
// to keep call sites self-documenting about which geometry domain a value
// belongs to; encoding a value that does not fit the mounted word width
// is a fatal invariant violation.
type sector = uint64
type inodeID = uint64

func deriveContext(w wordWidth, sectorSize int, sb *superblock) *Context {
	ctx := &Context{
		WordSize:   w.wordSize(),
		SectorSize: sectorSize,
		UUID:       sb.uuid,
		word:       w,
	}
	ctx.SBSector = SBSector
	ctx.InodeStartSector = SBSector + 1
	ctx.InodeSectorCount = sb.isize
	ctx.InodeEndSector = ctx.InodeStartSector + sb.isize
	ctx.FreeStartSector = ctx.InodeEndSector
	ctx.FreeSectorCount = sb.fsize
	ctx.FreeEndSector = ctx.FreeStartSector + sb.fsize
	ctx.TotalSectorCount = ctx.FreeStartSector + ctx.FreeSectorCount

	ctx.inodeSize = inodeSize(w)
	ctx.InodePerSector = uint64(sectorSize / ctx.inodeSize)
	ctx.TotalInodeCount = ctx.InodePerSector * ctx.InodeSectorCount

	ctx.IDPerIndirSector = uint64(sectorSize) / uint64(w.wordSize())
	ctx.ExtraLargeStartSector = ctx.IDPerIndirSector * (AddrArrayLen - 1)

	ctx.dirEntrySize = dirEntrySize(w)
	ctx.DirPerSector = uint64(sectorSize / ctx.dirEntrySize)
	ctx.dirNameMax = dirNameMax(w)

	return ctx
}

// dirNameMax returns N, the directory-entry name length for word width w:
// 14 bytes for W=2, 28 bytes for W=4.
func dirNameMax(w wordWidth) int {
	if w == width16 {
		return 14
	}
	return 28
}
