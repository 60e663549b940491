package ofs

// AllocInode finds a free inode, marks it in-use on disk, and returns
// its freshly loaded (zeroed-state) form. The superblock caches a hint
// array of recently-seen free inode IDs (ninode/inode[]); when that
// hint cache runs dry, it is replenished by a linear scan of the inode
// region, matching the original's ialloc algorithm.
func (fs *FileSystem) AllocInode() (*Inode, Errno, error) {
	for {
		if fs.sb.ninode == 0 {
			if err := fs.replenishInodeHints(); err != nil {
				return nil, Success, err
			}
			if fs.sb.ninode == 0 {
				return nil, ErrNoInode, nil
			}
		}
		fs.sb.ninode--
		id := fs.sb.inode[fs.sb.ninode]
		in, err := fs.LoadInode(id)
		if err != nil {
			return nil, Success, err
		}
		if in.InUse() {
			// Stale hint: another allocation already consumed it since
			// the hint array was filled. Try the next one.
			continue
		}
		*in = Inode{ID: id}
		in.SetInUse(true)
		in.ResetAddr()
		fs.dirtySB = true
		if err := fs.StoreInode(in); err != nil {
			return nil, Success, err
		}
		return in, Success, nil
	}
}

// replenishInodeHints scans the inode region from the start, collecting
// up to FreeArrayMax free inode IDs into the superblock's hint array. The
// array is stored highest ID first, so AllocInode (which pops from the
// end) hands out the lowest free ID first.
func (fs *FileSystem) replenishInodeHints() error {
	fs.sb.ninode = 0
	for id := inodeID(0); id < fs.ctx.TotalInodeCount && fs.sb.ninode < FreeArrayMax; id++ {
		in, err := fs.LoadInode(id)
		if err != nil {
			return err
		}
		if !in.InUse() {
			fs.sb.inode[fs.sb.ninode] = id
			fs.sb.ninode++
		}
	}
	for i, j := 0, int(fs.sb.ninode)-1; i < j; i, j = i+1, j-1 {
		fs.sb.inode[i], fs.sb.inode[j] = fs.sb.inode[j], fs.sb.inode[i]
	}
	return nil
}

// FreeInode clears the in-use bit of inode id and, if the superblock's
// hint array has room, pushes id back into the cache so the next
// AllocInode can find it without a rescan.
func (fs *FileSystem) FreeInode(id inodeID) error {
	in, err := fs.LoadInode(id)
	if err != nil {
		return err
	}
	*in = Inode{ID: id}
	in.ResetAddr()
	if err := fs.StoreInode(in); err != nil {
		return err
	}
	if fs.sb.ninode < FreeArrayMax {
		fs.sb.inode[fs.sb.ninode] = id
		fs.sb.ninode++
	}
	fs.dirtySB = true
	return nil
}
