// Command ofsfuse mounts an OFS image read-only as a FUSE filesystem,
// using the on-disk metadata engine in ofs for path resolution and data
// access. It is an external collaborator, not part of the filesystem
// core, and supports only the subset of operations needed for read-only
// browsing.
package main

import (
	"flag"
	"log"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/hanwen/go-fuse/v2/fuse/nodefs"
	"github.com/hanwen/go-fuse/v2/fuse/pathfs"
	"github.com/sirupsen/logrus"

	"github.com/wzq/ofs/ofs"
	"github.com/wzq/ofs/storage"
)

type ofsFS struct {
	pathfs.FileSystem
	fs *ofs.FileSystem
}

func (f *ofsFS) resolve(name string) (*ofs.Inode, error) {
	if name == "" {
		name = "/"
	} else {
		name = "/" + name
	}
	id, err := f.fs.Resolve(name)
	if err != nil {
		return nil, err
	}
	return f.fs.LoadInode(id)
}

func (f *ofsFS) GetAttr(name string, ctx *fuse.Context) (*fuse.Attr, fuse.Status) {
	in, err := f.resolve(name)
	if err != nil {
		return nil, fuse.ENOENT
	}
	attr := &fuse.Attr{
		Size: in.Size(2),
		Mode: modeFor(in),
	}
	return attr, fuse.OK
}

func modeFor(in *ofs.Inode) uint32 {
	base := uint32(0o444)
	if in.Type() == ofs.TypeDir {
		return fuse.S_IFDIR | base | 0o111
	}
	return fuse.S_IFREG | base
}

func (f *ofsFS) OpenDir(name string, ctx *fuse.Context) ([]fuse.DirEntry, fuse.Status) {
	in, err := f.resolve(name)
	if err != nil {
		return nil, fuse.ENOENT
	}
	entries, err := f.fs.ReadDir(in)
	if err != nil {
		return nil, fuse.EIO
	}
	out := make([]fuse.DirEntry, 0, len(entries))
	for _, e := range entries {
		if e.Name == "." || e.Name == ".." {
			continue
		}
		out = append(out, fuse.DirEntry{Name: e.Name, Mode: fuse.S_IFREG})
	}
	return out, fuse.OK
}

func (f *ofsFS) Open(name string, flags uint32, ctx *fuse.Context) (nodefs.File, fuse.Status) {
	if flags&uint32(syscall.O_WRONLY|syscall.O_RDWR) != 0 {
		return nil, fuse.EROFS
	}
	in, err := f.resolve(name)
	if err != nil {
		return nil, fuse.ENOENT
	}
	return &ofsFile{File: nodefs.NewDefaultFile(), fs: f.fs, in: in}, fuse.OK
}

type ofsFile struct {
	nodefs.File
	fs *ofs.FileSystem
	in *ofs.Inode
}

func (fl *ofsFile) Read(dest []byte, off int64) (fuse.ReadResult, fuse.Status) {
	n, err := fl.fs.ReadAt(fl.in, off, dest)
	if err != nil {
		return nil, fuse.EIO
	}
	return fuse.ReadResultData(dest[:n]), fuse.OK
}

func main() {
	image := flag.String("image", "", "path to the image file")
	sectorSize := flag.Int("sector-size", 512, "sector size in bytes")
	wordSize := flag.Int("word-size", 2, "WORD_SIZE: 2 or 4")
	mountpoint := flag.String("mountpoint", "", "FUSE mount point")
	flag.Parse()

	logger := logrus.StandardLogger()
	s, err := storage.OpenFile(*image, *sectorSize, true)
	if err != nil {
		log.Fatal(err)
	}
	volume, err := ofs.Mount(s, *wordSize, ofs.Options{Log: logger})
	if err != nil {
		log.Fatal(err)
	}
	defer volume.Close()

	root := &ofsFS{FileSystem: pathfs.NewDefaultFileSystem(), fs: volume}
	nfs := pathfs.NewPathNodeFs(root, nil)
	server, _, err := nodefs.MountRoot(*mountpoint, nfs.Root(), nil)
	if err != nil {
		log.Fatalf("ofsfuse: mount failed: %v", err)
	}
	logger.WithField("mountpoint", *mountpoint).Info("ofsfuse: serving")
	server.Serve()
}
