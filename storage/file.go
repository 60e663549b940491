package storage

import (
	"fmt"
	"os"
	"sync"
	"time"

	times "gopkg.in/djherbis/times.v1"
)

// FileStorage is a Storage implementation backed by a host file, mapped
// contiguously as the disk image. It mirrors the file-backed variant named
// in the storage component design.
type FileStorage struct {
	mu          sync.Mutex
	f           *os.File
	path        string
	sectorSize  int
	sectorCount uint64
	readOnly    bool
	latency     latencySim
	locked      bool
}

// OpenFile opens an existing host file as a disk image. The sector count
// is the file size divided by sectorSize; a trailing partial sector is
// not addressable.
func OpenFile(path string, sectorSize int, readOnly bool, opts ...Option) (*FileStorage, error) {
	flag := os.O_RDONLY
	if !readOnly {
		flag = os.O_RDWR
	}
	f, err := os.OpenFile(path, flag, 0o600)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("storage: stat %s: %w", path, err)
	}
	fs := &FileStorage{
		f:           f,
		path:        path,
		sectorSize:  sectorSize,
		sectorCount: uint64(info.Size()) / uint64(sectorSize),
		readOnly:    readOnly,
	}
	for _, opt := range opts {
		opt(&fs.latency)
	}
	if !readOnly {
		if err := fs.lock(); err != nil {
			f.Close()
			return nil, err
		}
	}
	return fs, nil
}

// CreateFile creates a new host file of exactly sectorSize*sectorCount bytes
// to use as a disk image. The file must not already exist.
func CreateFile(path string, sectorSize int, sectorCount uint64, opts ...Option) (*FileStorage, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o666)
	if err != nil {
		return nil, fmt.Errorf("storage: create %s: %w", path, err)
	}
	size := int64(sectorSize) * int64(sectorCount)
	if err := f.Truncate(size); err != nil {
		f.Close()
		return nil, fmt.Errorf("storage: truncate %s to %d: %w", path, size, err)
	}
	fs := &FileStorage{
		f:           f,
		path:        path,
		sectorSize:  sectorSize,
		sectorCount: sectorCount,
	}
	for _, opt := range opts {
		opt(&fs.latency)
	}
	if err := fs.lock(); err != nil {
		f.Close()
		return nil, err
	}
	return fs, nil
}

func (fs *FileStorage) SectorSize() int     { return fs.sectorSize }
func (fs *FileStorage) SectorCount() uint64 { return fs.sectorCount }

func (fs *FileStorage) ReadSector(lba uint64, out []byte) error {
	if err := checkTransfer(fs, lba, out); err != nil {
		return err
	}
	fs.latency.sleep()
	fs.mu.Lock()
	defer fs.mu.Unlock()
	_, err := fs.f.ReadAt(out, int64(lba)*int64(fs.sectorSize))
	if err != nil {
		return fmt.Errorf("storage: read lba %d: %w", lba, err)
	}
	return nil
}

func (fs *FileStorage) WriteSector(lba uint64, in []byte) error {
	if fs.readOnly {
		return fmt.Errorf("storage: write to read-only file %s", fs.path)
	}
	if err := checkTransfer(fs, lba, in); err != nil {
		return err
	}
	fs.latency.sleep()
	fs.mu.Lock()
	defer fs.mu.Unlock()
	_, err := fs.f.WriteAt(in, int64(lba)*int64(fs.sectorSize))
	if err != nil {
		return fmt.Errorf("storage: write lba %d: %w", lba, err)
	}
	return nil
}

// HostTimes reports the backing file's access/modify/creation time, where
// the host platform exposes them.
func (fs *FileStorage) HostTimes() (access, modify, create time.Time, err error) {
	t, err := times.Stat(fs.path)
	if err != nil {
		return time.Time{}, time.Time{}, time.Time{}, fmt.Errorf("storage: stat times %s: %w", fs.path, err)
	}
	access = t.AccessTime()
	modify = t.ModTime()
	if t.HasBirthTime() {
		create = t.BirthTime()
	}
	return access, modify, create, nil
}

func (fs *FileStorage) Close() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if !fs.readOnly {
		fs.sync()
		if fs.locked {
			fs.unlock()
		}
	}
	return fs.f.Close()
}
