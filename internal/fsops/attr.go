package fsops

import (
	"time"

	"github.com/coldfront/dfs/internal/extentstore"
)

// FileAttr mirrors the extent attribute record for a regular file
// inum (spec.md §3's extent attr, re-exposed at the filesystem layer
// for getfile).
type FileAttr struct {
	Atime time.Time
	Mtime time.Time
	Ctime time.Time
	Size  uint64
}

// DirAttr mirrors FileAttr for a directory inum (getdir).
type DirAttr struct {
	Atime time.Time
	Mtime time.Time
	Ctime time.Time
	Size  uint64
}

// GetFile returns ino's attributes. ino must be a file inum.
func (fs *FS) GetFile(ino uint64) (FileAttr, error) {
	if err := requireFile(ino); err != nil {
		return FileAttr{}, err
	}
	if err := fs.locks.Acquire(ino); err != nil {
		return FileAttr{}, err
	}
	defer fs.release(ino)

	a, err := fs.extents.GetAttr(ino)
	if err != nil {
		return FileAttr{}, err
	}
	return fileAttrOf(a), nil
}

// GetDir mirrors GetFile for a directory inum.
func (fs *FS) GetDir(ino uint64) (DirAttr, error) {
	if err := requireDir(ino); err != nil {
		return DirAttr{}, err
	}
	if err := fs.locks.Acquire(ino); err != nil {
		return DirAttr{}, err
	}
	defer fs.release(ino)

	a, err := fs.extents.GetAttr(ino)
	if err != nil {
		return DirAttr{}, err
	}
	return DirAttr(fileAttrOf(a)), nil
}

func fileAttrOf(a extentstore.Attr) FileAttr {
	return FileAttr{Atime: a.Atime, Mtime: a.Mtime, Ctime: a.Ctime, Size: a.Size}
}
