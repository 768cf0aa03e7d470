package fsops

import (
	"github.com/coldfront/dfs/internal/dfserr"
	"github.com/coldfront/dfs/internal/logger"
)

// Create adds a new, empty regular file named name under parent,
// returning its inum. parent's directory lock scopes the whole
// operation (spec.md §4.4).
func (fs *FS) Create(parent uint64, name string) (uint64, error) {
	return fs.createEntry(parent, name, true)
}

// Mkdir mirrors Create for a new, empty subdirectory.
func (fs *FS) Mkdir(parent uint64, name string) (uint64, error) {
	return fs.createEntry(parent, name, false)
}

func (fs *FS) createEntry(parent uint64, name string, isFile bool) (uint64, error) {
	if err := requireDir(parent); err != nil {
		return 0, err
	}
	if err := fs.locks.Acquire(parent); err != nil {
		return 0, err
	}
	defer fs.release(parent)

	entries, err := fs.readDir(parent)
	if err != nil {
		return 0, err
	}
	if _, exists := entries[name]; exists {
		return 0, dfserr.New(dfserr.EXIST, name)
	}

	inum, err := fs.newInum(isFile)
	if err != nil {
		return 0, err
	}

	entries[name] = inum
	fs.writeDir(parent, entries)
	if err := fs.extents.Flush(parent); err != nil {
		return 0, err
	}

	// The new inum's own extent is created empty and under its own
	// lock, distinct from the parent directory's lock.
	if err := fs.locks.Acquire(inum); err != nil {
		return 0, err
	}
	fs.extents.Put(inum, nil)
	flushErr := fs.extents.Flush(inum)
	fs.release(inum)
	if flushErr != nil {
		return 0, flushErr
	}

	logger.Debug("fsops create", logger.Inum(parent), logger.Inum(inum))
	return inum, nil
}

// Lookup resolves name within parent, reporting whether it exists and
// its inum if so.
func (fs *FS) Lookup(parent uint64, name string) (uint64, bool, error) {
	if err := requireDir(parent); err != nil {
		return 0, false, err
	}
	if err := fs.locks.Acquire(parent); err != nil {
		return 0, false, err
	}
	defer fs.release(parent)

	entries, err := fs.readDir(parent)
	if err != nil {
		return 0, false, err
	}
	inum, ok := entries[name]
	return inum, ok, nil
}

// Readdir returns the full name->inum mapping for directory ino.
func (fs *FS) Readdir(ino uint64) (map[string]uint64, error) {
	if err := requireDir(ino); err != nil {
		return nil, err
	}
	if err := fs.locks.Acquire(ino); err != nil {
		return nil, err
	}
	defer fs.release(ino)

	return fs.readDir(ino)
}

// Remove erases name from parent and deletes the underlying extent.
// Removing a directory entry is IOERR (spec.md §4.4; this system has
// no recursive rmdir).
func (fs *FS) Remove(parent uint64, name string) error {
	if err := requireDir(parent); err != nil {
		return err
	}
	if err := fs.locks.Acquire(parent); err != nil {
		return err
	}
	defer fs.release(parent)

	entries, err := fs.readDir(parent)
	if err != nil {
		return err
	}
	target, ok := entries[name]
	if !ok {
		return dfserr.New(dfserr.IOERR, "no such entry")
	}
	if IsDir(target) {
		return dfserr.New(dfserr.IOERR, "cannot remove a directory")
	}

	if err := fs.locks.Acquire(target); err != nil {
		return err
	}
	fs.extents.Remove(target)
	flushErr := fs.extents.Flush(target)
	fs.release(target)
	if flushErr != nil {
		return flushErr
	}

	delete(entries, name)
	fs.writeDir(parent, entries)
	if err := fs.extents.Flush(parent); err != nil {
		return err
	}

	logger.Debug("fsops remove", logger.Inum(parent), logger.Inum(target))
	return nil
}

// Read returns up to size bytes of ino starting at off, capped at the
// end of the file. Any off >= len(ino), including off == len(ino), is
// IOERR (spec.md §8's boundary behavior).
func (fs *FS) Read(ino uint64, size uint64, off uint64) ([]byte, error) {
	if err := requireFile(ino); err != nil {
		return nil, err
	}
	if err := fs.locks.Acquire(ino); err != nil {
		return nil, err
	}
	defer fs.release(ino)

	data, err := fs.extents.Get(ino)
	if err != nil {
		return nil, err
	}
	if off >= uint64(len(data)) {
		return nil, dfserr.New(dfserr.IOERR, "offset beyond end of file")
	}

	end := off + size
	if end > uint64(len(data)) {
		end = uint64(len(data))
	}
	return append([]byte(nil), data[off:end]...), nil
}

// Write overwrites, extends, or pads ino starting at off with buf[:size]
// (spec.md §4.4): off >= len pads zeros up to off then appends; off +
// size <= len overwrites in place; otherwise the tail beyond off is
// replaced.
func (fs *FS) Write(ino uint64, buf []byte, size uint64, off uint64) error {
	if err := requireFile(ino); err != nil {
		return err
	}
	if uint64(len(buf)) < size {
		size = uint64(len(buf))
	}
	buf = buf[:size]

	if err := fs.locks.Acquire(ino); err != nil {
		return err
	}
	defer fs.release(ino)

	data, err := fs.extents.Get(ino)
	if err != nil {
		return err
	}

	switch {
	case off >= uint64(len(data)):
		padded := make([]byte, off-uint64(len(data)))
		data = append(data, padded...)
		data = append(data, buf...)
	case off+size <= uint64(len(data)):
		copy(data[off:off+size], buf)
	default:
		data = append(data[:off:off], buf...)
	}

	fs.extents.Put(ino, data)
	if err := fs.extents.Flush(ino); err != nil {
		return err
	}
	logger.Debug("fsops write", logger.Inum(ino), logger.Offset(off), logger.Size(len(buf)))
	return nil
}

// SetFileSize truncates or zero-pads ino to exactly size bytes.
func (fs *FS) SetFileSize(ino uint64, size uint64) error {
	if err := requireFile(ino); err != nil {
		return err
	}
	if err := fs.locks.Acquire(ino); err != nil {
		return err
	}
	defer fs.release(ino)

	data, err := fs.extents.Get(ino)
	if err != nil {
		return err
	}

	switch {
	case uint64(len(data)) == size:
		return nil
	case uint64(len(data)) > size:
		data = data[:size]
	default:
		data = append(data, make([]byte, size-uint64(len(data)))...)
	}

	fs.extents.Put(ino, data)
	return fs.extents.Flush(ino)
}
