// Package extentstore is the durable, single-node map of 64-bit extent
// id to (bytes, attr) that backs the extent server. Grounded on the
// teacher's filesystem-backed block store (pkg/payload/store/fs):
// same atomic write-via-rename discipline, same RWMutex-guarded
// "closed" flag, adapted from content-addressed block keys to the
// spec's fixed on-disk layout (spec.md §6): per id, two files under
// ID/, "<hex-id>" (bytes) and "<hex-id>_attr" (space-separated
// "atime mtime ctime size").
package extentstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/coldfront/dfs/internal/dfserr"
)

// ErrStoreClosed is returned by any operation after Close.
var ErrStoreClosed = errors.New("extentstore: store is closed")

// Attr mirrors spec.md §3's extent attribute record. Size must always
// equal len(bytes) for the corresponding extent.
type Attr struct {
	Atime time.Time
	Mtime time.Time
	Ctime time.Time
	Size  uint64
}

// Store is a directory-backed implementation of the extent server's
// durable map.
type Store struct {
	mu     sync.RWMutex
	root   string // the "ID/" directory
	closed bool
}

// Config configures a Store.
type Config struct {
	// Root is the directory extent files are stored under (the
	// spec's "ID/" subtree).
	Root string
	// DirMode is the permission mode for created directories.
	DirMode os.FileMode
	// FileMode is defaulted by New but not applied: Put always writes
	// data and attr files with mode 0644.
	FileMode os.FileMode
}

// DefaultConfig returns sane defaults rooted at root.
func DefaultConfig(root string) Config {
	return Config{Root: root, DirMode: 0755, FileMode: 0644}
}

// New creates (or opens) a Store rooted at cfg.Root, creating the
// directory if it does not exist.
func New(cfg Config) (*Store, error) {
	if cfg.Root == "" {
		return nil, errors.New("extentstore: root is required")
	}
	if cfg.DirMode == 0 {
		cfg.DirMode = 0755
	}
	if cfg.FileMode == 0 {
		cfg.FileMode = 0644
	}
	if err := os.MkdirAll(cfg.Root, cfg.DirMode); err != nil {
		return nil, err
	}
	return &Store{root: cfg.Root}, nil
}

// hexID renders id as 16 lowercase hex digits, per spec.md §6.
func hexID(id uint64) string {
	return fmt.Sprintf("%016x", id)
}

func (s *Store) dataPath(id uint64) string {
	return filepath.Join(s.root, hexID(id))
}

func (s *Store) attrPath(id uint64) string {
	return filepath.Join(s.root, hexID(id)+"_attr")
}

// writeAtomic writes data to path via a temp file + rename, as the
// teacher's fs block store does.
func writeAtomic(path string, data []byte, mode os.FileMode) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, mode); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func encodeAttr(a Attr) []byte {
	return fmt.Appendf(nil, "%d %d %d %d",
		a.Atime.UnixNano(), a.Mtime.UnixNano(), a.Ctime.UnixNano(), a.Size)
}

func decodeAttr(b []byte) (Attr, error) {
	var a, m, c int64
	var size uint64
	_, err := fmt.Sscanf(string(b), "%d %d %d %d", &a, &m, &c, &size)
	if err != nil {
		return Attr{}, err
	}
	return Attr{
		Atime: time.Unix(0, a),
		Mtime: time.Unix(0, m),
		Ctime: time.Unix(0, c),
		Size:  size,
	}, nil
}

// Get returns the bytes stored for id, or a NOENT *dfserr.Error if
// either the data file or attr file is missing (spec.md §6: "Missing
// either file = NOENT for both get and getattr").
func (s *Store) Get(id uint64) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	if _, err := os.Stat(s.attrPath(id)); err != nil {
		return nil, dfserr.New(dfserr.NOENT, "extent not found")
	}
	data, err := os.ReadFile(s.dataPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, dfserr.New(dfserr.NOENT, "extent not found")
		}
		return nil, dfserr.New(dfserr.IOERR, err.Error())
	}
	return data, nil
}

// GetAttr returns the attribute record for id.
func (s *Store) GetAttr(id uint64) (Attr, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return Attr{}, ErrStoreClosed
	}

	raw, err := os.ReadFile(s.attrPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return Attr{}, dfserr.New(dfserr.NOENT, "extent not found")
		}
		return Attr{}, dfserr.New(dfserr.IOERR, err.Error())
	}
	if _, err := os.Stat(s.dataPath(id)); err != nil {
		return Attr{}, dfserr.New(dfserr.NOENT, "extent not found")
	}
	attr, err := decodeAttr(raw)
	if err != nil {
		return Attr{}, dfserr.New(dfserr.IOERR, err.Error())
	}
	return attr, nil
}

// Check reports whether an extent with the given id already exists,
// used by the filesystem semantics layer to re-pick on inum collision.
func (s *Store) Check(id uint64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false, ErrStoreClosed
	}
	_, err := os.Stat(s.attrPath(id))
	return err == nil, nil
}

// Put creates or overwrites the extent at id, maintaining the invariant
// attr.size == len(bytes) and stamping atime/mtime/ctime to now.
func (s *Store) Put(id uint64, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	now := time.Now()
	attr := Attr{Atime: now, Mtime: now, Ctime: now, Size: uint64(len(data))}

	if err := writeAtomic(s.dataPath(id), data, 0644); err != nil {
		return dfserr.New(dfserr.IOERR, err.Error())
	}
	if err := writeAtomic(s.attrPath(id), encodeAttr(attr), 0644); err != nil {
		return dfserr.New(dfserr.IOERR, err.Error())
	}
	return nil
}

// Remove deletes the extent's data and attribute files. Removing a
// missing extent is not an error.
func (s *Store) Remove(id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	if err := os.Remove(s.dataPath(id)); err != nil && !os.IsNotExist(err) {
		return dfserr.New(dfserr.IOERR, err.Error())
	}
	if err := os.Remove(s.attrPath(id)); err != nil && !os.IsNotExist(err) {
		return dfserr.New(dfserr.IOERR, err.Error())
	}
	return nil
}

// Close marks the store closed; further operations return ErrStoreClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
