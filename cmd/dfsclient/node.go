// Adapts internal/fsops.FS to github.com/hanwen/go-fuse/v2/fs's node
// interfaces, grounded on the InodeEmbedder/NodeLookuper/NodeReaddirer
// pattern in other_examples' grailbio gfs bridge. Unlike that bridge
// (path-addressed, backed by a remote object lister), every dfs inode
// already carries a stable 64-bit id handed out by fsops, so StableAttr.Ino
// is simply the fsops inum and no path bookkeeping is needed.
//
// This bridge carries none of the system's invariants — those live in
// internal/fsops — and is covered only by a smoke test (spec.md's
// "external collaborator" kernel interface gets a concrete body here
// only because a runnable CLI needs one).
package main

import (
	"context"
	"syscall"
	"time"

	"github.com/coldfront/dfs/internal/dfserr"
	"github.com/coldfront/dfs/internal/fsops"
	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// dfsNode is the fs.InodeEmbedder for every file and directory in the
// mount; ino is the governing fsops inum.
type dfsNode struct {
	fs.Inode
	ino uint64
}

var (
	_ fs.InodeEmbedder = (*dfsNode)(nil)
	_ fs.NodeLookuper  = (*dfsNode)(nil)
	_ fs.NodeReaddirer = (*dfsNode)(nil)
	_ fs.NodeCreater   = (*dfsNode)(nil)
	_ fs.NodeMkdirer   = (*dfsNode)(nil)
	_ fs.NodeUnlinker  = (*dfsNode)(nil)
	_ fs.NodeOpener    = (*dfsNode)(nil)
	_ fs.NodeReader    = (*dfsNode)(nil)
	_ fs.NodeWriter    = (*dfsNode)(nil)
	_ fs.NodeGetattrer = (*dfsNode)(nil)
	_ fs.NodeSetattrer = (*dfsNode)(nil)
)

// ops is the fsops.FS every dfsNode operates against; set once before
// the mount is created (there is exactly one filesystem per process).
var ops *fsops.FS

func errno(err error) syscall.Errno {
	if err == nil {
		return 0
	}
	switch dfserr.CodeOf(err) {
	case dfserr.NOENT:
		return syscall.ENOENT
	case dfserr.EXIST:
		return syscall.EEXIST
	case dfserr.FBIG:
		return syscall.EFBIG
	case dfserr.RPCERR:
		return syscall.EIO
	default:
		return syscall.EIO
	}
}

func stableAttr(inum uint64) fs.StableAttr {
	mode := uint32(syscall.S_IFDIR)
	if fsops.IsFile(inum) {
		mode = syscall.S_IFREG
	}
	return fs.StableAttr{Mode: mode, Ino: inum}
}

func childNode(inum uint64) *dfsNode {
	return &dfsNode{ino: inum}
}

func (n *dfsNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	inum, ok, err := ops.Lookup(n.ino, name)
	if err != nil {
		return nil, errno(err)
	}
	if !ok {
		return nil, syscall.ENOENT
	}
	child := n.NewInode(ctx, childNode(inum), stableAttr(inum))
	fillEntryOut(out, inum)
	return child, 0
}

func (n *dfsNode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	entries, err := ops.Readdir(n.ino)
	if err != nil {
		return nil, errno(err)
	}
	list := make([]fuse.DirEntry, 0, len(entries))
	for name, inum := range entries {
		mode := uint32(syscall.S_IFDIR)
		if fsops.IsFile(inum) {
			mode = syscall.S_IFREG
		}
		list = append(list, fuse.DirEntry{Name: name, Ino: inum, Mode: mode})
	}
	return fs.NewListDirStream(list), 0
}

func (n *dfsNode) Create(ctx context.Context, name string, flags, mode uint32, out *fuse.EntryOut) (*fs.Inode, fs.FileHandle, uint32, syscall.Errno) {
	inum, err := ops.Create(n.ino, name)
	if err != nil {
		return nil, nil, 0, errno(err)
	}
	child := n.NewInode(ctx, childNode(inum), stableAttr(inum))
	fillEntryOut(out, inum)
	return child, nil, 0, 0
}

func (n *dfsNode) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	inum, err := ops.Mkdir(n.ino, name)
	if err != nil {
		return nil, errno(err)
	}
	child := n.NewInode(ctx, childNode(inum), stableAttr(inum))
	fillEntryOut(out, inum)
	return child, 0
}

func (n *dfsNode) Unlink(ctx context.Context, name string) syscall.Errno {
	return errno(ops.Remove(n.ino, name))
}

func (n *dfsNode) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	return nil, 0, 0
}

func (n *dfsNode) Read(ctx context.Context, fh fs.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	data, err := ops.Read(n.ino, uint64(len(dest)), uint64(off))
	if err != nil {
		if dfserr.CodeOf(err) == dfserr.IOERR {
			// An IOERR at or past end-of-file reads as EOF, not a
			// real error, from a FUSE caller's point of view.
			return fuse.ReadResultData(nil), 0
		}
		return nil, errno(err)
	}
	return fuse.ReadResultData(data), 0
}

func (n *dfsNode) Write(ctx context.Context, fh fs.FileHandle, data []byte, off int64) (uint32, syscall.Errno) {
	if err := ops.Write(n.ino, data, uint64(len(data)), uint64(off)); err != nil {
		return 0, errno(err)
	}
	return uint32(len(data)), 0
}

func (n *dfsNode) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	size, mtime, err := n.statAttrs()
	if err != nil {
		return errno(err)
	}
	out.Attr = n.fuseAttr(size, mtime)
	return 0
}

func (n *dfsNode) Setattr(ctx context.Context, fh fs.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	if sz, ok := in.GetSize(); ok {
		if err := ops.SetFileSize(n.ino, sz); err != nil {
			return errno(err)
		}
	}
	size, mtime, err := n.statAttrs()
	if err != nil {
		return errno(err)
	}
	out.Attr = n.fuseAttr(size, mtime)
	return 0
}

func (n *dfsNode) statAttrs() (uint64, time.Time, error) {
	if fsops.IsFile(n.ino) {
		a, err := ops.GetFile(n.ino)
		if err != nil {
			return 0, time.Time{}, err
		}
		return a.Size, a.Mtime, nil
	}
	a, err := ops.GetDir(n.ino)
	if err != nil {
		return 0, time.Time{}, err
	}
	return a.Size, a.Mtime, nil
}

func (n *dfsNode) fuseAttr(size uint64, mtime time.Time) fuse.Attr {
	mode := uint32(syscall.S_IFDIR | 0755)
	if fsops.IsFile(n.ino) {
		mode = syscall.S_IFREG | 0644
	}
	attr := fuse.Attr{Ino: n.ino, Mode: mode, Size: size, Nlink: 1}
	attr.SetTimes(nil, &mtime, nil)
	return attr
}

// fillEntryOut fills just the attribute fields go-fuse doesn't derive
// on its own (NodeId/Generation come from the returned *fs.Inode).
func fillEntryOut(out *fuse.EntryOut, inum uint64) {
	out.Attr.Ino = inum
	mode := uint32(syscall.S_IFDIR | 0755)
	if fsops.IsFile(inum) {
		mode = syscall.S_IFREG | 0644
	}
	out.Attr.Mode = mode
}
