package main

import (
	"context"
	"fmt"
	"net"
	"net/rpc"
	"sync"
	"syscall"
	"testing"

	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/stretchr/testify/require"

	"github.com/coldfront/dfs/internal/extentstore"
	"github.com/coldfront/dfs/internal/fsops"
	"github.com/coldfront/dfs/pkg/extentclient"
	"github.com/coldfront/dfs/pkg/lockclient"
	"github.com/coldfront/dfs/pkg/lockservice"
	"github.com/coldfront/dfs/pkg/rpc/rpctest"
)

// fakeDialer mirrors internal/fsops's own test fixture; this bridge's
// smoke test needs the same in-process lock server/client wiring to
// build a real *fsops.FS without any sockets.
type fakeDialer struct {
	mu   sync.Mutex
	recv map[string]any
}

func newFakeDialer() *fakeDialer { return &fakeDialer{recv: make(map[string]any)} }

func (d *fakeDialer) register(addr string, receiver any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.recv[addr] = receiver
}

func (d *fakeDialer) Dial(addr string) (lockservice.Conn, error) {
	d.mu.Lock()
	receiver, ok := d.recv[addr]
	d.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("fakeDialer: no receiver for %q", addr)
	}
	server := rpc.NewServer()
	if err := server.RegisterName(lockservice.ClientServiceName, receiver); err != nil {
		return nil, err
	}
	clientConn, serverConn := net.Pipe()
	go server.ServeConn(serverConn)
	return rpc.NewClient(clientConn), nil
}

func newTestOps(t *testing.T) *fsops.FS {
	t.Helper()

	store, err := extentstore.New(extentstore.DefaultConfig(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	extentPair, err := rpctest.NewPair(extentstore.ServiceName, extentstore.NewServer(store))
	require.NoError(t, err)
	t.Cleanup(func() { _ = extentPair.Close() })
	ec := extentclient.New(extentPair.Client)
	cache := extentclient.NewCache(ec)

	lockSrv := lockservice.NewServer()
	dialer := newFakeDialer()
	lockSrv.SetDialer(dialer)
	lockSrv.Start()
	t.Cleanup(lockSrv.Close)

	lockPair, err := rpctest.NewPair(lockservice.ServiceName, lockSrv)
	require.NoError(t, err)
	t.Cleanup(func() { _ = lockPair.Close() })

	lc := lockclient.New(lockPair.Client, "client-1", "client-1-addr")
	dialer.register("client-1-addr", lc)
	t.Cleanup(lc.Close)

	fsys := fsops.New(lc, cache, ec)
	require.NoError(t, fsys.Bootstrap())
	return fsys
}

// TestBridgeCreateLookupReaddir exercises node.go's translation layer
// end to end (Create -> Lookup -> Readdir) without an actual kernel
// FUSE mount, which this sandbox cannot perform.
func TestBridgeCreateLookupReaddir(t *testing.T) {
	ops = newTestOps(t)
	root := childNode(fsops.RootInum)

	var entryOut fuse.EntryOut
	child, fh, _, errno := root.Create(context.Background(), "hello.txt", 0, 0644, &entryOut)
	require.Equal(t, syscall.Errno(0), errno)
	require.Nil(t, fh)
	require.NotNil(t, child)
	require.Equal(t, uint32(syscall.S_IFREG|0644), entryOut.Attr.Mode)

	var lookupOut fuse.EntryOut
	_, errno = root.Lookup(context.Background(), "hello.txt", &lookupOut)
	require.Equal(t, syscall.Errno(0), errno)
	require.Equal(t, entryOut.Attr.Ino, lookupOut.Attr.Ino)

	_, errno = root.Lookup(context.Background(), "missing", &lookupOut)
	require.Equal(t, syscall.ENOENT, errno)

	stream, errno := root.Readdir(context.Background())
	require.Equal(t, syscall.Errno(0), errno)
	require.True(t, stream.HasNext())
	entry, errno := stream.Next()
	require.Equal(t, syscall.Errno(0), errno)
	require.Equal(t, "hello.txt", entry.Name)
}

// TestBridgeWriteReadRoundTrip exercises Write/Read through the node
// methods a kernel would call on an open file handle.
func TestBridgeWriteReadRoundTrip(t *testing.T) {
	ops = newTestOps(t)
	root := childNode(fsops.RootInum)

	var entryOut fuse.EntryOut
	child, _, _, errno := root.Create(context.Background(), "f", 0, 0644, &entryOut)
	require.Equal(t, syscall.Errno(0), errno)
	node := child.Operations().(*dfsNode)

	written, errno := node.Write(context.Background(), nil, []byte("hello"), 0)
	require.Equal(t, syscall.Errno(0), errno)
	require.Equal(t, uint32(5), written)

	buf := make([]byte, 5)
	result, errno := node.Read(context.Background(), nil, buf, 0)
	require.Equal(t, syscall.Errno(0), errno)
	out, status := result.Bytes(buf)
	require.Equal(t, fuse.OK, status)
	require.Equal(t, "hello", string(out))

	var attrOut fuse.AttrOut
	require.Equal(t, syscall.Errno(0), node.Getattr(context.Background(), nil, &attrOut))
	require.Equal(t, uint64(5), attrOut.Attr.Size)
}
