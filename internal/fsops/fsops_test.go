package fsops_test

import (
	"fmt"
	"net"
	"net/rpc"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coldfront/dfs/internal/dfserr"
	"github.com/coldfront/dfs/internal/extentstore"
	"github.com/coldfront/dfs/internal/fsops"
	"github.com/coldfront/dfs/pkg/extentclient"
	"github.com/coldfront/dfs/pkg/lockclient"
	"github.com/coldfront/dfs/pkg/lockservice"
	"github.com/coldfront/dfs/pkg/rpc/rpctest"
)

// fakeDialer wires the lockservice.Server's revoke/retry callbacks to
// an in-process lockclient.Client, mirroring pkg/lockclient's own test
// fixture; a single client is all these tests need since fsops itself
// carries no cross-client concurrency behavior (that's §4.1's domain,
// covered in pkg/lockservice and pkg/lockclient).
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

func newTestFS(t *testing.T) *fsops.FS {
	t.Helper()

	store, err := extentstore.New(extentstore.DefaultConfig(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	extentSrv := extentstore.NewServer(store)

	extentPair, err := rpctest.NewPair(extentstore.ServiceName, extentSrv)
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

	fs := fsops.New(lc, cache, ec)
	require.NoError(t, fs.Bootstrap())
	return fs
}

func TestCreateLookup(t *testing.T) {
	fs := newTestFS(t)

	inum, err := fs.Create(fsops.RootInum, "hello.txt")
	require.NoError(t, err)
	require.True(t, fsops.IsFile(inum))

	got, ok, err := fs.Lookup(fsops.RootInum, "hello.txt")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, inum, got)
}

func TestCreateDuplicateIsExist(t *testing.T) {
	fs := newTestFS(t)

	_, err := fs.Create(fsops.RootInum, "dup")
	require.NoError(t, err)

	_, err = fs.Create(fsops.RootInum, "dup")
	require.Equal(t, dfserr.EXIST, dfserr.CodeOf(err))
}

func TestMkdirAndReaddir(t *testing.T) {
	fs := newTestFS(t)

	sub, err := fs.Mkdir(fsops.RootInum, "sub")
	require.NoError(t, err)
	require.True(t, fsops.IsDir(sub))

	entries, err := fs.Readdir(fsops.RootInum)
	require.NoError(t, err)
	require.Equal(t, sub, entries["sub"])
}

func TestWriteReadRoundTrip(t *testing.T) {
	fs := newTestFS(t)

	inum, err := fs.Create(fsops.RootInum, "f")
	require.NoError(t, err)

	buf := []byte("hello world")
	require.NoError(t, fs.Write(inum, buf, uint64(len(buf)), 0))

	got, err := fs.Read(inum, uint64(len(buf)), 0)
	require.NoError(t, err)
	require.Equal(t, buf, got)
}

func TestWriteBeyondEndPadsZeros(t *testing.T) {
	fs := newTestFS(t)

	inum, err := fs.Create(fsops.RootInum, "f")
	require.NoError(t, err)

	require.NoError(t, fs.Write(inum, []byte("AB"), 2, 0))
	require.NoError(t, fs.Write(inum, []byte("CD"), 2, 5))

	got, err := fs.Read(inum, 7, 0)
	require.NoError(t, err)
	require.Equal(t, []byte{'A', 'B', 0, 0, 0, 'C', 'D'}, got)
}

func TestWriteOverwriteInPlace(t *testing.T) {
	fs := newTestFS(t)

	inum, err := fs.Create(fsops.RootInum, "f")
	require.NoError(t, err)
	require.NoError(t, fs.Write(inum, []byte("abcdef"), 6, 0))
	require.NoError(t, fs.Write(inum, []byte("XY"), 2, 2))

	got, err := fs.Read(inum, 6, 0)
	require.NoError(t, err)
	require.Equal(t, []byte("abXYef"), got)
}

func TestReadAtEndIsIOErr(t *testing.T) {
	fs := newTestFS(t)

	inum, err := fs.Create(fsops.RootInum, "f")
	require.NoError(t, err)
	require.NoError(t, fs.Write(inum, []byte("abc"), 3, 0))

	_, err = fs.Read(inum, 1, 3)
	require.Equal(t, dfserr.IOERR, dfserr.CodeOf(err))
}

func TestSetFileSizeRoundTrip(t *testing.T) {
	fs := newTestFS(t)

	inum, err := fs.Create(fsops.RootInum, "f")
	require.NoError(t, err)
	require.NoError(t, fs.Write(inum, []byte("abc"), 3, 0))

	require.NoError(t, fs.SetFileSize(inum, 5))
	got, err := fs.Read(inum, 5, 0)
	require.NoError(t, err)
	require.Equal(t, []byte{'a', 'b', 'c', 0, 0}, got)

	require.NoError(t, fs.SetFileSize(inum, 2))
	got, err = fs.Read(inum, 2, 0)
	require.NoError(t, err)
	require.Equal(t, []byte{'a', 'b'}, got)
}

func TestRemoveDirectoryIsIOErr(t *testing.T) {
	fs := newTestFS(t)

	_, err := fs.Mkdir(fsops.RootInum, "d")
	require.NoError(t, err)

	err = fs.Remove(fsops.RootInum, "d")
	require.Equal(t, dfserr.IOERR, dfserr.CodeOf(err))
}

func TestRemoveThenLookupMisses(t *testing.T) {
	fs := newTestFS(t)

	_, err := fs.Create(fsops.RootInum, "f")
	require.NoError(t, err)
	require.NoError(t, fs.Remove(fsops.RootInum, "f"))

	_, ok, err := fs.Lookup(fsops.RootInum, "f")
	require.NoError(t, err)
	require.False(t, ok)
}
