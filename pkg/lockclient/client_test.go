package lockclient_test

import (
	"fmt"
	"net"
	"net/rpc"
	"sync"
	"testing"
	"time"

	"github.com/coldfront/dfs/pkg/lockclient"
	"github.com/coldfront/dfs/pkg/lockservice"
	"github.com/coldfront/dfs/pkg/rpc/rpctest"
	"github.com/stretchr/testify/require"
)

// fakeDialer lets a lockservice.Server reach a lockclient.Client's
// RLock callbacks without opening a real socket, mirroring
// lockservice's own test fixture one package over.
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

// newTestClient wires up a lockclient.Client against s: addr is the
// fake callback address the server will dial to reach it.
func newTestClient(t *testing.T, s *lockservice.Server, dialer *fakeDialer, id, addr string) *lockclient.Client {
	t.Helper()
	pair, err := rpctest.NewPair(lockservice.ServiceName, s)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pair.Close() })

	c := lockclient.New(pair.Client, id, addr)
	dialer.register(addr, c)
	t.Cleanup(c.Close)
	return c
}

func newTestServer(t *testing.T, dialer *fakeDialer) *lockservice.Server {
	t.Helper()
	s := lockservice.NewServer()
	s.SetDialer(dialer)
	s.Start()
	t.Cleanup(s.Close)
	return s
}

func TestAcquireReleaseRoundTrip(t *testing.T) {
	dialer := newFakeDialer()
	s := newTestServer(t, dialer)
	a := newTestClient(t, s, dialer, "a", "a-addr")

	require.NoError(t, a.Acquire(42))
	a.Release(42)

	// Reacquiring after a clean release takes the FREE fast path, with
	// no server contention to wait out.
	require.NoError(t, a.Acquire(42))
	a.Release(42)
}

func TestSecondClientWaitsForRevoke(t *testing.T) {
	dialer := newFakeDialer()
	s := newTestServer(t, dialer)
	a := newTestClient(t, s, dialer, "a", "a-addr")
	b := newTestClient(t, s, dialer, "b", "b-addr")

	require.NoError(t, a.Acquire(7))

	done := make(chan error, 1)
	go func() { done <- b.Acquire(7) }()

	// Give B's acquire time to block behind A's hold (its RETRY makes
	// the server revoke A, leaving A's lock REVOKED), then release:
	// A's release hands the lock to the releaser goroutine, which
	// performs the server Release RPC and unblocks B via the retry
	// callback.
	time.Sleep(20 * time.Millisecond)
	a.Release(7)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("B's acquire did not complete after A released")
	}

	b.Release(7)
}

func TestCloseReleasesFreeLocks(t *testing.T) {
	dialer := newFakeDialer()
	s := newTestServer(t, dialer)
	a := newTestClient(t, s, dialer, "a", "a-addr")

	require.NoError(t, a.Acquire(11))
	a.Release(11) // cached FREE locally, not yet returned to the server

	a.Close()

	// With a gone, the lock must already be back at the server: a
	// second client can acquire it immediately, with no contention.
	b := newTestClient(t, s, dialer, "b", "b-addr")
	require.NoError(t, b.Acquire(11))
}

func TestLocalContentionSerializesWithoutServerRoundTrip(t *testing.T) {
	dialer := newFakeDialer()
	s := newTestServer(t, dialer)
	a := newTestClient(t, s, dialer, "a", "a-addr")

	require.NoError(t, a.Acquire(3))

	acquired := make(chan struct{})
	go func() {
		// Second local thread on the same Client contends for the same
		// lockid; it must block until the first Release.
		require.NoError(t, a.Acquire(3))
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second local acquire completed before the first released")
	case <-time.After(20 * time.Millisecond):
	}

	a.Release(3)

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second local acquire never completed")
	}
	a.Release(3)
}
