package paxos_test

import (
	"context"
	"net"
	"net/rpc"
	"sync"
	"testing"
	"time"

	"github.com/coldfront/dfs/pkg/paxos"
	"github.com/stretchr/testify/require"
)

// fakeDialer routes Paxos RPCs to in-process nodes keyed by address,
// mirroring pkg/lockservice's test fixture: no real sockets, but a
// real net/rpc server per connection over a net.Pipe so encoding and
// method dispatch are exercised end to end.
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

func (d *fakeDialer) Dial(addr string) (paxos.Conn, error) {
	d.mu.Lock()
	receiver, ok := d.recv[addr]
	d.mu.Unlock()
	if !ok {
		return nil, &net.AddrError{Err: "no receiver", Addr: addr}
	}
	server := rpc.NewServer()
	if err := server.RegisterName(paxos.ServiceName, receiver); err != nil {
		return nil, err
	}
	clientConn, serverConn := net.Pipe()
	go server.ServeConn(serverConn)
	return rpc.NewClient(clientConn), nil
}

// commitRecorder records every commit upcall a node receives.
type commitRecorder struct {
	mu      sync.Mutex
	commits []struct {
		instance uint64
		value    string
	}
}

func (r *commitRecorder) record(instance uint64, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commits = append(r.commits, struct {
		instance uint64
		value    string
	}{instance, value})
}

func (r *commitRecorder) sawInstance(t *testing.T, instance uint64) string {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.commits {
		if c.instance == instance {
			return c.value
		}
	}
	return ""
}

func newNode(t *testing.T, dialer *fakeDialer, me string) (*paxos.Paxos, *commitRecorder) {
	t.Helper()
	rec := &commitRecorder{}
	p, err := paxos.New(me, dialer, paxos.NewNullPersister(), rec.record, true, "bootstrap")
	require.NoError(t, err)
	dialer.register(me, p)
	return p, rec
}

func TestAgreementThreeLiveNodes(t *testing.T) {
	dialer := newFakeDialer()
	a, aRec := newNode(t, dialer, "A")
	_, bRec := newNode(t, dialer, "B")
	_, cRec := newNode(t, dialer, "C")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ok := a.Run(ctx, 2, []string{"A", "B", "C"}, "v1")
	require.True(t, ok)

	require.Eventually(t, func() bool { return aRec.sawInstance(t, 2) == "v1" }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return bRec.sawInstance(t, 2) == "v1" }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return cRec.sawInstance(t, 2) == "v1" }, time.Second, time.Millisecond)
}

// TestAgreementWithOneDeadNode matches spec.md §8's scenario 4: nodes
// {A, B, C}, C is down. A still reaches a majority via {A, B} and
// commits fires on A and B; C never hears about it.
func TestAgreementWithOneDeadNode(t *testing.T) {
	dialer := newFakeDialer()
	a, aRec := newNode(t, dialer, "A")
	_, bRec := newNode(t, dialer, "B")
	// C is never registered with the dialer: every dial to "C" fails,
	// standing in for a down node.

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ok := a.Run(ctx, 2, []string{"A", "B", "C"}, "v1")
	require.True(t, ok)

	require.Eventually(t, func() bool { return aRec.sawInstance(t, 2) == "v1" }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return bRec.sawInstance(t, 2) == "v1" }, time.Second, time.Millisecond)
}

// blockingAcceptor holds every Prepare until release is closed, then
// answers with an empty (non-accepting) reply.
type blockingAcceptor struct{ release chan struct{} }

func (b *blockingAcceptor) Prepare(args *paxos.PrepareArgs, reply *paxos.PrepareReply) error {
	<-b.release
	return nil
}

func TestRunRejectsConcurrentRun(t *testing.T) {
	dialer := newFakeDialer()
	a, _ := newNode(t, dialer, "A")
	require.False(t, a.IsRunning())

	blocker := &blockingAcceptor{release: make(chan struct{})}
	dialer.register("B", blocker)

	done := make(chan bool, 1)
	go func() { done <- a.Run(context.Background(), 2, []string{"B"}, "v1") }()
	require.Eventually(t, a.IsRunning, time.Second, time.Millisecond)

	// A second Run while the first is still in its prepare phase is
	// rejected outright.
	require.False(t, a.Run(context.Background(), 2, []string{"A"}, "v2"))

	close(blocker.release)
	require.False(t, <-done)
	require.False(t, a.IsRunning())
}
