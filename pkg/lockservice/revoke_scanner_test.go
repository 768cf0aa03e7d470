package lockservice

import (
	"testing"
	"time"

	"github.com/coldfront/dfs/internal/dfserr"
	"github.com/stretchr/testify/require"
)

// stubDialer never actually reaches a client; it is used here because
// the scanner's force-reclaim path does not depend on the revoke
// callback having been delivered (that's the whole point).
type stubDialer struct{}

func (stubDialer) Dial(addr string) (Conn, error) { return nil, errDialUnreachable }

var errDialUnreachable = dfserr.New(dfserr.RPCERR, "unreachable")

func TestForceExpiredRevokesHandsToWaiter(t *testing.T) {
	s := NewServer()
	s.SetDialer(stubDialer{})
	s.Start()
	defer s.Close()

	var acq AcquireReply
	require.NoError(t, s.Acquire(&AcquireArgs{LockID: 1, ClientID: "holder", ClientAddr: "a1", Xid: 1}, &acq))
	require.Equal(t, dfserr.OK, acq.Status)

	var acq2 AcquireReply
	require.NoError(t, s.Acquire(&AcquireArgs{LockID: 1, ClientID: "waiter", ClientAddr: "a2", Xid: 1}, &acq2))
	require.Equal(t, dfserr.RETRY, acq2.Status)

	s.mu.Lock()
	e := s.locks[1]
	require.Equal(t, StateRevoked, e.state)
	e.revokedAt = time.Now().Add(-2 * DefaultRevokeTimeout)
	s.mu.Unlock()

	s.forceExpiredRevokes(DefaultRevokeTimeout)

	s.mu.Lock()
	defer s.mu.Unlock()
	require.Equal(t, StateRetried, e.state)
	require.Equal(t, "waiter", e.holder)
	require.Empty(t, e.waiters)
}
