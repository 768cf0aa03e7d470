package lockservice_test

import (
	"testing"

	"github.com/coldfront/dfs/pkg/lockservice"
	"github.com/coldfront/dfs/pkg/paxos"
	"github.com/stretchr/testify/require"
)

// unreachableDialer is never actually dialed by these tests; it only
// satisfies paxos.Dialer so a real *paxos.Paxos can be constructed.
type unreachableDialer struct{}

func (unreachableDialer) Dial(addr string) (paxos.Conn, error) { return nil, nil }

func newTestPaxos(t *testing.T, onCommit paxos.CommitFunc) *paxos.Paxos {
	t.Helper()
	px, err := paxos.New("node-a", unreachableDialer{}, paxos.NewNullPersister(), onCommit, false, "")
	require.NoError(t, err)
	return px
}

func TestEncodeDecodeView(t *testing.T) {
	v := lockservice.View{"a:1", "b:2", "c:3"}
	require.Equal(t, v, lockservice.DecodeView(lockservice.EncodeView(v)))
	require.Nil(t, lockservice.DecodeView(""))
}

func TestViewManagerOnCommitInstallsView(t *testing.T) {
	var vm *lockservice.ViewManager
	px := newTestPaxos(t, func(instance uint64, value string) { vm.OnCommit(instance, value) })
	vm = lockservice.NewViewManager(px, lockservice.View{"a:1"})
	require.Equal(t, lockservice.View{"a:1"}, vm.Current())

	vm.OnCommit(1, lockservice.EncodeView(lockservice.View{"a:1", "b:2"}))
	require.Equal(t, lockservice.View{"a:1", "b:2"}, vm.Current())

	// A stale/duplicate commit for an instance already superseded is ignored.
	vm.OnCommit(1, lockservice.EncodeView(lockservice.View{"stale"}))
	require.Equal(t, lockservice.View{"a:1", "b:2"}, vm.Current())
}
