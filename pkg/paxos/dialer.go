package paxos

import (
	"context"
	"time"

	"github.com/coldfront/dfs/pkg/rpc"
)

// Conn is the outbound side of a peer connection used by the proposer
// to run preparereq/acceptreq/decidereq against one node.
type Conn interface {
	Call(serviceMethod string, args, reply any) error
	Close() error
}

// Dialer abstracts connecting to a peer by address, so the
// prepare/accept/decide fan-out can be driven in tests without real
// sockets, mirroring pkg/lockservice.Dialer.
type Dialer interface {
	Dial(addr string) (Conn, error)
}

// rpcTimeout bounds every Paxos RPC (spec.md §5: "Paxos RPCs timeout
// at 1s and are treated as non-promises").
const rpcTimeout = time.Second

// NewTCPDialer returns the production Dialer used by a real lockd
// process to reach its Paxos peers over TCP.
func NewTCPDialer() Dialer {
	return tcpDialer{}
}

type tcpDialer struct{}

func (tcpDialer) Dial(addr string) (Conn, error) {
	c, err := rpc.DialTimeout(addr, rpcTimeout)
	if err != nil {
		return nil, err
	}
	return &timeoutConn{client: c}, nil
}

// timeoutConn adapts *rpc.Client's CallTimeout to the plain Call shape
// Conn needs, fixing every call to rpcTimeout.
type timeoutConn struct {
	client *rpc.Client
}

func (c *timeoutConn) Call(serviceMethod string, args, reply any) error {
	ctx, cancel := context.WithTimeout(context.Background(), rpcTimeout)
	defer cancel()
	return c.client.CallTimeout(ctx, serviceMethod, args, reply, rpcTimeout)
}

func (c *timeoutConn) Close() error {
	return c.client.Close()
}
