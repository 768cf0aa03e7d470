package lockservice

import (
	"time"

	"github.com/coldfront/dfs/pkg/rpc"
)

// Conn is the minimal client connection the revoke/retry dispatcher
// loops need: place one call, then close.
type Conn interface {
	Call(serviceMethod string, args, reply any) error
	Close() error
}

// Dialer opens a Conn to a client's callback listener (its RLock
// service). The production Dialer opens a real TCP connection; tests
// substitute an in-process one backed by rpctest so the dispatcher
// loops can be exercised without sockets.
type Dialer interface {
	Dial(addr string) (Conn, error)
}

type tcpDialer struct {
	timeout time.Duration
}

func (d tcpDialer) Dial(addr string) (Conn, error) {
	return rpc.DialTimeout(addr, d.timeout)
}
