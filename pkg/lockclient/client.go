package lockclient

import (
	"sync"

	"github.com/coldfront/dfs/pkg/lockservice"
	"github.com/coldfront/dfs/pkg/rpc"
)

// RPC is the minimal interface lockclient needs from a transport;
// satisfied by *rpc.Client and by an in-process rpctest.Pair's client
// for tests.
type RPC interface {
	Call(serviceMethod string, args, reply any) error
}

// Client is the lock client cache of spec.md §4.1. id and addr
// identify this client to the lock server: addr is where the server's
// revoke/retry callbacks are delivered, so the caller must have
// already registered this Client's Revoke/Retry methods (see
// ListenAndServe) before issuing any Acquire.
//
// The listen port is supplied by the caller rather than tracked as
// process-wide static state (spec.md §9's design note on the original
// lock-client's "last_port" global): a process embedding more than one
// Client, or running more than one in a test, never collides.
type Client struct {
	id   string
	addr string
	srv  RPC

	mu           sync.Mutex
	entries      map[uint64]*entry
	releaseQueue []uint64
	releaseCond  *sync.Cond
	closing      bool
	wg           sync.WaitGroup
}

// New wraps an already-connected RPC transport to the lock server. id
// must be unique among clients of that server; addr is the address at
// which this client's own RLock service is reachable for callbacks.
func New(transport RPC, id, addr string) *Client {
	c := &Client{
		id:      id,
		addr:    addr,
		srv:     transport,
		entries: make(map[uint64]*entry),
	}
	c.releaseCond = sync.NewCond(&c.mu)
	c.wg.Add(1)
	go c.releaserLoop()
	return c
}

// Dial connects to a lock server at serverAddr. The caller is
// responsible for starting an RPC listener at addr, registering this
// Client under lockservice.ClientServiceName, and passing the same
// addr here so the server's callbacks can reach it.
func Dial(serverAddr, id, addr string) (*Client, error) {
	c, err := rpc.Dial(serverAddr)
	if err != nil {
		return nil, err
	}
	return New(c, id, addr), nil
}

// Close releases every lock this client holds free-and-clear back to
// the server, then stops the releaser goroutine, mirroring the
// original lock client's destructor. Locks still LOCKED by an active
// caller (as opposed to cached FREE) are left for that caller to
// Release before Close runs.
func (c *Client) Close() {
	c.mu.Lock()
	for lid, e := range c.entries {
		if e.state == StateFree {
			e.state = StateReleasing
			c.enqueueReleaseLocked(lid)
		}
	}
	for len(c.releaseQueue) > 0 {
		c.releaseCond.Wait()
	}
	c.closing = true
	c.releaseCond.Broadcast()
	c.mu.Unlock()
	c.wg.Wait()
}

// entryLocked returns lid's entry, creating it in state NONE if this
// is the first time the client has seen it. Called with c.mu held.
func (c *Client) entryLocked(lid uint64) *entry {
	e, ok := c.entries[lid]
	if !ok {
		e = newEntry(&c.mu)
		c.entries[lid] = e
	}
	return e
}

func method(name string) string {
	return lockservice.ServiceName + "." + name
}
