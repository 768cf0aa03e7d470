package lockclient

import (
	"github.com/coldfront/dfs/internal/dfserr"
	"github.com/coldfront/dfs/internal/logger"
	"github.com/coldfront/dfs/pkg/lockservice"
)

// Release gives up the calling thread's hold on lid. If the lock has
// been revoked, it is queued for the releaser goroutine rather than
// handed back to another local thread (spec.md §4.1).
func (c *Client) Release(lid uint64) {
	c.mu.Lock()
	e := c.entryLocked(lid)
	switch e.state {
	case StateLocked:
		e.state = StateFree
	case StateRevoked:
		e.state = StateReleasing
		c.enqueueReleaseLocked(lid)
	}
	e.cond.Broadcast()
	c.mu.Unlock()
}

// enqueueReleaseLocked hands lid to the releaser goroutine. Called
// with c.mu held.
func (c *Client) enqueueReleaseLocked(lid uint64) {
	c.releaseQueue = append(c.releaseQueue, lid)
	c.releaseCond.Signal()
}

// releaserLoop is the single dedicated goroutine that returns revoked
// locks to the server; it never runs concurrently with itself, so a
// given lockid's release RPCs are always issued in order.
func (c *Client) releaserLoop() {
	defer c.wg.Done()

	c.mu.Lock()
	for {
		for len(c.releaseQueue) == 0 {
			if c.closing {
				c.mu.Unlock()
				return
			}
			c.releaseCond.Wait()
		}
		lid := c.releaseQueue[0]
		c.releaseQueue = c.releaseQueue[1:]
		c.mu.Unlock()

		c.doRelease(lid)

		c.mu.Lock()
		c.releaseCond.Broadcast()
	}
}

// doRelease performs the actual release RPC to the server. On success
// the entry returns to NONE and its xid advances, per spec.md §4.1
// ("upon return it transitions to NONE and increments xid"). A failed
// RPC is requeued; the RPC substrate is assumed reliable over the long
// run (spec.md §5), so this is a best-effort retry rather than a loop
// with backoff.
func (c *Client) doRelease(lid uint64) {
	c.mu.Lock()
	e := c.entryLocked(lid)
	xid := e.xid
	c.mu.Unlock()

	args := lockservice.ReleaseArgs{LockID: lid, ClientID: c.id, Xid: xid}
	var reply lockservice.ReleaseReply
	err := c.srv.Call(method("Release"), &args, &reply)

	c.mu.Lock()
	if err != nil || reply.Status != dfserr.OK {
		logger.Warn("lock release rpc failed, requeueing", logger.LockID(lid), logger.Err(err))
		c.releaseQueue = append(c.releaseQueue, lid)
		c.releaseCond.Signal()
		c.mu.Unlock()
		return
	}

	e.state = StateNone
	e.xid++
	e.cond.Broadcast()
	c.mu.Unlock()

	logger.Debug("lock released", logger.LockID(lid))
}
