package lockclient

import (
	"github.com/coldfront/dfs/internal/logger"
	"github.com/coldfront/dfs/pkg/lockservice"
)

// Revoke is the server's callback asking this client to give up lid.
// Registered under lockservice.ClientServiceName, so callers expose it
// with: rpcServer.Register(lockservice.ClientServiceName, lockClient).
//
// A revoke or retry may arrive before the acquiring thread has
// recorded the xid it pertains to, or before the acquire's reply has
// been processed (the RPC layer may reorder); this method waits on the
// entry's condition variable until the client's local xid has caught
// up to xxid-1 and the entry has left ACQUIRING, per spec.md §4.1's
// "out-of-order tolerance" invariant.
func (c *Client) Revoke(args *lockservice.RevokeArgs, reply *lockservice.RevokeReply) error {
	c.mu.Lock()
	e := c.entryLocked(args.LockID)
	if args.Xxid <= e.xid {
		// Stale: we've already moved past the acquire this revoke
		// pertains to. Nothing left for it to act on.
		c.mu.Unlock()
		return nil
	}
	for e.xid+1 != args.Xxid || e.state == StateAcquiring {
		e.cond.Wait()
	}

	logger.Debug("lock revoke", logger.LockID(args.LockID), logger.Xxid(args.Xxid), logger.State(e.state.String()))

	switch e.state {
	case StateFree:
		e.state = StateReleasing
		c.enqueueReleaseLocked(args.LockID)
	case StateLocked:
		e.state = StateRevoked
	case StateRevoked, StateReleasing:
		// Already on its way back to the server.
	case StateNone, StateAcquiring:
		// ACQUIRING is waited out above; NONE means the acquire this
		// revoke pertains to failed, so there is nothing to give back.
	}
	e.cond.Broadcast()
	c.mu.Unlock()
	return nil
}

// Retry is the server's callback telling this client that lid has
// been handed to it after a release; the acquiring thread blocked in
// sendAcquire resends its acquire RPC.
func (c *Client) Retry(args *lockservice.RetryArgs, reply *lockservice.RetryReply) error {
	c.mu.Lock()
	e := c.entryLocked(args.LockID)
	if args.Xxid <= e.xid {
		c.mu.Unlock()
		return nil
	}
	for e.xid+1 != args.Xxid {
		e.cond.Wait()
	}

	logger.Debug("lock retry", logger.LockID(args.LockID), logger.Xxid(args.Xxid))

	e.hasRetried = true
	e.retriedXid = e.xid
	e.cond.Broadcast()
	c.mu.Unlock()
	return nil
}
