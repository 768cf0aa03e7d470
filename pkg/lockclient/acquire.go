package lockclient

import (
	"github.com/coldfront/dfs/internal/dfserr"
	"github.com/coldfront/dfs/internal/logger"
	"github.com/coldfront/dfs/pkg/lockservice"
)

// Acquire blocks the calling goroutine until it owns lid, taking the
// fast local path (spec.md §4.1's FREE reclaim) whenever possible and
// otherwise going out to the server.
func (c *Client) Acquire(lid uint64) error {
	c.mu.Lock()
	for {
		e := c.entryLocked(lid)
		switch e.state {
		case StateNone:
			xid := e.xid + 1
			e.xid = xid
			e.state = StateAcquiring
			c.mu.Unlock()

			if err := c.sendAcquire(lid, xid); err != nil {
				c.mu.Lock()
				e.state = StateNone
				e.cond.Broadcast()
				c.mu.Unlock()
				return err
			}

			c.mu.Lock()
			e.state = StateLocked
			e.cond.Broadcast()
			c.mu.Unlock()
			return nil

		case StateFree:
			e.state = StateLocked
			c.mu.Unlock()
			logger.Debug("lock reclaimed locally", logger.LockID(lid))
			return nil

		default:
			// ACQUIRING, LOCKED, REVOKED, RELEASING: some other local
			// thread owns or is working the lock; wait for it to move.
			e.cond.Wait()
		}
	}
}

// sendAcquire drives the server round trip for a fresh acquire,
// resending on RETRY once the matching retry callback has arrived.
// Each resend bumps xid, mirroring the original's l->xid++ between the
// retry callback and the next call so the new attempt gets its own
// disambiguating id. Called without c.mu held.
func (c *Client) sendAcquire(lid, xid uint64) error {
	for {
		args := lockservice.AcquireArgs{LockID: lid, ClientID: c.id, ClientAddr: c.addr, Xid: xid}
		var reply lockservice.AcquireReply
		if err := c.srv.Call(method("Acquire"), &args, &reply); err != nil {
			return dfserr.New(dfserr.RPCERR, err.Error())
		}

		logger.Debug("lock acquire rpc", logger.LockID(lid), logger.Xid(xid), logger.Result(reply.Status.String()))

		if reply.Status == dfserr.OK {
			return nil
		}

		// RETRY: the server has queued us; wait for the retry callback
		// that matches this exact xid, then bump xid before resending.
		c.mu.Lock()
		e := c.entryLocked(lid)
		for !(e.hasRetried && e.retriedXid == xid) {
			e.cond.Wait()
		}
		e.hasRetried = false
		xid = e.xid + 1
		e.xid = xid
		e.cond.Broadcast()
		c.mu.Unlock()
	}
}
