package lockservice

import "time"

// waiter is a client queued behind the current holder of a lock.
type waiter struct {
	clientID   string
	clientAddr string
	xid        uint64
}

// entry is the server's per-lockid state (spec.md §4.1's "Server lock
// states" table). A lock that has never been acquired has no entry;
// entries are created lazily on first acquire and never removed.
type entry struct {
	state State

	holder     string
	holderAddr string
	xid        uint64

	// retriedTo is the client chosen by the most recent release to
	// receive the lock; only it may complete the handoff to LOCKED
	// while state is RETRIED.
	retriedTo string

	waiters []waiter

	// revokedAt is when state last became REVOKED; RevokeScanner uses
	// it to force-reclaim a lock whose holder never answered its
	// revoke (a supplemented robustness feature, not part of spec.md's
	// core invariants — see SPEC_FULL.md §4.1).
	revokedAt time.Time
}
