// Package lockclient implements the client half of the cache-coherent
// lock protocol (spec.md §4.1): a per-lockid state cache that lets a
// client that already owns a lock satisfy further local acquire/release
// calls without a server round-trip, plus a background releaser that
// hands locks back to the server when asked.
package lockclient

import "sync"

// State is a per-lockid client-side cache state (spec.md §4.1's
// "Client lock states" table).
type State int

const (
	StateNone State = iota
	StateAcquiring
	StateFree
	StateLocked
	StateRevoked
	StateReleasing
)

func (s State) String() string {
	switch s {
	case StateNone:
		return "NONE"
	case StateAcquiring:
		return "ACQUIRING"
	case StateFree:
		return "FREE"
	case StateLocked:
		return "LOCKED"
	case StateRevoked:
		return "REVOKED"
	case StateReleasing:
		return "RELEASING"
	default:
		return "UNKNOWN"
	}
}

// entry is the cached state for one lockid. cond guards every field
// below it and is broadcast on any change any waiter might care about;
// waiters always recheck their predicate in a loop, per the usual
// sync.Cond idiom.
type entry struct {
	state State

	// xid is this client's current generation counter for the lock:
	// the sequence number attached to its most recent (or in-flight)
	// acquire. retriedXid is set to the xid a Retry callback validated
	// against, and consumed by the acquiring thread.
	xid        uint64
	retriedXid uint64
	hasRetried bool

	cond *sync.Cond
}

func newEntry(mu *sync.Mutex) *entry {
	return &entry{state: StateNone, cond: sync.NewCond(mu)}
}
