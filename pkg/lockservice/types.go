// Package lockservice implements the cache-coherent lock server
// described in spec.md §4.1: clients may cache an acquired lock across
// transactions, and the server revokes it from the current holder when
// another client wants it.
package lockservice

import "github.com/coldfront/dfs/internal/dfserr"

// ServiceName is the net/rpc service name this package registers its
// methods under (e.g. "Lock.Acquire").
const ServiceName = "Lock"

// ClientServiceName is the net/rpc service name the lock client
// registers on its own RPC listener for the server's revoke/retry
// callbacks (e.g. "RLock.Revoke").
const ClientServiceName = "RLock"

// State is a per-lockid server-side state (spec.md §4.1).
type State int

const (
	StateFree State = iota
	StateLocked
	StateRevoked
	StateRetried
)

func (s State) String() string {
	switch s {
	case StateFree:
		return "FREE"
	case StateLocked:
		return "LOCKED"
	case StateRevoked:
		return "REVOKED"
	case StateRetried:
		return "RETRIED"
	default:
		return "UNKNOWN"
	}
}

// AcquireArgs requests lid on behalf of a client. ClientAddr is the
// address of the client's own RPC listener, used for revoke/retry
// callbacks.
type AcquireArgs struct {
	LockID     uint64
	ClientID   string
	ClientAddr string
	Xid        uint64
}

// AcquireReply's Status is dfserr.OK or dfserr.RETRY; never an error
// code, since RETRY is an expected, successful outcome of acquire.
type AcquireReply struct {
	Status dfserr.Code
}

// ReleaseArgs returns lid; the pair (ClientID, Xid) must match the
// current holder or the call is rejected with NOENT.
type ReleaseArgs struct {
	LockID   uint64
	ClientID string
	Xid      uint64
}

// ReleaseReply's Status is dfserr.OK or dfserr.NOENT.
type ReleaseReply struct {
	Status dfserr.Code
}

// StatArgs names the lock for the Stat diagnostic hook.
type StatArgs struct {
	LockID uint64
}

// StatReply carries Stat's answer, which is always zero (see
// Server.Stat).
type StatReply struct {
	Count uint64
}

// RevokeArgs asks the client holding lid to give it up. Xxid is the
// ordering counter the client uses to detect and wait out reordered
// revoke/retry deliveries (spec.md §4.1 "out-of-order tolerance").
type RevokeArgs struct {
	LockID uint64
	Xxid   uint64
}

// RevokeReply is empty; the call's success is what matters.
type RevokeReply struct{}

// RetryArgs tells a waiting client that lid has been handed to it and
// it should resend acquire.
type RetryArgs struct {
	LockID uint64
	Xxid   uint64
}

// RetryReply is empty.
type RetryReply struct{}
