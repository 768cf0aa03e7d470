// Package paxos implements the single-decree Paxos proposer and
// acceptor of spec.md §4.2, grounded on
// _examples/original_source/paxos.cc: one instance agrees on one
// value (a view-change member list); higher-level code runs one
// instance per reconfiguration.
package paxos

import "fmt"

// ServiceName is the net/rpc registration name for the acceptor's
// three RPC methods.
const ServiceName = "Paxos"

// Ballot is a Paxos proposal number: (n, m) ordered lexicographically
// by n then m, per spec.md §4.2. A proposer's next ballot always
// increases strictly over any ballot it has seen.
type Ballot struct {
	N uint64
	M string
}

// Greater reports whether b orders strictly after o.
func (b Ballot) Greater(o Ballot) bool {
	return b.N > o.N || (b.N == o.N && b.M > o.M)
}

// GreaterOrEqual reports whether b orders at or after o.
func (b Ballot) GreaterOrEqual(o Ballot) bool {
	return b.N > o.N || (b.N == o.N && b.M >= o.M)
}

func (b Ballot) String() string {
	return fmt.Sprintf("%d/%s", b.N, b.M)
}

// PrepareArgs is the prepare RPC's request (spec.md §6).
type PrepareArgs struct {
	Src      string
	Instance uint64
	N        Ballot
}

// PrepareReply is the prepare RPC's response. OldInstance indicates
// the acceptor has already decided Instance; Accept indicates it
// promised not to accept a lower ballot, returning the highest
// ballot/value it had already accepted (if any).
type PrepareReply struct {
	OldInstance bool
	Accept      bool
	Na          Ballot
	Va          string
}

// AcceptArgs is the accept RPC's request.
type AcceptArgs struct {
	Src      string
	Instance uint64
	N        Ballot
	V        string
}

// AcceptReply is the accept RPC's response.
type AcceptReply struct {
	Accepted bool
}

// DecideArgs is the decide RPC's request.
type DecideArgs struct {
	Src      string
	Instance uint64
	V        string
}

// DecideReply is the decide RPC's response; Advanced reports whether
// the acceptor's instance_h moved forward as a result.
type DecideReply struct {
	Advanced bool
}

// CommitFunc is the upcall invoked once an instance is decided,
// called without the Paxos mutex held (spec.md §4.2, §5). Higher
// layers (the lock service's view-change logic) install this to learn
// the agreed value.
type CommitFunc func(instance uint64, value string)
