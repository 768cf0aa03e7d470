package paxos

import (
	"context"
	"sync"

	"github.com/coldfront/dfs/internal/logger"
)

// Paxos is a single node playing both proposer and acceptor roles
// across many single-decree instances, grounded on
// _examples/original_source/paxos.cc's proposer/acceptor pair. me is
// this node's address string, used as the m component of every
// ballot it proposes.
type Paxos struct {
	mu   sync.Mutex
	me   string
	dial Dialer
	log  Persister
	onCommit CommitFunc

	stable bool // false while a Run is in flight; rejects concurrent Runs
	myN    Ballot

	instanceH uint64
	values    map[uint64]string

	// (n_h, n_a, v_a) for the current (not yet decided) instance.
	nH Ballot
	nA Ballot
	vA string
}

// New constructs a node, replaying persister to rebuild acceptor
// state. If first is true and the log held nothing yet, instance 1 is
// seeded with firstValue (spec.md §4.2's bootstrap case, matching the
// acceptor constructor in paxos.cc).
func New(me string, dial Dialer, persister Persister, onCommit CommitFunc, first bool, firstValue string) (*Paxos, error) {
	state, err := persister.Recover()
	if err != nil {
		return nil, err
	}

	p := &Paxos{
		me:        me,
		dial:      dial,
		log:       persister,
		onCommit:  onCommit,
		stable:    true,
		myN:       Ballot{M: me},
		instanceH: state.InstanceH,
		values:    state.Values,
		nH:        Ballot{M: me},
		nA:        Ballot{M: me},
		vA:        state.VA,
	}
	if state.NH != (Ballot{}) {
		p.nH = state.NH
	}
	if state.NA != (Ballot{}) {
		p.nA = state.NA
	}

	if p.instanceH == 0 && first {
		if err := persister.LogInstance(1, firstValue); err != nil {
			return nil, err
		}
		p.values[1] = firstValue
		p.instanceH = 1
	}
	return p, nil
}

// IsRunning reports whether a Run is currently in flight.
func (p *Paxos) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.stable
}

// InstanceH returns the highest instance this node has decided.
func (p *Paxos) InstanceH() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.instanceH
}

// Value returns the decided value for instance, if any.
func (p *Paxos) Value(instance uint64) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.values[instance]
	return v, ok
}

// setNLocked picks the next ballot this node will propose, strictly
// greater than any ballot it or the acceptor side has seen. Called
// with mu held.
func (p *Paxos) setNLocked() {
	next := p.nH.N + 1
	if p.myN.N+1 > next {
		next = p.myN.N + 1
	}
	p.myN = Ballot{N: next, M: p.me}
}

// Run drives one instance of Paxos to completion, attempting to get
// nodes to agree on v. It returns true iff a majority decided some
// value (which may not be v, if a higher-ballot proposer's earlier
// accepted value was adopted instead — see prepare's old-value rule).
// Only one Run may be in flight on a given node at a time.
func (p *Paxos) Run(ctx context.Context, instance uint64, nodes []string, v string) bool {
	p.mu.Lock()
	if !p.stable {
		p.mu.Unlock()
		logger.Warn("paxos run already in progress", logger.Instance(instance))
		return false
	}
	p.stable = false
	p.setNLocked()
	myN := p.myN
	p.mu.Unlock()

	accepts, adoptedV := p.prepare(ctx, instance, myN, nodes)
	result := false
	if majority(nodes, accepts) {
		if adoptedV == "" {
			adoptedV = v
		}
		acceptedBy := p.accept(ctx, instance, myN, accepts, adoptedV)
		if majority(nodes, acceptedBy) {
			p.decide(ctx, instance, acceptedBy, adoptedV)
			result = true
		} else {
			logger.Debug("paxos no accept majority", logger.Instance(instance))
		}
	} else {
		logger.Debug("paxos no prepare majority", logger.Instance(instance))
	}

	p.mu.Lock()
	p.stable = true
	p.mu.Unlock()
	return result
}

func majority(all, got []string) bool {
	set := make(map[string]struct{}, len(got))
	for _, n := range got {
		set[n] = struct{}{}
	}
	count := 0
	for _, n := range all {
		if _, ok := set[n]; ok {
			count++
		}
	}
	return count >= len(all)/2+1
}

// prepare runs the prepare phase against nodes, returning the subset
// that accepted and the highest-ballot value seen among them, if any.
func (p *Paxos) prepare(ctx context.Context, instance uint64, n Ballot, nodes []string) ([]string, string) {
	var accepts []string
	var maxNa Ballot
	var v string

	args := PrepareArgs{Src: p.me, Instance: instance, N: n}
	for _, addr := range nodes {
		if ctx.Err() != nil {
			break
		}
		conn, err := p.dial.Dial(addr)
		if err != nil {
			logger.Debug("paxos prepare: dial failed", logger.Member(addr), logger.Err(err))
			continue
		}

		var reply PrepareReply
		err = conn.Call(ServiceName+".Prepare", &args, &reply)
		conn.Close()
		if err != nil {
			logger.Debug("paxos prepare: rpc failed", logger.Member(addr), logger.Err(err))
			continue
		}

		switch {
		case reply.OldInstance:
			p.commit(instance, reply.Va)
		case reply.Accept:
			accepts = append(accepts, addr)
			if reply.Na.Greater(maxNa) {
				maxNa = reply.Na
				v = reply.Va
			}
		}
	}
	return accepts, v
}

// accept runs the accept phase against nodes (the prepare-accepters),
// returning the subset that accepted v under ballot n.
func (p *Paxos) accept(ctx context.Context, instance uint64, n Ballot, nodes []string, v string) []string {
	var accepts []string
	args := AcceptArgs{Src: p.me, Instance: instance, N: n, V: v}
	for _, addr := range nodes {
		if ctx.Err() != nil {
			break
		}
		conn, err := p.dial.Dial(addr)
		if err != nil {
			continue
		}
		var reply AcceptReply
		err = conn.Call(ServiceName+".Accept", &args, &reply)
		conn.Close()
		if err != nil {
			continue
		}
		if reply.Accepted {
			accepts = append(accepts, addr)
		}
	}
	return accepts
}

// decide notifies every node that accepted to commit the decision.
func (p *Paxos) decide(ctx context.Context, instance uint64, nodes []string, v string) {
	args := DecideArgs{Src: p.me, Instance: instance, V: v}
	for _, addr := range nodes {
		if ctx.Err() != nil {
			break
		}
		conn, err := p.dial.Dial(addr)
		if err != nil {
			continue
		}
		var reply DecideReply
		_ = conn.Call(ServiceName+".Decide", &args, &reply)
		conn.Close()
	}
	// This node is itself always among the accept-phase accepters
	// (accept() always dials "me" like any other node), so its own
	// commit happens through the loop above via its own Decide RPC
	// handler; no separate local call is needed.
}

// Prepare is the acceptor's preparereq handler.
func (p *Paxos) Prepare(args *PrepareArgs, reply *PrepareReply) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if args.Instance <= p.instanceH {
		reply.OldInstance = true
		reply.Va = p.values[args.Instance]
		return nil
	}
	if args.N.Greater(p.nH) {
		reply.Accept = true
		reply.Na = p.nA
		reply.Va = p.vA
		p.nH = args.N
		if err := p.log.LogHigh(p.nH); err != nil {
			return err
		}
		return nil
	}
	return nil
}

// Accept is the acceptor's acceptreq handler.
func (p *Paxos) Accept(args *AcceptArgs, reply *AcceptReply) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if args.N.GreaterOrEqual(p.nH) {
		reply.Accepted = true
		p.nA = args.N
		p.vA = args.V
		return p.log.LogProp(p.nA, p.vA)
	}
	return nil
}

// Decide is the acceptor's decidereq handler.
func (p *Paxos) Decide(args *DecideArgs, reply *DecideReply) error {
	p.mu.Lock()
	advanced, err := p.commitLocked(args.Instance, args.V)
	p.mu.Unlock()
	reply.Advanced = advanced
	return err
}

// commit is the entry point prepare() uses when told by an acceptor
// that an instance is already decided (the "oldinstance" reply): it
// locally learns that value too.
func (p *Paxos) commit(instance uint64, value string) {
	p.mu.Lock()
	_, _ = p.commitLocked(instance, value)
	p.mu.Unlock()
}

// commitLocked records a decided value for instance if it's new,
// resets the per-instance ballot state, and invokes the commit upcall
// without p.mu held (spec.md §4.2, §5). Called with mu held; returns
// with mu held.
func (p *Paxos) commitLocked(instance uint64, value string) (bool, error) {
	if instance <= p.instanceH {
		return false, nil
	}

	if err := p.log.LogInstance(instance, value); err != nil {
		return false, err
	}
	p.values[instance] = value
	p.instanceH = instance
	p.nH = Ballot{M: p.me}
	p.nA = Ballot{M: p.me}
	p.vA = ""

	if p.onCommit != nil {
		p.mu.Unlock()
		p.onCommit(instance, value)
		p.mu.Lock()
	}
	return true, nil
}
