package lockservice

import (
	"context"
	"strings"
	"sync"

	"github.com/coldfront/dfs/internal/logger"
	"github.com/coldfront/dfs/pkg/paxos"
)

// View is the ordered list of node addresses comprising the current
// agreed lock-service membership (spec.md §3, §4.2).
type View []string

// EncodeView renders a View as the flat string Paxos instances decide
// on (a Paxos value is a plain string; §4.2 says nothing about its
// contents beyond "encodes the new member list").
func EncodeView(v View) string {
	return strings.Join(v, ",")
}

// DecodeView parses EncodeView's format. An empty string decodes to
// an empty View rather than a one-element slice.
func DecodeView(s string) View {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// ViewManager owns the paxos_commit upcall capability for lock-service
// reconfiguration (spec.md §9's design note: "express as a capability
// parameter, not inheritance, so the proposer/acceptor own no strong
// reference back to the caller"). It tracks the currently agreed View
// and drives new Paxos instances to propose the next one.
type ViewManager struct {
	px *paxos.Paxos

	mu           sync.Mutex
	current      View
	nextInstance uint64
}

// NewViewManager wraps px, which must have been constructed with
// vm.OnCommit as its CommitFunc, and seeds the manager with the view
// already decided for instance 1 (px's bootstrap value, if any).
func NewViewManager(px *paxos.Paxos, initial View) *ViewManager {
	vm := &ViewManager{px: px, current: initial, nextInstance: 1}
	if v, ok := px.Value(1); ok {
		vm.current = DecodeView(v)
		vm.nextInstance = 2
	}
	return vm
}

// Current returns the last view this node has learned was decided.
func (vm *ViewManager) Current() View {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return append(View(nil), vm.current...)
}

// OnCommit is installed as the Paxos node's CommitFunc; it is called
// without the Paxos mutex held (spec.md §4.2) so it is free to take
// its own lock here.
func (vm *ViewManager) OnCommit(instance uint64, value string) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if instance < vm.nextInstance {
		return
	}
	vm.current = DecodeView(value)
	vm.nextInstance = instance + 1
	logger.Info("view changed", logger.Instance(instance))
}

// Reconfigure proposes newView as the next agreed membership, running
// one Paxos instance over members (the roster to prepare/accept/decide
// against, per spec.md §4.2 — typically the union of the old and new
// view). It returns whether a majority decided some value; the
// decided value may differ from newView if a higher-ballot proposer's
// already-accepted value won instead (OnCommit reflects whatever was
// actually agreed).
func (vm *ViewManager) Reconfigure(ctx context.Context, members []string, newView View) bool {
	vm.mu.Lock()
	instance := vm.nextInstance
	vm.mu.Unlock()

	return vm.px.Run(ctx, instance, members, EncodeView(newView))
}
