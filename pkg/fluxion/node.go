package fluxion

import (
	"sync"
	"sync/atomic"

	"github.com/fluxion-dev/fluxion/pkg/result"
)

// Node is the identity every graph participant carries for its lifetime.
type Node interface {
	// ID returns a unique identifier, stable for the node's lifetime.
	// Used for deduplication in ping sets and child registries.
	ID() uint64

	// Name returns a human-readable name. Diagnostic only.
	Name() string

	// Level returns the node's topological rank. Parents always have a
	// level less than or equal to their dependents; the scheduler uses
	// levels to order propagation and avoid glitches.
	Level() int
}

// Emitter is the capability of being a source of "something changed"
// notifications. Its identity is used as a token in the incoming set
// passed to Ping.
type Emitter interface {
	Node
}

// Reactor is the capability of receiving a ping and possibly recomputing.
type Reactor interface {
	Node

	// Ping notifies the reactor that the emitters in incoming may have
	// changed this round. It returns the reactor's children for the
	// scheduler to ping next, or nil if the change was absorbed.
	Ping(incoming EmitterSet) []Reactor
}

// Signal is the read-facing capability every node exposes to the scheduler
// and to diagnostics such as the inspection server.
type Signal interface {
	Node

	// Kind identifies the node type ("source", "computed", "map",
	// "filter", "watch"). Diagnostic only.
	Kind() string

	// Children returns a consistent snapshot of the nodes registered to
	// receive pings when this node changes.
	Children() []Reactor

	// ResultString renders the node's current result for diagnostics.
	ResultString() string

	// Deactivate marks the node inactive. An inactive node stops
	// reacting to pings but remains a valid read target for anything
	// still holding a reference to it. Deactivation is terminal.
	Deactivate()
}

// Readable is any node whose current Result can be read. Reading via Get
// during a computed derivation records the node as a parent of that
// derivation; Peek never records.
type Readable[T any] interface {
	Emitter

	Get() result.Result[T]
	Peek() result.Result[T]
}

// EmitterSet is an identity set of emitters, keyed by node ID. It is the
// token set carried by a ping: the emitters that changed this round.
type EmitterSet map[uint64]struct{}

// NewEmitterSet returns a set containing the given emitters.
func NewEmitterSet(emitters ...Emitter) EmitterSet {
	s := make(EmitterSet, len(emitters))
	for _, e := range emitters {
		s.Add(e)
	}
	return s
}

// Add inserts an emitter into the set.
func (s EmitterSet) Add(e Emitter) {
	s[e.ID()] = struct{}{}
}

// Has reports whether the set contains the emitter.
func (s EmitterSet) Has(e Emitter) bool {
	_, ok := s[e.ID()]
	return ok
}

// Len returns the number of emitters in the set.
func (s EmitterSet) Len() int {
	return len(s)
}

// intersects reports whether any of parents is present in incoming.
func intersects(incoming EmitterSet, parents []Emitter) bool {
	for _, p := range parents {
		if incoming.Has(p) {
			return true
		}
	}
	return false
}

// childRegistrar is the graph-membership capability a parent exposes so
// children can register and deregister themselves. Registration is
// idempotent, which lets a dynamic signal re-sync its parent edges after
// every recomputation.
type childRegistrar interface {
	attach(r Reactor)
	detach(r Reactor)
}

// nodeBase provides identity, child registration, and the active flag
// shared by all node types. It is embedded in every concrete node.
type nodeBase struct {
	id   uint64
	name string

	// children are the reactors registered to receive pings when this
	// node changes.
	children []Reactor

	// childMu protects the children slice.
	childMu sync.RWMutex

	// active transitions Uninitialized -> Active on construction and
	// Active -> Inactive on Deactivate. Inactive is terminal.
	active atomic.Bool
}

func newNodeBase(name string, id uint64) nodeBase {
	return nodeBase{id: id, name: name}
}

// ID returns the unique identifier for this node.
func (b *nodeBase) ID() uint64 {
	return b.id
}

// Name returns the node's diagnostic name.
func (b *nodeBase) Name() string {
	return b.name
}

// attach adds a reactor to this node's children.
// Deduplicates by node ID to keep re-registration idempotent.
func (b *nodeBase) attach(r Reactor) {
	if r == nil {
		return
	}

	b.childMu.Lock()
	defer b.childMu.Unlock()

	rid := r.ID()
	for _, existing := range b.children {
		if existing.ID() == rid {
			return
		}
	}

	b.children = append(b.children, r)
}

// detach removes a reactor from this node's children.
func (b *nodeBase) detach(r Reactor) {
	if r == nil {
		return
	}

	b.childMu.Lock()
	defer b.childMu.Unlock()

	rid := r.ID()
	for i, existing := range b.children {
		if existing.ID() == rid {
			// Remove by swapping with last element (order doesn't matter)
			b.children[i] = b.children[len(b.children)-1]
			b.children = b.children[:len(b.children)-1]
			return
		}
	}
}

// Children returns a consistent snapshot of this node's children.
// Uses copy-before-read so callers never observe a concurrent append.
func (b *nodeBase) Children() []Reactor {
	b.childMu.RLock()
	defer b.childMu.RUnlock()

	if len(b.children) == 0 {
		return nil
	}
	out := make([]Reactor, len(b.children))
	copy(out, b.children)
	return out
}

// activate marks construction complete. Before this the node is not
// reachable by any other node.
func (b *nodeBase) activate() {
	b.active.Store(true)
}

// Deactivate marks the node inactive. Pings on an inactive node are no-ops
// returning nil; reads remain valid.
func (b *nodeBase) Deactivate() {
	b.active.Store(false)
}

// isActive reports whether the node reacts to pings.
func (b *nodeBase) isActive() bool {
	return b.active.Load()
}
