package fluxion

import (
	"fmt"
	"sync/atomic"

	"github.com/fluxion-dev/fluxion/pkg/result"
)

// Computed is a dynamically-dependent signal: both its value and its
// parent set are recomputed by re-running the derivation closure under a
// fresh capture frame. The parent set is whatever the closure actually
// read, so conditional branches shrink or grow the dependencies between
// recalculations.
//
// A computed recomputes on every relevant ping and re-stores its triple
// unconditionally; value-level deduplication is the filter node's job.
type Computed[T any] struct {
	nodeBase

	// derive produces the value. An error return or a panic becomes a
	// failure result; derivations are expected to be side-effect free so
	// redundant recomputation under concurrent propagation is harmless.
	derive func() (T, error)

	cell *cell[T]

	// derivations counts closure invocations, observable by tests of the
	// relevance gate.
	derivations atomic.Int64
}

// NewComputed creates a dynamic signal from a zero-argument derivation.
// The derivation runs once, synchronously, to establish the first result,
// level, and parent set before the node is reachable by any other node.
// Construction never fails: a derivation error is stored as the initial
// failure result, with the parents read before the error as the parent
// set.
func NewComputed[T any](derive func() (T, error), opts ...Option) *Computed[T] {
	cfg := buildConfig(opts)

	id := nextID()
	if cfg.name == "" {
		cfg.name = fmt.Sprintf("computed.%d", id)
	}

	c := &Computed[T]{
		nodeBase: newNodeBase(cfg.name, id),
		derive:   derive,
		cell:     newCell[T](cfg.exec),
	}

	res, parents := c.fullCalc()
	c.cell.store(&snapshot[T]{
		parents: parents,
		level:   maxParentLevel(parents),
		value:   res,
	})
	for _, p := range parents {
		if reg, ok := p.(childRegistrar); ok {
			reg.attach(c)
		}
	}
	c.activate()

	cfg.register(c)
	return c
}

// fullCalc installs a fresh capture frame, evaluates the derivation, and
// returns the result together with the parents read during evaluation. An
// error or panic raised by the derivation is wrapped as a failure instead
// of escaping; the parents recorded up to that point are kept.
func (c *Computed[T]) fullCalc() (res result.Result[T], parents []Emitter) {
	f := newFrame()

	withFrame(f, func() {
		defer func() {
			if r := recover(); r != nil {
				res = result.Err[T](fmt.Errorf("fluxion: derivation panic: %v", r))
			}
		}()

		c.derivations.Add(1)
		v, err := c.derive()
		if err != nil {
			res = result.Err[T](err)
			return
		}
		res = result.Ok(v)
	})

	parents = f.reads
	// A derivation reading its own node must not become a self-edge.
	for i, p := range parents {
		if p.ID() == c.id {
			parents = append(parents[:i], parents[i+1:]...)
			break
		}
	}
	return res, parents
}

// Ping recomputes if the ping is relevant: the node is active and at least
// one emitter this node currently depends on is among those that changed.
// An irrelevant ping is a guaranteed no-op returning nil; this is what
// lets dynamically-shrinking dependencies stop reacting to former parents.
//
// On a relevant ping the new level is max(current, max new parent level):
// monotonic leveling only grows to accommodate dependencies discovered
// during this recomputation, never re-ordering already-scheduled rounds.
// The new triple is stored unconditionally through the serialized
// asynchronous write path, and the node's current children are returned.
func (c *Computed[T]) Ping(incoming EmitterSet) []Reactor {
	if !c.isActive() {
		return nil
	}

	prev := c.cell.load()
	if !intersects(incoming, prev.parents) {
		return nil
	}

	res, parents := c.fullCalc()

	level := prev.level
	if pl := maxParentLevel(parents); pl > level {
		level = pl
	}

	c.syncParentEdges(prev.parents, parents)
	c.cell.enqueue(&snapshot[T]{
		parents: parents,
		level:   level,
		value:   res,
	})

	return c.Children()
}

// syncParentEdges re-registers this node with its new parents and
// deregisters it from dropped ones. Both operations are idempotent, so a
// parent kept across recomputations is untouched.
func (c *Computed[T]) syncParentEdges(old, next []Emitter) {
	kept := make(map[uint64]struct{}, len(next))
	for _, p := range next {
		kept[p.ID()] = struct{}{}
		if reg, ok := p.(childRegistrar); ok {
			reg.attach(c)
		}
	}
	for _, p := range old {
		if _, ok := kept[p.ID()]; ok {
			continue
		}
		if reg, ok := p.(childRegistrar); ok {
			reg.detach(c)
		}
	}
}

// Kind implements Signal.
func (c *Computed[T]) Kind() string { return "computed" }

// Level returns the node's current topological rank:
// max(0, max parent level), grown monotonically across recomputations.
func (c *Computed[T]) Level() int {
	return c.cell.load().level
}

// Get returns the current result, recording the read so a computed can
// itself be a parent of another derivation.
func (c *Computed[T]) Get() result.Result[T] {
	recordRead(c)
	return c.cell.load().value
}

// Peek returns the current result without recording a dependency.
func (c *Computed[T]) Peek() result.Result[T] {
	return c.cell.load().value
}

// Parents returns the signals read during the most recent evaluation, in
// encounter order.
func (c *Computed[T]) Parents() []Emitter {
	parents := c.cell.load().parents
	if len(parents) == 0 {
		return nil
	}
	out := make([]Emitter, len(parents))
	copy(out, parents)
	return out
}

// Derivations returns how many times the derivation closure has run.
func (c *Computed[T]) Derivations() int64 {
	return c.derivations.Load()
}

// ResultString implements Signal.
func (c *Computed[T]) ResultString() string {
	return c.cell.load().value.String()
}

// maxParentLevel returns max(0, max parent level).
func maxParentLevel(parents []Emitter) int {
	level := 0
	for _, p := range parents {
		if l := p.Level(); l > level {
			level = l
		}
	}
	return level
}
