package fluxion

import (
	"fmt"

	"github.com/fluxion-dev/fluxion/pkg/result"
)

// MapNode is a statically-dependent transform over one fixed parent. It
// always recomputes on a ping and always propagates: a map node has
// exactly one parent, so any ping delivered along an existing edge is
// relevant, and deduplication is deliberately left to FilterNode.
type MapNode[T, U any] struct {
	nodeBase

	parent Readable[T]
	level  int

	transform func(result.Result[T]) result.Result[U]

	cell *cell[U]
}

// NewMap creates a map node over parent. The transform is applied to the
// parent's current result at construction and on every ping; transform
// authors decide whether to pass a failure through, substitute a default,
// or produce a different failure.
func NewMap[T, U any](parent Readable[T], transform func(result.Result[T]) result.Result[U], opts ...Option) *MapNode[T, U] {
	cfg := buildConfig(opts)

	id := nextID()
	if cfg.name == "" {
		cfg.name = parent.Name() + ".map"
	}

	m := &MapNode[T, U]{
		nodeBase:  newNodeBase(cfg.name, id),
		parent:    parent,
		level:     parent.Level() + 1,
		transform: transform,
		cell:      newCell[U](cfg.exec),
	}
	m.cell.store(&snapshot[U]{
		parents: []Emitter{parent},
		level:   m.level,
		value:   applyTransform(transform, parent.Peek()),
	})
	if reg, ok := parent.(childRegistrar); ok {
		reg.attach(m)
	}
	m.activate()

	cfg.register(m)
	return m
}

// Ping re-applies the transform to the parent's current result, not to
// the incoming set; level-ordered propagation guarantees the parent has
// already been updated by the time this node is pinged. The new result is
// stored unconditionally and the node's children are returned.
func (m *MapNode[T, U]) Ping(incoming EmitterSet) []Reactor {
	if !m.isActive() {
		return nil
	}

	m.cell.enqueue(&snapshot[U]{
		parents: []Emitter{m.parent},
		level:   m.level,
		value:   applyTransform(m.transform, m.parent.Peek()),
	})

	return m.Children()
}

// Kind implements Signal.
func (m *MapNode[T, U]) Kind() string { return "map" }

// Level is parent.Level()+1, fixed for the node's lifetime.
func (m *MapNode[T, U]) Level() int { return m.level }

// Get returns the current result, recording the read into the active
// capture frame.
func (m *MapNode[T, U]) Get() result.Result[U] {
	recordRead(m)
	return m.cell.load().value
}

// Peek returns the current result without recording a dependency.
func (m *MapNode[T, U]) Peek() result.Result[U] {
	return m.cell.load().value
}

// ResultString implements Signal.
func (m *MapNode[T, U]) ResultString() string {
	return m.cell.load().value.String()
}

// FilterNode is a statically-dependent dedup/filter over one fixed parent.
// Its transform sees both the previously stored result and the parent's
// current one, which lets it express policies like "keep previous unless
// the new value satisfies P". A ping whose transformed result equals the
// stored one is absorbed: nothing is stored and nothing propagates.
type FilterNode[T any] struct {
	nodeBase

	parent Readable[T]
	level  int

	transform func(prev, cur result.Result[T]) result.Result[T]

	cell *cell[T]
}

// NewFilter creates a filter node over parent. At construction the
// transform runs with prev = Err(result.ErrNoPrior), so the transform can
// tell "no value yet" apart from a real upstream failure.
func NewFilter[T any](parent Readable[T], transform func(prev, cur result.Result[T]) result.Result[T], opts ...Option) *FilterNode[T] {
	cfg := buildConfig(opts)

	id := nextID()
	if cfg.name == "" {
		cfg.name = parent.Name() + ".filter"
	}

	f := &FilterNode[T]{
		nodeBase:  newNodeBase(cfg.name, id),
		parent:    parent,
		level:     parent.Level() + 1,
		transform: transform,
		cell:      newCell[T](cfg.exec),
	}
	f.cell.store(&snapshot[T]{
		parents: []Emitter{parent},
		level:   f.level,
		value:   applyTransform2(transform, result.Err[T](result.ErrNoPrior), parent.Peek()),
	})
	if reg, ok := parent.(childRegistrar); ok {
		reg.attach(f)
	}
	f.activate()

	cfg.register(f)
	return f
}

// NewDedup creates a filter node that propagates only when the parent's
// result differs structurally from the previously stored one.
func NewDedup[T any](parent Readable[T], opts ...Option) *FilterNode[T] {
	if len(opts) == 0 {
		opts = []Option{WithName(parent.Name() + ".dedup")}
	}
	return NewFilter(parent, func(prev, cur result.Result[T]) result.Result[T] {
		return cur
	}, opts...)
}

// Ping computes transform(stored, parent's current result). If the outcome
// equals the stored result the change is absorbed here instead of
// cascading; otherwise the new result is stored and the node's children
// are returned. A repeated identical failure is absorbed like a repeated
// identical success.
func (f *FilterNode[T]) Ping(incoming EmitterSet) []Reactor {
	if !f.isActive() {
		return nil
	}

	stored := f.cell.load()
	next := applyTransform2(f.transform, stored.value, f.parent.Peek())
	if next.Equal(stored.value) {
		return nil
	}

	f.cell.enqueue(&snapshot[T]{
		parents: []Emitter{f.parent},
		level:   f.level,
		value:   next,
	})

	return f.Children()
}

// Kind implements Signal.
func (f *FilterNode[T]) Kind() string { return "filter" }

// Level is parent.Level()+1, fixed for the node's lifetime.
func (f *FilterNode[T]) Level() int { return f.level }

// Get returns the current result, recording the read into the active
// capture frame.
func (f *FilterNode[T]) Get() result.Result[T] {
	recordRead(f)
	return f.cell.load().value
}

// Peek returns the current result without recording a dependency.
func (f *FilterNode[T]) Peek() result.Result[T] {
	return f.cell.load().value
}

// ResultString implements Signal.
func (f *FilterNode[T]) ResultString() string {
	return f.cell.load().value.String()
}

// applyTransform runs a one-argument transform, catching a panic as a
// failure result so transform errors never escape a ping.
func applyTransform[T, U any](fn func(result.Result[T]) result.Result[U], in result.Result[T]) (out result.Result[U]) {
	defer func() {
		if r := recover(); r != nil {
			out = result.Err[U](fmt.Errorf("fluxion: transform panic: %v", r))
		}
	}()
	return fn(in)
}

// applyTransform2 runs a two-argument transform with the same panic
// containment.
func applyTransform2[T any](fn func(prev, cur result.Result[T]) result.Result[T], prev, cur result.Result[T]) (out result.Result[T]) {
	defer func() {
		if r := recover(); r != nil {
			out = result.Err[T](fmt.Errorf("fluxion: transform panic: %v", r))
		}
	}()
	return fn(prev, cur)
}
