package fluxion

import (
	"sync"

	"github.com/fluxion-dev/fluxion/pkg/result"
)

// WatchNode is a terminal reactor that invokes a callback whenever its
// parent's result changes. It has no children of its own, so it always
// ends propagation. The CLI demo and the inspection server hang off the
// graph through watch nodes.
type WatchNode[T any] struct {
	nodeBase

	parent Readable[T]
	level  int

	fn func(result.Result[T])

	mu   sync.Mutex
	last result.Result[T]
}

// NewWatch creates a watch over parent and delivers the parent's current
// result once, immediately, on the constructing goroutine.
func NewWatch[T any](parent Readable[T], fn func(result.Result[T]), opts ...Option) *WatchNode[T] {
	cfg := buildConfig(opts)

	id := nextID()
	if cfg.name == "" {
		cfg.name = parent.Name() + ".watch"
	}

	w := &WatchNode[T]{
		nodeBase: newNodeBase(cfg.name, id),
		parent:   parent,
		level:    parent.Level() + 1,
		fn:       fn,
		last:     parent.Peek(),
	}
	if reg, ok := parent.(childRegistrar); ok {
		reg.attach(w)
	}
	w.activate()

	cfg.register(w)

	fn(w.last)
	return w
}

// Ping delivers the parent's current result to the callback when it
// differs from the last delivered one. The callback runs on the pinging
// goroutine; like derivations, it should not block.
func (w *WatchNode[T]) Ping(incoming EmitterSet) []Reactor {
	if !w.isActive() {
		return nil
	}

	cur := w.parent.Peek()

	w.mu.Lock()
	if cur.Equal(w.last) {
		w.mu.Unlock()
		return nil
	}
	w.last = cur
	w.mu.Unlock()

	w.fn(cur)
	return nil
}

// Kind implements Signal.
func (w *WatchNode[T]) Kind() string { return "watch" }

// Level is parent.Level()+1, fixed for the node's lifetime.
func (w *WatchNode[T]) Level() int { return w.level }

// ResultString implements Signal, rendering the last delivered result.
func (w *WatchNode[T]) ResultString() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last.String()
}
