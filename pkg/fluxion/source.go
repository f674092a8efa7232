package fluxion

import (
	"fmt"

	"github.com/fluxion-dev/fluxion/pkg/result"
)

// Source is a writable root signal: the external input the orchestrator
// changes before starting a propagation round. A source has no parents and
// its level is always 0.
type Source[T any] struct {
	nodeBase

	cell *cell[T]
}

// NewSource creates a root signal holding initial.
func NewSource[T any](initial T, opts ...Option) *Source[T] {
	cfg := buildConfig(opts)

	id := nextID()
	if cfg.name == "" {
		cfg.name = fmt.Sprintf("source.%d", id)
	}

	s := &Source[T]{
		nodeBase: newNodeBase(cfg.name, id),
		cell:     newCell[T](cfg.exec),
	}
	s.cell.store(&snapshot[T]{level: 0, value: result.Ok(initial)})
	s.activate()

	cfg.register(s)
	return s
}

// Kind implements Signal.
func (s *Source[T]) Kind() string { return "source" }

// Level is always 0 for a root source.
func (s *Source[T]) Level() int { return 0 }

// Get returns the current result, recording the read into the active
// capture frame so an enclosing derivation picks this source up as a
// parent.
func (s *Source[T]) Get() result.Result[T] {
	recordRead(s)
	return s.cell.load().value
}

// Peek returns the current result without recording a dependency.
func (s *Source[T]) Peek() result.Result[T] {
	return s.cell.load().value
}

// Set stores a new success value. The write is applied synchronously so a
// propagation round started afterwards observes it. Inside a scheduler
// Batch the source is additionally queued as a root of the batched round.
func (s *Source[T]) Set(v T) {
	s.cell.store(&snapshot[T]{level: 0, value: result.Ok(v)})
	noteSourceWrite(s)
}

// Fail stores a failure result, propagated downstream like any other
// change.
func (s *Source[T]) Fail(err error) {
	s.cell.store(&snapshot[T]{level: 0, value: result.Err[T](err)})
	noteSourceWrite(s)
}

// Ping on a source never recomputes anything: the orchestrator pings the
// root with incoming = {root} to open a round, and the source answers with
// its children.
func (s *Source[T]) Ping(incoming EmitterSet) []Reactor {
	if !s.isActive() {
		return nil
	}
	return s.Children()
}

// ResultString implements Signal.
func (s *Source[T]) ResultString() string {
	return s.cell.load().value.String()
}
