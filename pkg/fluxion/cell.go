package fluxion

import (
	"sync"
	"sync/atomic"

	"github.com/fluxion-dev/fluxion/pkg/result"
)

// snapshot is one immutable observation of a node's state: the triple
// (parents, level, result). A new snapshot is built for every write, so a
// reader sees either the pre-write or the post-write triple, never a mix.
type snapshot[T any] struct {
	parents []Emitter
	level   int
	value   result.Result[T]
}

// cell is the per-node, thread-safe holder of the current snapshot.
//
// Reads are a single atomic pointer load. Writes from the same node are
// applied in submission order: enqueue appends to a per-cell FIFO and a
// single drain task on the shared executor applies the queued snapshots one
// by one. No write is lost, torn, or interleaved with another write to the
// same cell.
type cell[T any] struct {
	cur  atomic.Pointer[snapshot[T]]
	exec Executor

	mu       sync.Mutex
	pending  []*snapshot[T]
	draining bool
}

func newCell[T any](exec Executor) *cell[T] {
	if exec == nil {
		exec = SyncExecutor{}
	}
	return &cell[T]{exec: exec}
}

// load returns the current snapshot without blocking.
func (c *cell[T]) load() *snapshot[T] {
	return c.cur.Load()
}

// store applies s synchronously. Used only while the node is not yet
// reachable (construction) and by root sources, whose writes come from a
// single external caller.
func (c *cell[T]) store(s *snapshot[T]) {
	c.cur.Store(s)
}

// enqueue submits s for asynchronous application. Snapshots enqueued on the
// same cell land in enqueue order; enqueue itself never blocks on the
// write landing.
func (c *cell[T]) enqueue(s *snapshot[T]) {
	c.mu.Lock()
	c.pending = append(c.pending, s)
	if c.draining {
		c.mu.Unlock()
		return
	}
	c.draining = true
	c.mu.Unlock()

	c.exec.Submit(c.drain)
}

// drain applies queued snapshots in order until the queue is empty.
// At most one drain runs per cell at a time.
func (c *cell[T]) drain() {
	for {
		c.mu.Lock()
		if len(c.pending) == 0 {
			c.draining = false
			c.mu.Unlock()
			return
		}
		batch := c.pending
		c.pending = nil
		c.mu.Unlock()

		for _, s := range batch {
			c.cur.Store(s)
		}
	}
}
