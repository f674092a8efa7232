package fluxion

import (
	"runtime"
	"sync"
)

// Executor is the shared execution facility used for deferred work:
// asynchronous state-cell writes and same-level ping fan-out.
type Executor interface {
	// Submit schedules task for execution. Submit must not block
	// indefinitely on a full queue; tasks submitted from inside other
	// tasks must remain runnable.
	Submit(task func())
}

// SyncExecutor runs every task inline on the submitting goroutine.
// It is the default for standalone node construction and for tests, where
// deterministic, immediately-visible writes are wanted.
type SyncExecutor struct{}

// Submit runs task immediately.
func (SyncExecutor) Submit(task func()) {
	task()
}

// PoolExecutor runs tasks on a fixed set of worker goroutines over an
// unbounded queue, so a task submitted from inside another task can never
// deadlock the pool.
type PoolExecutor struct {
	mu       sync.Mutex
	cond     *sync.Cond
	queue    []func()
	inflight int
	closed   bool

	workers sync.WaitGroup
}

// NewPoolExecutor starts workers goroutines servicing the queue.
// A non-positive workers defaults to GOMAXPROCS.
func NewPoolExecutor(workers int) *PoolExecutor {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	p := &PoolExecutor{}
	p.cond = sync.NewCond(&p.mu)

	for i := 0; i < workers; i++ {
		p.workers.Add(1)
		go p.worker()
	}
	return p
}

// Submit enqueues task. A task submitted after Close has completed its
// drain runs inline on the submitting goroutine, so a straggling state
// write still lands instead of stranding in a dead queue.
func (p *PoolExecutor) Submit(task func()) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		task()
		return
	}
	p.queue = append(p.queue, task)
	p.mu.Unlock()

	p.cond.Broadcast()
}

// Close drains the pool and stops it: it blocks until the queue is empty
// and no task is in flight (tasks submitted by running tasks included),
// then shuts the workers down.
func (p *PoolExecutor) Close() {
	p.mu.Lock()
	for len(p.queue) > 0 || p.inflight > 0 {
		p.cond.Wait()
	}
	p.closed = true
	p.mu.Unlock()

	p.cond.Broadcast()
	p.workers.Wait()
}

func (p *PoolExecutor) worker() {
	defer p.workers.Done()

	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.closed {
			p.cond.Wait()
		}
		if len(p.queue) == 0 && p.closed {
			p.mu.Unlock()
			return
		}
		task := p.queue[0]
		p.queue = p.queue[1:]
		p.inflight++
		p.mu.Unlock()

		task()

		p.mu.Lock()
		p.inflight--
		idle := p.inflight == 0 && len(p.queue) == 0
		p.mu.Unlock()
		if idle {
			// Wake a Close waiting for the drain to finish.
			p.cond.Broadcast()
		}
	}
}
