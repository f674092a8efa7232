package fluxion

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// PingOutcome classifies what a reactor did with a ping.
type PingOutcome int

const (
	// OutcomePropagated means the reactor recomputed and returned
	// children to continue propagation to.
	OutcomePropagated PingOutcome = iota

	// OutcomeAbsorbed means the reactor returned no children: the ping
	// was irrelevant, the node is inactive, the transformed result was
	// unchanged, or the node is terminal.
	OutcomeAbsorbed
)

// RoundStats summarizes one propagation round.
type RoundStats struct {
	Roots      int
	Levels     int
	Pings      int
	Propagated int
	Absorbed   int
	Duration   time.Duration
}

// RoundHooks observes scheduler activity. All fields are optional.
// Hooks run inline on the scheduling goroutine and must not block.
type RoundHooks struct {
	// RoundStart runs before the first ping of a round. It may derive a
	// new context (for example to carry a trace span) which is passed to
	// RoundEnd.
	RoundStart func(ctx context.Context, roots []Reactor) context.Context

	// RoundEnd runs after the round has drained.
	RoundEnd func(ctx context.Context, stats RoundStats)

	// NodePinged runs after each delivered ping.
	NodePinged func(node Reactor, outcome PingOutcome)

	// NodeChanged runs for each node whose change propagated to
	// children this round, roots included.
	NodeChanged func(node Node)
}

// Scheduler is the propagation orchestrator: it owns the execution
// context, decides when a round starts, and batches pings level by level
// across the whole graph.
//
// Within a round, levels drain in ascending order and the nodes of one
// level are pinged concurrently on the scheduler's executor, with no
// ordering guarantee between them. A node sits in at most one pending
// bucket at a time but may be pinged again later in the same round if a
// parent sharing its level propagates after it ran.
type Scheduler struct {
	exec   Executor
	logger *slog.Logger
	hooks  []RoundHooks

	// mu serializes rounds. Nodes of one round still update their cells
	// asynchronously; the next round's pings read whatever has landed.
	mu sync.Mutex
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithSchedulerExecutor sets the executor used for same-level ping
// fan-out. Defaults to SyncExecutor (sequential, deterministic).
func WithSchedulerExecutor(exec Executor) SchedulerOption {
	return func(s *Scheduler) {
		s.exec = exec
	}
}

// WithLogger sets the scheduler's logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// WithHooks appends a set of round hooks. Multiple hook sets (metrics,
// tracing, inspection) may be installed together.
func WithHooks(hooks RoundHooks) SchedulerOption {
	return func(s *Scheduler) {
		s.hooks = append(s.hooks, hooks)
	}
}

// NewScheduler creates a propagation scheduler.
func NewScheduler(opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{}
	for _, opt := range opts {
		opt(s)
	}
	if s.exec == nil {
		s.exec = SyncExecutor{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Propagate runs one full propagation round starting from roots, whose
// external input is assumed to have just changed. The round pings each
// root with incoming = {root}, then recursively pings returned children in
// ascending level order until every change is applied or absorbed.
//
// ctx flows to the hooks only; recomputation is never cancelled mid-round.
func (s *Scheduler) Propagate(ctx context.Context, roots ...Reactor) RoundStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	for _, h := range s.hooks {
		if h.RoundStart != nil {
			ctx = h.RoundStart(ctx, roots)
		}
	}

	// changed accumulates the emitters that changed this round; every
	// ping carries it. It is only mutated between level waves, never
	// while pings are in flight.
	changed := NewEmitterSet()
	for _, r := range roots {
		changed.Add(r)
	}

	// A node sits in at most one pending bucket at a time, but may be
	// re-scheduled after its ping if a later parent propagates to it: a
	// dynamic signal's level can equal its parent's, and re-pinging is
	// how the round converges in that case (conservative over-recompute,
	// never under-recompute).
	pending := make(map[int][]Reactor)
	pendingIDs := make(map[uint64]struct{})
	schedule := func(r Reactor, atLeast int) {
		if _, ok := pendingIDs[r.ID()]; ok {
			return
		}
		pendingIDs[r.ID()] = struct{}{}

		level := r.Level()
		if level < atLeast {
			// The node's level is stale relative to the wave that
			// produced it; never ping it before its producer's wave.
			level = atLeast
		}
		pending[level] = append(pending[level], r)
	}
	for _, r := range roots {
		schedule(r, 0)
	}

	var stats RoundStats
	stats.Roots = len(roots)

	for len(pending) > 0 {
		level := lowestLevel(pending)
		wave := pending[level]
		delete(pending, level)
		for _, r := range wave {
			delete(pendingIDs, r.ID())
		}
		stats.Levels++

		returned := make([][]Reactor, len(wave))
		var wg sync.WaitGroup
		for i, r := range wave {
			i, r := i, r
			wg.Add(1)
			s.exec.Submit(func() {
				defer wg.Done()
				returned[i] = r.Ping(changed)
			})
		}
		wg.Wait()

		for i, r := range wave {
			children := returned[i]
			stats.Pings++

			outcome := OutcomeAbsorbed
			if len(children) > 0 {
				outcome = OutcomePropagated
				stats.Propagated++
				changed.Add(r)
				for _, child := range children {
					schedule(child, level+1)
				}
			} else {
				stats.Absorbed++
			}

			for _, h := range s.hooks {
				if h.NodePinged != nil {
					h.NodePinged(r, outcome)
				}
				if outcome == OutcomePropagated && h.NodeChanged != nil {
					h.NodeChanged(r)
				}
			}
		}
	}

	stats.Duration = time.Since(start)
	s.logger.Debug("propagation round complete",
		"roots", stats.Roots,
		"levels", stats.Levels,
		"pings", stats.Pings,
		"propagated", stats.Propagated,
		"absorbed", stats.Absorbed,
		"duration", stats.Duration,
	)

	for _, h := range s.hooks {
		if h.RoundEnd != nil {
			h.RoundEnd(ctx, stats)
		}
	}
	return stats
}

// Batch runs fn, collecting every Source write made inside it, then runs a
// single propagation round over all written roots. Nested batches fold
// into the outermost one; only it starts a round.
func (s *Scheduler) Batch(ctx context.Context, fn func()) RoundStats {
	f := newBatchFrame()
	prev := setBatch(f)

	func() {
		defer setBatch(prev)
		fn()
	}()

	if prev != nil {
		prev.merge(f)
		return RoundStats{}
	}
	if len(f.roots) == 0 {
		return RoundStats{}
	}
	return s.Propagate(ctx, f.roots...)
}

func lowestLevel(pending map[int][]Reactor) int {
	lowest := -1
	for level := range pending {
		if lowest == -1 || level < lowest {
			lowest = level
		}
	}
	return lowest
}
