// Package fluxion provides a minimal reactive dataflow engine: a graph of
// computed values that automatically recompute when their inputs change,
// while avoiding redundant or inconsistent recomputation.
//
// # Core Types
//
// Source[T] is a writable root value:
//
//	temp := fluxion.NewSource(20.0)
//	temp.Set(21.5)
//
// Computed[T] re-derives its value and its dependency set by re-running a
// closure; every signal read during the closure becomes a parent:
//
//	label := fluxion.NewComputed(func() (string, error) {
//	    v, err := temp.Get().Value()
//	    if err != nil {
//	        return "", err
//	    }
//	    return fmt.Sprintf("%.1f°C", v), nil
//	})
//
// MapNode and FilterNode are statically-dependent wrappers over one parent:
// a map always recomputes and always propagates, a filter absorbs changes
// whose transformed result equals the previously stored one.
//
// # Propagation
//
// Every node carries a level (topological rank). The Scheduler delivers
// pings level by level, so a node is never visited before its dependencies
// have stabilized for the round:
//
//	sched := fluxion.NewScheduler()
//	temp.Set(25.0)
//	sched.Propagate(ctx, temp)
//
// Nodes at the same level may be pinged concurrently; correctness must not
// depend on their relative order.
//
// # Thread Safety
//
// Each node's (parents, level, result) triple sits behind an atomic
// snapshot with serialized writes, so readers never observe a partial
// update. The dependency-capture context is per-goroutine; concurrent
// evaluations on different goroutines never share a capture frame.
package fluxion
