package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fluxion-dev/fluxion/pkg/fluxion"
	"github.com/fluxion-dev/fluxion/pkg/result"
)

func benchCmd() *cobra.Command {
	var (
		depth   int
		fanout  int
		rounds  int
		workers int
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure propagation throughput",
		Long: `Build a layered graph (one source feeding 'fanout' map chains of
'depth' nodes each) and drive repeated propagation rounds through it,
reporting rounds/sec and pings/sec.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBench(cmd.Context(), depth, fanout, rounds, workers)
		},
	}

	cmd.Flags().IntVar(&depth, "depth", 32, "Chain depth per branch")
	cmd.Flags().IntVar(&fanout, "fanout", 16, "Number of parallel branches")
	cmd.Flags().IntVar(&rounds, "rounds", 1000, "Propagation rounds to run")
	cmd.Flags().IntVar(&workers, "workers", 0, "Executor worker count (0 = synchronous)")

	return cmd
}

func runBench(ctx context.Context, depth, fanout, rounds, workers int) error {
	// The pool parallelizes same-level ping fan-out; cell writes stay
	// synchronous (the default) so every wave reads fully-landed state.
	var exec fluxion.Executor = fluxion.SyncExecutor{}
	if workers > 0 {
		pool := fluxion.NewPoolExecutor(workers)
		defer pool.Close()
		exec = pool
	}

	root := fluxion.NewSource(0, fluxion.WithName("bench.root"))

	increment := func(in result.Result[int]) result.Result[int] {
		v, err := in.Value()
		if err != nil {
			return in
		}
		return result.Ok(v + 1)
	}

	var leaves []fluxion.Readable[int]
	for b := 0; b < fanout; b++ {
		var node fluxion.Readable[int] = root
		for d := 0; d < depth; d++ {
			node = fluxion.NewMap(node, increment)
		}
		leaves = append(leaves, node)
	}

	sched := fluxion.NewScheduler(fluxion.WithSchedulerExecutor(exec))

	start := time.Now()
	var pings int
	for i := 0; i < rounds; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		root.Set(i + 1)
		stats := sched.Propagate(ctx, root)
		pings += stats.Pings
	}
	elapsed := time.Since(start)

	// Sanity: every leaf must have seen the last write.
	for _, leaf := range leaves {
		v, err := leaf.Peek().Value()
		if err != nil {
			return fmt.Errorf("bench: leaf failed: %w", err)
		}
		if v != rounds+depth {
			return fmt.Errorf("bench: leaf out of sync: got %d, want %d", v, rounds+depth)
		}
	}

	fmt.Printf("graph:      %d nodes (%d branches × %d deep)\n", 1+fanout*depth, fanout, depth)
	fmt.Printf("rounds:     %d in %s\n", rounds, elapsed.Round(time.Millisecond))
	fmt.Printf("rounds/sec: %.0f\n", float64(rounds)/elapsed.Seconds())
	fmt.Printf("pings/sec:  %.0f\n", float64(pings)/elapsed.Seconds())
	return nil
}
