package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/fluxion-dev/fluxion/pkg/fluxion"
	"github.com/fluxion-dev/fluxion/pkg/inspect"
	"github.com/fluxion-dev/fluxion/pkg/observe"
	"github.com/fluxion-dev/fluxion/pkg/result"
)

func demoCmd() *cobra.Command {
	var (
		inspectAddr string
		workers     int
		interval    time.Duration
		rounds      int
	)

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run a small reactive temperature graph",
		Long: `Build a small dataflow graph (a temperature source, a unit-selection
source, a dynamically-dependent display computed, a rounding map, and a
deduplicating alert filter), then push a scripted series of updates
through it, one propagation round per update.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(cmd.Context(), inspectAddr, workers, interval, rounds)
		},
	}

	cmd.Flags().StringVar(&inspectAddr, "inspect", "", "Serve the graph inspector on this address (e.g. :7878)")
	cmd.Flags().IntVar(&workers, "workers", 0, "Executor worker count (0 = synchronous)")
	cmd.Flags().DurationVar(&interval, "interval", 300*time.Millisecond, "Delay between updates")
	cmd.Flags().IntVar(&rounds, "rounds", 12, "Number of updates to push")

	return cmd
}

func runDemo(ctx context.Context, inspectAddr string, workers int, interval time.Duration, rounds int) error {
	logger := slog.Default()
	registry := fluxion.NewRegistry()

	// The pool parallelizes same-level ping fan-out; cell writes stay
	// synchronous (the default) so every wave reads fully-landed state.
	var exec fluxion.Executor = fluxion.SyncExecutor{}
	if workers > 0 {
		pool := fluxion.NewPoolExecutor(workers)
		defer pool.Close()
		exec = pool
	}
	opts := []fluxion.Option{
		fluxion.WithRegistry(registry),
	}

	celsius := fluxion.NewSource(18.0, append(opts, fluxion.WithName("celsius"))...)
	unit := fluxion.NewSource("C", append(opts, fluxion.WithName("unit"))...)

	// Re-derives its dependency set each round: reads celsius only when
	// the selected unit needs it converted.
	display := fluxion.NewComputed(func() (string, error) {
		u, err := unit.Get().Value()
		if err != nil {
			return "", err
		}
		c, err := celsius.Get().Value()
		if err != nil {
			return "", err
		}
		if u == "F" {
			return fmt.Sprintf("%.1f°F", c*9/5+32), nil
		}
		return fmt.Sprintf("%.1f°C", c), nil
	}, append(opts, fluxion.WithName("display"))...)

	rounded := fluxion.NewMap(celsius, func(in result.Result[float64]) result.Result[int] {
		v, err := in.Value()
		if err != nil {
			return result.Err[int](err)
		}
		return result.Ok(int(v + 0.5))
	}, append(opts, fluxion.WithName("celsius.rounded"))...)

	// Propagates only when the rounded degree actually changes.
	alerts := fluxion.NewDedup(rounded, append(opts, fluxion.WithName("celsius.alerts"))...)

	fluxion.NewWatch(display, func(r result.Result[string]) {
		logger.Info("display", "value", r.String())
	}, opts...)
	fluxion.NewWatch(alerts, func(r result.Result[int]) {
		logger.Info("alert", "degrees", r.String())
	}, opts...)

	schedOpts := []fluxion.SchedulerOption{
		fluxion.WithSchedulerExecutor(exec),
		fluxion.WithHooks(observe.Metrics()),
	}
	if inspectAddr != "" {
		srv := inspect.New(registry)
		schedOpts = append(schedOpts, fluxion.WithHooks(srv.Hooks()))
		go func() {
			if err := srv.ListenAndServe(inspectAddr); err != nil {
				logger.Error("inspector failed", "error", err)
			}
		}()
	}
	sched := fluxion.NewScheduler(schedOpts...)

	temps := []float64{18.2, 18.4, 19.1, 21.7, 21.9, 24.3}
	for i := 0; i < rounds; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}

		if i%4 == 3 {
			// Flip the display unit; celsius is untouched this round.
			u, _ := unit.Peek().Value()
			if u == "C" {
				unit.Set("F")
			} else {
				unit.Set("C")
			}
			stats := sched.Propagate(ctx, unit)
			logger.Info("round", "root", "unit", "pings", stats.Pings, "absorbed", stats.Absorbed)
			continue
		}

		celsius.Set(temps[i%len(temps)])
		stats := sched.Propagate(ctx, celsius)
		logger.Info("round", "root", "celsius", "pings", stats.Pings, "absorbed", stats.Absorbed)
	}

	return nil
}
