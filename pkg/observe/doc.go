// Package observe provides observability hooks for the fluxion scheduler:
// Prometheus metrics and OpenTelemetry tracing for propagation rounds.
//
// Both constructors return a fluxion.RoundHooks value to install on a
// scheduler:
//
//	sched := fluxion.NewScheduler(
//	    fluxion.WithHooks(observe.Metrics()),
//	    fluxion.WithHooks(observe.Tracing()),
//	)
//
// Metrics must be registered against a given registry at most once;
// a second registration on the same registry panics, as is usual with
// promauto.
package observe
