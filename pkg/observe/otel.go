package observe

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fluxion-dev/fluxion/pkg/fluxion"
)

// Default tracer name for fluxion applications.
const defaultTracerName = "fluxion"

// TraceConfig configures the OpenTelemetry round hooks.
type TraceConfig struct {
	// TracerName is the name of the tracer (default: "fluxion").
	TracerName string

	// IncludeRoots includes the root node names in the span.
	// Enabled by default.
	IncludeRoots bool

	// AttributeExtractor extracts custom attributes for each round span,
	// called at round start with the round's roots.
	AttributeExtractor func(roots []fluxion.Reactor) []attribute.KeyValue

	// tracer is the resolved tracer instance.
	tracer trace.Tracer
}

// TraceOption configures the OpenTelemetry round hooks.
type TraceOption func(*TraceConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) TraceOption {
	return func(c *TraceConfig) {
		c.TracerName = name
	}
}

// WithIncludeRoots enables/disables including root names in spans.
func WithIncludeRoots(include bool) TraceOption {
	return func(c *TraceConfig) {
		c.IncludeRoots = include
	}
}

// WithAttributeExtractor sets a custom attribute extractor.
func WithAttributeExtractor(extractor func(roots []fluxion.Reactor) []attribute.KeyValue) TraceOption {
	return func(c *TraceConfig) {
		c.AttributeExtractor = extractor
	}
}

func defaultTraceConfig() TraceConfig {
	return TraceConfig{
		TracerName:   defaultTracerName,
		IncludeRoots: true,
	}
}

// Tracing returns round hooks that wrap every propagation round in an
// OpenTelemetry span named "fluxion.round". The span carries the root
// names, and at round end the ping, propagation, and absorption counts.
func Tracing(opts ...TraceOption) fluxion.RoundHooks {
	config := defaultTraceConfig()
	for _, opt := range opts {
		opt(&config)
	}
	config.tracer = otel.Tracer(config.TracerName)

	return fluxion.RoundHooks{
		RoundStart: func(ctx context.Context, roots []fluxion.Reactor) context.Context {
			attrs := []attribute.KeyValue{
				attribute.Int("fluxion.roots", len(roots)),
			}
			if config.IncludeRoots {
				names := make([]string, len(roots))
				for i, r := range roots {
					names[i] = r.Name()
				}
				attrs = append(attrs, attribute.StringSlice("fluxion.root_names", names))
			}
			if config.AttributeExtractor != nil {
				attrs = append(attrs, config.AttributeExtractor(roots)...)
			}

			ctx, _ = config.tracer.Start(ctx, "fluxion.round",
				trace.WithSpanKind(trace.SpanKindInternal),
				trace.WithAttributes(attrs...),
			)
			return ctx
		},

		RoundEnd: func(ctx context.Context, stats fluxion.RoundStats) {
			span := trace.SpanFromContext(ctx)
			span.SetAttributes(
				attribute.Int("fluxion.levels", stats.Levels),
				attribute.Int("fluxion.pings", stats.Pings),
				attribute.Int("fluxion.propagated", stats.Propagated),
				attribute.Int("fluxion.absorbed", stats.Absorbed),
				attribute.Int64("fluxion.duration_us", stats.Duration.Microseconds()),
			)
			span.End()
		},
	}
}
