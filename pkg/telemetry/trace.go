package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/fiber/pkg/expiration"
	"github.com/vango-dev/fiber/pkg/reconciler"
	"github.com/vango-dev/fiber/pkg/scheduler"
)

const defaultTracerName = "fiber"

// TracerConfig configures the OpenTelemetry observer.
type TracerConfig struct {
	// TracerName is the name of the tracer (default: "fiber").
	TracerName string

	// Tracer overrides the tracer resolved from the global provider.
	Tracer trace.Tracer

	// Context is the parent of every span (default: context.Background()).
	Context context.Context
}

// TracerOption configures the OpenTelemetry observer.
type TracerOption func(*TracerConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) TracerOption {
	return func(c *TracerConfig) {
		c.TracerName = name
	}
}

// WithTracer sets the tracer directly.
func WithTracer(t trace.Tracer) TracerOption {
	return func(c *TracerConfig) {
		c.Tracer = t
	}
}

// WithParentContext sets the context spans are started from.
func WithParentContext(ctx context.Context) TracerOption {
	return func(c *TracerConfig) {
		c.Context = ctx
	}
}

// Tracer opens one span per render, from the first slice to the finished
// tree, and one per commit. Slices, yields and restarts are span events.
type Tracer struct {
	tracer trace.Tracer
	ctx    context.Context

	mu      sync.Mutex
	renders map[*reconciler.Root]trace.Span
	commits map[*reconciler.Root]trace.Span
}

// NewTracer creates a Tracer.
func NewTracer(opts ...TracerOption) *Tracer {
	config := TracerConfig{TracerName: defaultTracerName}
	for _, opt := range opts {
		opt(&config)
	}
	if config.Tracer == nil {
		config.Tracer = otel.Tracer(config.TracerName)
	}
	if config.Context == nil {
		config.Context = context.Background()
	}
	return &Tracer{
		tracer:  config.Tracer,
		ctx:     config.Context,
		renders: make(map[*reconciler.Root]trace.Span),
		commits: make(map[*reconciler.Root]trace.Span),
	}
}

func rootAttrs(root *reconciler.Root, t expiration.Time) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("fiber.root", root.Tag.String()),
		attribute.String("fiber.expiration", t.String()),
	}
}

func (tr *Tracer) RenderStarted(root *reconciler.Root, t expiration.Time, sync bool) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	if span, ok := tr.renders[root]; ok {
		span.AddEvent("fiber.resume", trace.WithAttributes(attribute.Bool("fiber.sync", sync)))
		return
	}
	_, span := tr.tracer.Start(tr.ctx, "fiber.render",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(rootAttrs(root, t)...),
		trace.WithAttributes(attribute.Bool("fiber.sync", sync)),
	)
	tr.renders[root] = span
}

func (tr *Tracer) RenderYielded(root *reconciler.Root, _ expiration.Time) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	if span, ok := tr.renders[root]; ok {
		span.AddEvent("fiber.yield")
	}
}

func (tr *Tracer) RenderFinished(root *reconciler.Root, _ expiration.Time, status reconciler.Status) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	span, ok := tr.renders[root]
	if !ok {
		return
	}
	delete(tr.renders, root)
	span.SetAttributes(attribute.String("fiber.status", status.String()))
	if status == reconciler.StatusErrored {
		span.SetStatus(codes.Error, "render errored")
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

func (tr *Tracer) Restarted(root *reconciler.Root, _ expiration.Time) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	span, ok := tr.renders[root]
	if !ok {
		return
	}
	delete(tr.renders, root)
	span.SetAttributes(attribute.Bool("fiber.restarted", true))
	span.End()
}

func (tr *Tracer) CommitStarted(root *reconciler.Root, t expiration.Time) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	_, span := tr.tracer.Start(tr.ctx, "fiber.commit",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(rootAttrs(root, t)...),
	)
	tr.commits[root] = span
}

func (tr *Tracer) CommitFinished(root *reconciler.Root, _ expiration.Time, effects int, d time.Duration) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	span, ok := tr.commits[root]
	if !ok {
		return
	}
	delete(tr.commits, root)
	span.SetAttributes(
		attribute.Int("fiber.effects", effects),
		attribute.Int64("fiber.commit_us", d.Microseconds()),
	)
	span.SetStatus(codes.Ok, "")
	span.End()
}

func (tr *Tracer) UpdateScheduled(root *reconciler.Root, p scheduler.Priority, t expiration.Time) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	// Updates during a render land on that render's span.
	if span, ok := tr.renders[root]; ok {
		span.AddEvent("fiber.update", trace.WithAttributes(
			attribute.String("fiber.priority", p.String()),
			attribute.String("fiber.expiration", t.String()),
		))
	}
}

var _ reconciler.Observer = (*Tracer)(nil)
