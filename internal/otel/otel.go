package otel

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/hanpama/mgc/internal/eventbus"
	"github.com/hanpama/mgc/internal/events"
	"github.com/hanpama/mgc/internal/runid"
)

// Setup configures OpenTelemetry and attaches eventbus subscribers.
// If endpoint is empty, no telemetry is configured.
func Setup(endpoint, service string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	exp, err := otlptracegrpc.New(context.Background(),
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(service),
		)),
	)
	otel.SetTracerProvider(tp)

	unsubscribe := Register(otel.Tracer("mgc"))
	return func(ctx context.Context) error {
		unsubscribe()
		return tp.Shutdown(ctx)
	}, nil
}

// Register subscribes span recording for HTTP, compile and evaluate events
// on the global bus. Compile and evaluate spans nest under the HTTP span
// of the same run.
func Register(tracer trace.Tracer) (unsubscribe func()) {
	s := &subscriber{tracer: tracer}
	return s.register()
}

type compileKey struct {
	rid     int64
	formula string
}

type subscriber struct {
	tracer       trace.Tracer
	httpSpans    sync.Map // rid -> trace.Span
	compileSpans sync.Map // compileKey -> trace.Span
	evalSpans    sync.Map // rid -> trace.Span
}

func (s *subscriber) parent(ctx context.Context, rid int64) context.Context {
	if v, ok := s.httpSpans.Load(rid); ok {
		return trace.ContextWithSpan(ctx, v.(trace.Span))
	}
	return ctx
}

func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (s *subscriber) register() func() {
	var subs []func()
	subs = append(subs, eventbus.Subscribe(func(ctx context.Context, e events.HTTPStart) {
		rid, _ := runid.FromContext(ctx)
		_, span := s.tracer.Start(ctx, "http.request")
		span.SetAttributes(
			semconv.HTTPMethodKey.String(e.Request.Method),
			attribute.String("http.target", e.Request.URL.Path),
			attribute.String("http.route", e.Route),
		)
		s.httpSpans.Store(rid, span)
	}))

	subs = append(subs, eventbus.Subscribe(func(ctx context.Context, e events.HTTPFinish) {
		rid, _ := runid.FromContext(ctx)
		v, ok := s.httpSpans.LoadAndDelete(rid)
		if !ok {
			return
		}
		span := v.(trace.Span)
		span.SetAttributes(semconv.HTTPStatusCodeKey.Int(e.Status))
		span.End()
	}))

	subs = append(subs, eventbus.Subscribe(func(ctx context.Context, e events.CompileStart) {
		rid, _ := runid.FromContext(ctx)
		_, span := s.tracer.Start(s.parent(ctx, rid), "mgc.compile")
		span.SetAttributes(
			attribute.String("mgc.formula", e.Formula),
			attribute.String("mgc.mode", e.Mode),
		)
		s.compileSpans.Store(compileKey{rid, e.Formula}, span)
	}))

	subs = append(subs, eventbus.Subscribe(func(ctx context.Context, e events.CompileFinish) {
		rid, _ := runid.FromContext(ctx)
		v, ok := s.compileSpans.LoadAndDelete(compileKey{rid, e.Formula})
		if !ok {
			return
		}
		span := v.(trace.Span)
		span.SetAttributes(
			attribute.Int("mgc.nodes.created", e.Created),
			attribute.Int("mgc.nodes.reused", e.Reused),
			attribute.Int("mgc.layers", e.Layers),
		)
		finish(span, e.Err)
	}))

	subs = append(subs, eventbus.Subscribe(func(ctx context.Context, e events.EvaluateStart) {
		rid, _ := runid.FromContext(ctx)
		_, span := s.tracer.Start(s.parent(ctx, rid), "mgc.evaluate")
		span.SetAttributes(
			attribute.String("mgc.formula", e.Formula),
			attribute.Int("mgc.graph.nodes", e.Nodes),
			attribute.Int("mgc.graphs", e.Graphs),
		)
		s.evalSpans.Store(rid, span)
	}))

	subs = append(subs, eventbus.Subscribe(func(ctx context.Context, e events.FixpointConverged) {
		rid, _ := runid.FromContext(ctx)
		v, ok := s.evalSpans.Load(rid)
		if !ok {
			return
		}
		v.(trace.Span).AddEvent("fixpoint.converged", trace.WithAttributes(
			attribute.String("mgc.fixpoint", e.Key),
			attribute.Bool("mgc.fixpoint.least", e.Least),
			attribute.Int("mgc.fixpoint.iterations", e.Iterations),
		))
	}))

	subs = append(subs, eventbus.Subscribe(func(ctx context.Context, e events.EvaluateFinish) {
		rid, _ := runid.FromContext(ctx)
		v, ok := s.evalSpans.LoadAndDelete(rid)
		if !ok {
			return
		}
		finish(v.(trace.Span), e.Err)
	}))

	return func() {
		for _, unsub := range subs {
			unsub()
		}
	}
}
