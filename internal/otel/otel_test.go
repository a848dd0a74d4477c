package otel

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/hanpama/mgc/internal/eventbus"
	"github.com/hanpama/mgc/internal/events"
	"github.com/hanpama/mgc/internal/runid"
)

func setup(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	eventbus.Use(eventbus.New())
	t.Cleanup(func() { eventbus.Use(nil) })

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	unsubscribe := Register(tp.Tracer("test"))
	t.Cleanup(unsubscribe)
	return sr
}

func TestSpansNestUnderRequest(t *testing.T) {
	sr := setup(t)
	ctx, _ := runid.NewContext(context.Background())
	req := httptest.NewRequest("POST", "/evaluate", nil)

	eventbus.Publish(ctx, events.HTTPStart{Request: req})
	eventbus.Publish(ctx, events.CompileStart{Formula: "a", Mode: "xa"})
	eventbus.Publish(ctx, events.CompileFinish{Formula: "a", Mode: "xa", Created: 1})
	eventbus.Publish(ctx, events.EvaluateStart{Formula: "a", Nodes: 5, Graphs: 1})
	eventbus.Publish(ctx, events.FixpointConverged{Key: "mu X", Least: true, Iterations: 3})
	eventbus.Publish(ctx, events.EvaluateFinish{Formula: "a", Nodes: 5, Graphs: 1, Err: errors.New("boom")})
	eventbus.Publish(ctx, events.HTTPFinish{Request: req, Status: 500})

	spans := sr.Ended()
	require.Len(t, spans, 3)
	byName := map[string]sdktrace.ReadOnlySpan{}
	for _, s := range spans {
		byName[s.Name()] = s
	}
	root := byName["http.request"]
	require.NotNil(t, root)
	for _, name := range []string{"mgc.compile", "mgc.evaluate"} {
		s := byName[name]
		require.NotNil(t, s, name)
		assert.Equal(t, root.SpanContext().SpanID(), s.Parent().SpanID(), name)
	}

	eval := byName["mgc.evaluate"]
	assert.Equal(t, codes.Error, eval.Status().Code)
	var names []string
	for _, ev := range eval.Events() {
		names = append(names, ev.Name)
	}
	assert.Contains(t, names, "fixpoint.converged")
}

func TestUnsubscribedAfterCleanup(t *testing.T) {
	eventbus.Use(eventbus.New())
	defer eventbus.Use(nil)

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	unsubscribe := Register(tp.Tracer("test"))
	unsubscribe()

	ctx := context.Background()
	eventbus.Publish(ctx, events.CompileStart{Formula: "a"})
	eventbus.Publish(ctx, events.CompileFinish{Formula: "a"})
	assert.Empty(t, sr.Ended())
}

func TestSetupWithoutEndpoint(t *testing.T) {
	shutdown, err := Setup("", "mgc")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
