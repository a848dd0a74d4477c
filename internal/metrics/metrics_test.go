package metrics_test

import (
	"context"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hanpama/mgc/internal/compiler"
	"github.com/hanpama/mgc/internal/eventbus"
	"github.com/hanpama/mgc/internal/events"
	"github.com/hanpama/mgc/internal/executor"
	"github.com/hanpama/mgc/internal/language"
	"github.com/hanpama/mgc/internal/metrics"
	"github.com/hanpama/mgc/internal/tensor"
)

func TestResult(t *testing.T) {
	_, syntaxErr := language.Parse("a ;")
	tests := []struct {
		err  error
		want string
	}{
		{nil, metrics.LabelSuccess},
		{syntaxErr, metrics.LabelSyntaxError},
		{&compiler.UnboundVariableError{Name: "X"}, metrics.LabelUnbound},
		{tensor.Shapef("concat", "rows differ"), metrics.LabelShapeError},
		{&executor.NonTerminationError{Key: "mu", Iterations: 3}, metrics.LabelNonTermination},
		{fmt.Errorf("wrapped: %w", context.Canceled), metrics.LabelCanceled},
		{fmt.Errorf("other"), metrics.LabelGenericError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, metrics.Result(tt.err), "%v", tt.err)
	}
}

func TestSubscribe(t *testing.T) {
	eventbus.Use(eventbus.New())
	defer eventbus.Use(nil)

	m := metrics.New()
	unsubscribe := m.Subscribe()
	defer unsubscribe()

	ctx := context.Background()
	eventbus.Publish(ctx, events.CompileFinish{Mode: "xa", Created: 3, Reused: 2, Duration: time.Millisecond})
	eventbus.Publish(ctx, events.CompileFinish{Mode: "xa", Created: 1, Err: fmt.Errorf("x")})
	eventbus.Publish(ctx, events.EvaluateFinish{Duration: time.Millisecond})
	eventbus.Publish(ctx, events.FixpointConverged{Least: true, Iterations: 4})
	eventbus.Publish(ctx, events.FixpointConverged{Least: false, Iterations: 2})
	eventbus.Publish(ctx, events.HTTPFinish{Request: httptest.NewRequest("POST", "/compile", nil), Route: "/compile", Status: 200})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Compiles.WithLabelValues("xa", metrics.LabelSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Compiles.WithLabelValues("xa", metrics.LabelGenericError)))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.NodesCreated))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.NodesReused))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Evaluations.WithLabelValues(metrics.LabelSuccess)))
	assert.Equal(t, 2, testutil.CollectAndCount(m.FixpointIters))
	eventbus.Publish(ctx, events.HTTPFinish{Request: httptest.NewRequest("GET", "/x/y", nil), Status: 404})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("/compile", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("other", "404")))

	unsubscribe()
	eventbus.Publish(ctx, events.EvaluateFinish{})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Evaluations.WithLabelValues(metrics.LabelSuccess)))
}

func TestCollectorsRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	for _, c := range metrics.New().PrometheusCollectors() {
		require.NoError(t, reg.Register(c))
	}
}
