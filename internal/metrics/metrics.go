// Package metrics exposes compile and evaluation statistics as prometheus
// collectors fed from the event bus.
package metrics

import (
	"context"
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hanpama/mgc/internal/compiler"
	"github.com/hanpama/mgc/internal/eventbus"
	"github.com/hanpama/mgc/internal/events"
	"github.com/hanpama/mgc/internal/executor"
	"github.com/hanpama/mgc/internal/language"
	"github.com/hanpama/mgc/internal/operator"
	"github.com/hanpama/mgc/internal/tensor"
)

const (
	namespace = "mgc"

	LabelSuccess        = "success"
	LabelSyntaxError    = "syntax_err"
	LabelUnknownOp      = "unknown_op"
	LabelUnbound        = "unbound_var"
	LabelModeMismatch   = "mode_mismatch"
	LabelShapeError     = "shape_err"
	LabelNonTermination = "non_termination"
	LabelCanceled       = "canceled"
	LabelGenericError   = "generic_err"
)

// Metrics holds the collectors updated by Subscribe.
type Metrics struct {
	Compiles         *prometheus.CounterVec
	CompileDuration  *prometheus.HistogramVec
	NodesCreated     prometheus.Counter
	NodesReused      prometheus.Counter
	Evaluations      *prometheus.CounterVec
	EvaluateDuration *prometheus.HistogramVec
	FixpointIters    *prometheus.HistogramVec
	Requests         *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
}

// New creates unregistered collectors.
func New() *Metrics {
	return &Metrics{
		Compiles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "compiler",
			Name:      "compiles_total",
			Help:      "Count of formula compilations",
		}, []string{"mode", "result"}),

		CompileDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "compiler",
			Name:      "compile_duration_seconds",
			Help:      "Histogram of times spent compiling formulas",
			Buckets:   prometheus.ExponentialBuckets(1e-5, 5, 8),
		}, []string{"mode"}),

		NodesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "compiler",
			Name:      "nodes_created_total",
			Help:      "Count of computation nodes added to compiler caches",
		}),

		NodesReused: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "compiler",
			Name:      "nodes_reused_total",
			Help:      "Count of cached computation nodes resolved again",
		}),

		Evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "evaluations_total",
			Help:      "Count of model evaluations",
		}, []string{"result"}),

		EvaluateDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "evaluate_duration_seconds",
			Help:      "Histogram of times spent evaluating models",
			Buckets:   prometheus.ExponentialBuckets(1e-4, 5, 8),
		}, []string{"result"}),

		FixpointIters: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "fixpoint_iterations",
			Help:      "Histogram of iterations fixpoints needed to converge",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"kind"}),

		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Count of HTTP requests",
		}, []string{"route", "status"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Histogram of HTTP request latency",
			Buckets:   prometheus.ExponentialBuckets(1e-3, 5, 7),
		}, []string{"route"}),
	}
}

func (m *Metrics) PrometheusCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.Compiles,
		m.CompileDuration,
		m.NodesCreated,
		m.NodesReused,
		m.Evaluations,
		m.EvaluateDuration,
		m.FixpointIters,
		m.Requests,
		m.RequestDuration,
	}
}

// Subscribe updates m from events published on the global bus.
func (m *Metrics) Subscribe() (unsubscribe func()) {
	subs := []func(){
		eventbus.Subscribe(func(_ context.Context, e events.CompileFinish) {
			m.Compiles.WithLabelValues(e.Mode, Result(e.Err)).Inc()
			m.CompileDuration.WithLabelValues(e.Mode).Observe(e.Duration.Seconds())
			m.NodesCreated.Add(float64(e.Created))
			m.NodesReused.Add(float64(e.Reused))
		}),
		eventbus.Subscribe(func(_ context.Context, e events.EvaluateFinish) {
			r := Result(e.Err)
			m.Evaluations.WithLabelValues(r).Inc()
			m.EvaluateDuration.WithLabelValues(r).Observe(e.Duration.Seconds())
		}),
		eventbus.Subscribe(func(_ context.Context, e events.FixpointConverged) {
			kind := "nu"
			if e.Least {
				kind = "mu"
			}
			m.FixpointIters.WithLabelValues(kind).Observe(float64(e.Iterations))
		}),
		eventbus.Subscribe(func(_ context.Context, e events.HTTPFinish) {
			route := e.Route
			if route == "" {
				route = "other"
			}
			m.Requests.WithLabelValues(route, strconv.Itoa(e.Status)).Inc()
			m.RequestDuration.WithLabelValues(route).Observe(e.Duration.Seconds())
		}),
	}
	return func() {
		for _, unsub := range subs {
			unsub()
		}
	}
}

// Result maps an error to the result label it is counted under.
func Result(err error) string {
	switch {
	case err == nil:
		return LabelSuccess
	case errors.Is(err, language.ErrSyntax):
		return LabelSyntaxError
	case errors.Is(err, operator.ErrUnknownOperator):
		return LabelUnknownOp
	case errors.Is(err, compiler.ErrUnboundVariable):
		return LabelUnbound
	case errors.Is(err, operator.ErrModeMismatch):
		return LabelModeMismatch
	case errors.Is(err, tensor.ErrShape):
		return LabelShapeError
	case errors.Is(err, executor.ErrNonTermination):
		return LabelNonTermination
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return LabelCanceled
	}
	return LabelGenericError
}
