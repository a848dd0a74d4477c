package executor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hanpama/mgc/internal/eventbus"
	"github.com/hanpama/mgc/internal/events"
	"github.com/hanpama/mgc/internal/graph"
	"github.com/hanpama/mgc/internal/ir"
	"github.com/hanpama/mgc/internal/operator"
	"github.com/hanpama/mgc/internal/runid"
	"github.com/hanpama/mgc/internal/tensor"
)

// DefaultMinIterations is the smallest iteration bound used when no
// explicit limit is set. The bound grows with the lattice height,
// nodes*width+1, for large inputs.
const DefaultMinIterations = 1000

// Executor evaluates models. It holds no per-evaluation state and is safe
// for concurrent use.
type Executor struct {
	logger        *zap.Logger
	maxIterations int
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the logger used for evaluation diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMaxIterations bounds the iterations of every fixpoint. Zero or a
// negative value selects the default bound.
func WithMaxIterations(n int) Option {
	return func(e *Executor) { e.maxIterations = n }
}

func New(opts ...Option) *Executor {
	e := &Executor{logger: zap.NewNop()}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Prepare turns graphs into the input shape spec expects: a disjoint union
// for batched models, the single graph otherwise.
func Prepare(spec ir.InputSpec, gs ...*graph.Graph) (*graph.Input, error) {
	if spec.Batched {
		return graph.Batch(gs...)
	}
	if len(gs) != 1 {
		return nil, &operator.ModeMismatchError{
			Op:     "input",
			Reason: fmt.Sprintf("single-graph model evaluated on %d graphs", len(gs)),
		}
	}
	return graph.Single(gs[0])
}

// evalState holds the state of one evaluation.
type evalState struct {
	ctx    context.Context
	exec   *Executor
	model  *ir.Model
	input  *graph.Input
	edgeE  *tensor.Tensor
	nodes  int
	root   *frame
	logger *zap.Logger
}

// frame holds the results of one fixpoint iteration, or of the whole
// evaluation for the root frame.
type frame struct {
	parent *frame
	varKey string
	value  *tensor.Tensor
	memo   map[*ir.Node]*tensor.Tensor
}

func newFrame(parent *frame, varKey string, value *tensor.Tensor) *frame {
	return &frame{parent: parent, varKey: varKey, value: value, memo: make(map[*ir.Node]*tensor.Tensor)}
}

func (f *frame) lookup(key string) (*tensor.Tensor, bool) {
	for ; f != nil; f = f.parent {
		if f.varKey == key && f.value != nil {
			return f.value, true
		}
	}
	return nil, false
}

// Evaluate computes the output labels of m on in. The result has one row
// per input node.
func (e *Executor) Evaluate(ctx context.Context, m *ir.Model, in *graph.Input) (out *tensor.Tensor, err error) {
	ctx, rid := runid.Ensure(ctx)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkInput(m.Spec, in); err != nil {
		return nil, err
	}

	graphs := 1
	if in.Batched() {
		counts, _ := tensor.SegmentCounts(in.Index)
		graphs = len(counts)
	}
	eventbus.Publish(ctx, events.EvaluateStart{Formula: m.Formula, Nodes: in.Nodes(), Graphs: graphs})
	start := time.Now()
	defer func() {
		eventbus.Publish(ctx, events.EvaluateFinish{
			Formula:  m.Formula,
			Nodes:    in.Nodes(),
			Graphs:   graphs,
			Err:      err,
			Duration: time.Since(start),
		})
	}()

	s := &evalState{
		ctx:    ctx,
		exec:   e,
		model:  m,
		input:  in,
		nodes:  in.Nodes(),
		root:   newFrame(nil, "", nil),
		logger: e.logger.With(zap.Int64("run", rid)),
	}
	if m.Spec.HasEdgeLabels() {
		s.edgeE = in.E
	}
	out, err = s.eval(m.Output, s.root)
	if err != nil {
		s.logger.Debug("evaluation failed", zap.String("formula", m.Formula), zap.Error(err))
		return nil, err
	}
	return out, nil
}

// checkInput verifies that in matches the shape the model was compiled for.
func checkInput(spec ir.InputSpec, in *graph.Input) error {
	if in == nil || in.X == nil {
		return graph.ErrNoNodeLabels
	}
	if spec.Batched != in.Batched() {
		reason := "model compiled for a single graph received a graph index"
		if spec.Batched {
			reason = "model compiled for batches received no graph index"
		}
		return &operator.ModeMismatchError{Op: "input", Batched: spec.Batched, Reason: reason}
	}
	if in.X.Cols() != spec.Node.Width {
		return tensor.Shapef("input", "node labels have width %d, configured %d", in.X.Cols(), spec.Node.Width)
	}
	n := in.Nodes()
	if in.Batched() {
		if len(in.Index) != n {
			return tensor.Shapef("input", "graph index has %d entries for %d nodes", len(in.Index), n)
		}
		if _, err := tensor.SegmentCounts(in.Index); err != nil {
			return err
		}
	}
	if !spec.Adjacency {
		return nil
	}
	if len(in.Sources) != len(in.Targets) {
		return tensor.Shapef("input", "%d edge sources for %d targets", len(in.Sources), len(in.Targets))
	}
	for i := range in.Sources {
		if s, t := in.Sources[i], in.Targets[i]; s < 0 || s >= n || t < 0 || t >= n {
			return fmt.Errorf("%w: edge %d (%d->%d) with %d nodes", graph.ErrEdgeOutOfRange, i, s, t, n)
		}
	}
	if spec.Edge != nil {
		if in.E == nil {
			return fmt.Errorf("%w: model compiled with edge labels received none", graph.ErrEdgeLabels)
		}
		if in.E.Rows() != len(in.Sources) {
			return fmt.Errorf("%w: %d label rows for %d edges", graph.ErrEdgeLabels, in.E.Rows(), len(in.Sources))
		}
		if in.E.Cols() != spec.Edge.Width {
			return tensor.Shapef("input", "edge labels have width %d, configured %d", in.E.Cols(), spec.Edge.Width)
		}
	}
	return nil
}

func (s *evalState) eval(n *ir.Node, f *frame) (*tensor.Tensor, error) {
	home := f
	if n.Closed() {
		home = s.root
	}
	if v, ok := home.memo[n]; ok {
		return v, nil
	}
	v, err := s.compute(n, f)
	if err != nil {
		return nil, err
	}
	home.memo[n] = v
	return v, nil
}

func (s *evalState) compute(n *ir.Node, f *frame) (*tensor.Tensor, error) {
	switch n.Kind {
	case ir.KindInput:
		return s.input.X, nil
	case ir.KindPsi:
		x, err := s.eval(n.Inputs[0], f)
		if err != nil {
			return nil, err
		}
		var out *tensor.Tensor
		if s.input.Batched() {
			out, err = n.Psi.Multiple(x, s.input.Index)
		} else {
			out, err = n.Psi.Single(x)
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", n.OpName, err)
		}
		return out, s.checkRows(n, out)
	case ir.KindConcat:
		parts := make([]*tensor.Tensor, len(n.Inputs))
		for i, in := range n.Inputs {
			v, err := s.eval(in, f)
			if err != nil {
				return nil, err
			}
			parts[i] = v
		}
		return tensor.Concat(parts...)
	case ir.KindDiamond:
		return s.diamond(n, f)
	case ir.KindVariable:
		v, ok := f.lookup(n.Key)
		if !ok {
			return nil, fmt.Errorf("executor: variable %s evaluated outside its fixpoint", n.Binder.Name)
		}
		return v, nil
	case ir.KindFixPoint:
		return s.fixpoint(n, f)
	}
	return nil, fmt.Errorf("executor: unknown node kind %s", n.Kind)
}

func (s *evalState) checkRows(n *ir.Node, out *tensor.Tensor) error {
	if out == nil {
		return fmt.Errorf("executor: %s produced no labels", n.OpName)
	}
	if out.Rows() != s.nodes {
		return tensor.Shapef(n.OpName, "produced %d rows for %d nodes", out.Rows(), s.nodes)
	}
	return nil
}

func (s *evalState) diamond(n *ir.Node, f *frame) (*tensor.Tensor, error) {
	x, err := s.eval(n.Inputs[0], f)
	if err != nil {
		return nil, err
	}
	from, to := s.input.Sources, s.input.Targets
	if n.Direction == ir.Backward {
		from, to = to, from
	}
	msgs, err := x.Gather(from)
	if err != nil {
		return nil, err
	}
	if n.Phi != nil {
		tgt, err := x.Gather(to)
		if err != nil {
			return nil, err
		}
		if msgs, err = n.Phi.Messages(msgs, s.edgeE, tgt); err != nil {
			return nil, fmt.Errorf("%s: %w", n.PhiName, err)
		}
		if msgs == nil || msgs.Rows() != len(to) {
			rows := 0
			if msgs != nil {
				rows = msgs.Rows()
			}
			return nil, tensor.Shapef(n.PhiName, "produced %d messages for %d edges", rows, len(to))
		}
	}
	out, err := n.Sigma.Aggregate(msgs, to, s.nodes, x)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", n.OpName, err)
	}
	return out, s.checkRows(n, out)
}
