package operator

import (
	"github.com/hanpama/mgc/internal/tensor"
)

// Unknown is the width reported when an operator cannot tell its output
// width in advance.
const Unknown = -1

// Shaped is implemented by operators that know their output feature width
// for a given input width. For Psi and Sigma the input is the node (or
// message) label width, for Phi it is the source label width.
type Shaped interface {
	OutputWidth(in int) int
}

// WidthFunc computes an output width from an input width.
type WidthFunc func(in int) int

// SameWidth keeps the input width.
func SameWidth(in int) int { return in }

// FixedWidth always reports n.
func FixedWidth(n int) WidthFunc { return func(int) int { return n } }

// OutputWidth asks op for its output width, returning Unknown when op does
// not implement Shaped or the input width is itself unknown.
func OutputWidth(op any, in int) int {
	s, ok := op.(Shaped)
	if !ok || in == Unknown {
		return Unknown
	}
	return s.OutputWidth(in)
}

func (f WidthFunc) width(in int) int {
	if f == nil {
		return Unknown
	}
	return f(in)
}

// Psi is a node-wise operator with a single-graph and a batched capability.
// For graph-agnostic operators Multiple must agree with applying Single to
// each graph's node subset independently.
type Psi interface {
	Single(x *tensor.Tensor) (*tensor.Tensor, error)
	Multiple(x *tensor.Tensor, index []int) (*tensor.Tensor, error)
}

// PsiFunc is a Psi built from an explicit pair of functions. A nil function
// makes the corresponding mode a ModeMismatchError.
type PsiFunc struct {
	Name       string
	SingleOp   func(x *tensor.Tensor) (*tensor.Tensor, error)
	MultipleOp func(x *tensor.Tensor, index []int) (*tensor.Tensor, error)
	Out        WidthFunc
}

func (p *PsiFunc) Single(x *tensor.Tensor) (*tensor.Tensor, error) {
	if p.SingleOp == nil {
		return nil, &ModeMismatchError{Op: p.Name, Reason: "operator has no single-graph variant"}
	}
	return p.SingleOp(x)
}

func (p *PsiFunc) Multiple(x *tensor.Tensor, index []int) (*tensor.Tensor, error) {
	if p.MultipleOp == nil {
		return nil, &ModeMismatchError{Op: p.Name, Batched: true, Reason: "operator has no batched variant"}
	}
	if index == nil {
		return nil, &ModeMismatchError{Op: p.Name, Batched: true}
	}
	return p.MultipleOp(x, index)
}

func (p *PsiFunc) OutputWidth(in int) int { return p.Out.width(in) }

// Local is a graph-agnostic node-wise map; both modes apply F.
type Local struct {
	F   func(x *tensor.Tensor) (*tensor.Tensor, error)
	Out WidthFunc
}

// NewLocal returns a Local for an infallible element-wise or row-wise map.
func NewLocal(out WidthFunc, f func(x *tensor.Tensor) *tensor.Tensor) *Local {
	return &Local{F: func(x *tensor.Tensor) (*tensor.Tensor, error) { return f(x), nil }, Out: out}
}

func (l *Local) Single(x *tensor.Tensor) (*tensor.Tensor, error) { return l.F(x) }

func (l *Local) Multiple(x *tensor.Tensor, index []int) (*tensor.Tensor, error) {
	if index == nil {
		return nil, &ModeMismatchError{Op: "local", Batched: true}
	}
	return l.F(x)
}

func (l *Local) OutputWidth(in int) int { return l.Out.width(in) }

// Global is a pooling operator. SingleOp reduces one graph to a single row;
// MultipleOp reduces a disjoint union to one row per distinct graph-index
// value. Either result is broadcast back so that every node of a graph
// receives that graph's pooled row.
type Global struct {
	Name       string
	SingleOp   func(x *tensor.Tensor) (*tensor.Tensor, error)
	MultipleOp func(x *tensor.Tensor, index []int) (*tensor.Tensor, error)
	Out        WidthFunc
}

func (g *Global) Single(x *tensor.Tensor) (*tensor.Tensor, error) {
	if g.SingleOp == nil {
		return nil, &ModeMismatchError{Op: g.Name, Reason: "operator has no single-graph variant"}
	}
	pooled, err := g.SingleOp(x)
	if err != nil {
		return nil, err
	}
	if pooled.Rows() != 1 {
		return nil, tensor.Shapef(g.Name, "pooling produced %d rows, want 1", pooled.Rows())
	}
	return pooled.Repeat([]int{x.Rows()})
}

func (g *Global) Multiple(x *tensor.Tensor, index []int) (*tensor.Tensor, error) {
	if g.MultipleOp == nil {
		return nil, &ModeMismatchError{Op: g.Name, Batched: true, Reason: "operator has no batched variant"}
	}
	if index == nil {
		return nil, &ModeMismatchError{Op: g.Name, Batched: true}
	}
	counts, err := tensor.SegmentCounts(index)
	if err != nil {
		return nil, err
	}
	pooled, err := g.MultipleOp(x, index)
	if err != nil {
		return nil, err
	}
	if pooled.Rows() != len(counts) {
		return nil, tensor.Shapef(g.Name, "pooling produced %d rows for %d graphs", pooled.Rows(), len(counts))
	}
	return pooled.Repeat(counts)
}

func (g *Global) OutputWidth(in int) int { return g.Out.width(in) }

// Phi computes one message per edge. src and tgt hold the labels of each
// edge's endpoints, e holds the edge labels (nil when the graph has none);
// all three are aligned with the edge list.
type Phi interface {
	Messages(src, e, tgt *tensor.Tensor) (*tensor.Tensor, error)
}

// PhiFunc adapts a function to Phi.
type PhiFunc func(src, e, tgt *tensor.Tensor) (*tensor.Tensor, error)

func (f PhiFunc) Messages(src, e, tgt *tensor.Tensor) (*tensor.Tensor, error) { return f(src, e, tgt) }

// Sigma aggregates messages m, where message i is addressed to node
// target[i], into one label per node for n nodes. x holds the current node
// labels. Nodes without messages still receive a label.
type Sigma interface {
	Aggregate(m *tensor.Tensor, target []int, n int, x *tensor.Tensor) (*tensor.Tensor, error)
}

// SigmaFunc adapts a function to Sigma.
type SigmaFunc func(m *tensor.Tensor, target []int, n int, x *tensor.Tensor) (*tensor.Tensor, error)

func (f SigmaFunc) Aggregate(m *tensor.Tensor, target []int, n int, x *tensor.Tensor) (*tensor.Tensor, error) {
	return f(m, target, n, x)
}

// shapedPhi and shapedSigma attach a width to a function operator.
type shapedPhi struct {
	PhiFunc
	out WidthFunc
}

func (p shapedPhi) OutputWidth(in int) int { return p.out.width(in) }

type shapedSigma struct {
	SigmaFunc
	out WidthFunc
}

func (s shapedSigma) OutputWidth(in int) int { return s.out.width(in) }

// NewPhi returns a Phi that reports out as its output width.
func NewPhi(out WidthFunc, f PhiFunc) Phi { return shapedPhi{PhiFunc: f, out: out} }

// NewSigma returns a Sigma that reports out as its output width.
func NewSigma(out WidthFunc, f SigmaFunc) Sigma { return shapedSigma{SigmaFunc: f, out: out} }
