package ir

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/multierr"

	"github.com/hanpama/mgc/internal/operator"
	"github.com/hanpama/mgc/internal/tensor"
)

// Kind classifies a computation node.
type Kind int

const (
	KindInput Kind = iota
	KindPsi
	KindConcat
	KindDiamond
	KindVariable
	KindFixPoint
)

var kindNames = [...]string{
	KindInput:    "input",
	KindPsi:      "psi",
	KindConcat:   "concat",
	KindDiamond:  "diamond",
	KindVariable: "variable",
	KindFixPoint: "fixpoint",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Direction is the way messages travel in a diamond.
type Direction int

const (
	// Forward sends messages from edge sources to edge targets.
	Forward Direction = iota
	// Backward sends messages from edge targets to edge sources.
	Backward
)

func (d Direction) String() string {
	if d == Backward {
		return "backward"
	}
	return "forward"
}

func (d Direction) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// Binder describes the variable a fixpoint node binds.
type Binder struct {
	Least bool         `json:"least"`
	Name  string       `json:"name"`
	Var   string       `json:"var"` // key of the variable node
	Base  string       `json:"base"`
	Init  []float64    `json:"init"` // bottom for least, top for greatest
	DType tensor.DType `json:"-"`
}

// Node is one operator application bound to its input nodes. Nodes are
// content addressed: two nodes with the same Key are the same computation.
type Node struct {
	ID     int     `json:"id"`
	Key    string  `json:"key"`
	Kind   Kind    `json:"kind"`
	Inputs []*Node `json:"-"`

	OpName string         `json:"op,omitempty"`
	Psi    operator.Psi   `json:"-"`
	Sigma  operator.Sigma `json:"-"`

	// Diamond message function; nil means the neighbour labels are the
	// messages.
	PhiName   string       `json:"phi,omitempty"`
	Phi       operator.Phi `json:"-"`
	Direction Direction    `json:"direction,omitempty"`

	// Variable and fixpoint nodes.
	Binder *Binder `json:"binder,omitempty"`
	Body   *Node   `json:"-"`

	// Width is the output feature width, or operator.Unknown.
	Width int `json:"width"`
	// Free lists the keys of the variables this node depends on that are
	// not bound inside it, sorted.
	Free []string `json:"free,omitempty"`
}

// Name is a short stable identifier derived from the node key.
func (n *Node) Name() string {
	return fmt.Sprintf("%s_%016x", n.Kind, xxhash.Sum64String(n.Key))
}

// Closed reports whether the node depends on no unbound variable.
func (n *Node) Closed() bool { return len(n.Free) == 0 }

// Deps returns the nodes n reads from, including a fixpoint body.
func (n *Node) Deps() []*Node {
	if n.Body == nil {
		return n.Inputs
	}
	return append(append([]*Node(nil), n.Inputs...), n.Body)
}

// LabelSpec declares the dtype and feature width of node or edge labels.
type LabelSpec struct {
	DType tensor.DType `json:"dtype"`
	Width int          `json:"width"`
}

// InputSpec declares the shape of the inputs a model is compiled for.
type InputSpec struct {
	Node      LabelSpec  `json:"node"`
	Edge      *LabelSpec `json:"edge,omitempty"`
	Adjacency bool       `json:"adjacency"`
	Batched   bool       `json:"batched"`
}

// HasEdgeLabels reports whether edge labels are part of the input.
func (s InputSpec) HasEdgeLabels() bool { return s.Edge != nil }

// Inputs is the number of input tensors: node labels, adjacency, edge
// labels and graph index, as far as present.
func (s InputSpec) Inputs() int {
	n := 1
	if s.Adjacency {
		n++
	}
	if s.Edge != nil {
		n++
	}
	if s.Batched {
		n++
	}
	return n
}

// Mode names the configuration: x, xa or xae, with an i suffix when batched.
func (s InputSpec) Mode() string {
	var b strings.Builder
	b.WriteByte('x')
	if s.Adjacency {
		b.WriteByte('a')
	}
	if s.Edge != nil {
		b.WriteByte('e')
	}
	if s.Batched {
		b.WriteByte('i')
	}
	return b.String()
}

// Validate reports every inconsistency of the spec.
func (s InputSpec) Validate() error {
	var err error
	if s.Node.Width <= 0 {
		err = multierr.Append(err, fmt.Errorf("node label width must be positive, got %d", s.Node.Width))
	}
	if s.Edge != nil {
		if !s.Adjacency {
			err = multierr.Append(err, fmt.Errorf("edge labels require adjacency"))
		}
		if s.Edge.Width <= 0 {
			err = multierr.Append(err, fmt.Errorf("edge label width must be positive, got %d", s.Edge.Width))
		}
	}
	return err
}
