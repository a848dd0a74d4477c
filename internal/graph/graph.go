// Package graph holds the graphs a compiled model is evaluated on, and turns
// one graph or a batch of graphs into the flat Input the executor consumes.
//
// A batch is a disjoint union: node labels are stacked, edge endpoints are
// shifted by the number of nodes of the preceding graphs, and a per-node
// graph-index vector records which graph every node came from.
package graph

import (
	"errors"
	"fmt"

	"github.com/hanpama/mgc/internal/tensor"
)

var (
	ErrNoNodeLabels   = errors.New("graph: node labels are required")
	ErrEdgeOutOfRange = errors.New("graph: edge endpoint out of range")
	ErrEdgeLabels     = errors.New("graph: edge labels do not match edges")
	ErrEmptyBatch     = errors.New("graph: empty batch")
)

// Edge is a directed edge between two node positions.
type Edge struct {
	Src int
	Dst int
}

// Graph is one labelled, directed graph. E is optional; when present it has
// one row per edge, in Edges order.
type Graph struct {
	X     *tensor.Tensor
	Edges []Edge
	E     *tensor.Tensor
}

// Validate checks the structural consistency of g.
func (g *Graph) Validate() error {
	if g.X == nil {
		return ErrNoNodeLabels
	}
	n := g.X.Rows()
	for i, e := range g.Edges {
		if e.Src < 0 || e.Src >= n || e.Dst < 0 || e.Dst >= n {
			return fmt.Errorf("%w: edge %d (%d->%d) with %d nodes", ErrEdgeOutOfRange, i, e.Src, e.Dst, n)
		}
	}
	if g.E != nil && g.E.Rows() != len(g.Edges) {
		return fmt.Errorf("%w: %d label rows for %d edges", ErrEdgeLabels, g.E.Rows(), len(g.Edges))
	}
	return nil
}

// Input is the evaluation-time view of one graph or a disjoint union of
// graphs. Index is nil for a single graph.
type Input struct {
	X       *tensor.Tensor
	Sources []int
	Targets []int
	E       *tensor.Tensor
	Index   []int
}

// Nodes returns the total number of nodes.
func (in *Input) Nodes() int { return in.X.Rows() }

// Batched reports whether in carries a graph-index vector.
func (in *Input) Batched() bool { return in.Index != nil }

// HasEdgeLabels reports whether edge labels are present.
func (in *Input) HasEdgeLabels() bool { return in.E != nil }

// Single wraps one graph without a graph index.
func Single(g *Graph) (*Input, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	in := &Input{X: g.X, E: g.E}
	in.Sources, in.Targets = endpoints(g.Edges, 0)
	return in, nil
}

// Batch builds the disjoint union of gs. Either all graphs carry edge labels
// or none does.
func Batch(gs ...*Graph) (*Input, error) {
	if len(gs) == 0 {
		return nil, ErrEmptyBatch
	}
	var (
		xs     = make([]*tensor.Tensor, 0, len(gs))
		es     []*tensor.Tensor
		in     = &Input{Index: []int{}}
		offset int
	)
	for i, g := range gs {
		if err := g.Validate(); err != nil {
			return nil, fmt.Errorf("graph %d: %w", i, err)
		}
		if (g.E != nil) != (gs[0].E != nil) {
			return nil, fmt.Errorf("graph %d: %w: edge labels must be present in all graphs or none", i, ErrEdgeLabels)
		}
		xs = append(xs, g.X)
		if g.E != nil {
			es = append(es, g.E)
		}
		src, dst := endpoints(g.Edges, offset)
		in.Sources = append(in.Sources, src...)
		in.Targets = append(in.Targets, dst...)
		for k := 0; k < g.X.Rows(); k++ {
			in.Index = append(in.Index, i)
		}
		offset += g.X.Rows()
	}
	x, err := tensor.Stack(xs...)
	if err != nil {
		return nil, fmt.Errorf("stack node labels: %w", err)
	}
	in.X = x
	if len(es) > 0 {
		if in.E, err = tensor.Stack(es...); err != nil {
			return nil, fmt.Errorf("stack edge labels: %w", err)
		}
	}
	return in, nil
}

func endpoints(edges []Edge, offset int) (src, dst []int) {
	src = make([]int, len(edges))
	dst = make([]int, len(edges))
	for i, e := range edges {
		src[i] = e.Src + offset
		dst[i] = e.Dst + offset
	}
	return src, dst
}
