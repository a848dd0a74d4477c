// Package graphtest provides the small labelled graphs shared by tests.
package graphtest

import (
	"github.com/hanpama/mgc/internal/graph"
	"github.com/hanpama/mgc/internal/tensor"
)

// FiveNodes returns the five node directed graph used throughout the tests:
//
//	labels: [1, 2, 4, 1, 1]
//	edges:  0->1 0->2 1->2 2->1 2->3 3->4 4->1
//	edge labels (when requested): [1, 0, 0, 0, 1, 1, 1]
func FiveNodes(edgeLabels bool) *graph.Graph {
	g := &graph.Graph{
		X: tensor.Column(tensor.Uint8, 1, 2, 4, 1, 1),
		Edges: []graph.Edge{
			{Src: 0, Dst: 1}, {Src: 0, Dst: 2}, {Src: 1, Dst: 2}, {Src: 2, Dst: 1},
			{Src: 2, Dst: 3}, {Src: 3, Dst: 4}, {Src: 4, Dst: 1},
		},
	}
	if edgeLabels {
		g.E = tensor.Column(tensor.Uint8, 1, 0, 0, 0, 1, 1, 1)
	}
	return g
}

// Copies returns n independent copies of FiveNodes.
func Copies(n int, edgeLabels bool) []*graph.Graph {
	gs := make([]*graph.Graph, n)
	for i := range gs {
		gs[i] = FiveNodes(edgeLabels)
	}
	return gs
}
