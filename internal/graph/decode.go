package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/hanpama/mgc/internal/tensor"
)

// Document is the JSON form of a graph:
//
//	{"x": [[1],[2]], "edges": [[0,1]], "e": [[0]]}
type Document struct {
	X     [][]float64 `json:"x"`
	Edges [][2]int    `json:"edges,omitempty"`
	E     [][]float64 `json:"e,omitempty"`
}

// Graph converts the document, casting node labels to nodeType and edge
// labels to edgeType.
func (d Document) Graph(nodeType, edgeType tensor.DType) (*Graph, error) {
	if d.X == nil {
		return nil, ErrNoNodeLabels
	}
	x, err := tensor.FromRows(d.X, nodeType)
	if err != nil {
		return nil, fmt.Errorf("node labels: %w", err)
	}
	g := &Graph{X: x, Edges: make([]Edge, len(d.Edges))}
	for i, e := range d.Edges {
		g.Edges[i] = Edge{Src: e[0], Dst: e[1]}
	}
	if d.E != nil {
		if g.E, err = tensor.FromRows(d.E, edgeType); err != nil {
			return nil, fmt.Errorf("edge labels: %w", err)
		}
	}
	return g, g.Validate()
}

// Decode reads either a single graph document or an array of them.
func Decode(r io.Reader, nodeType, edgeType tensor.DType) ([]*Graph, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	raw = bytes.TrimSpace(raw)
	var docs []Document
	if len(raw) > 0 && raw[0] == '[' {
		if err := json.Unmarshal(raw, &docs); err != nil {
			return nil, fmt.Errorf("graph: invalid JSON: %w", err)
		}
	} else {
		var d Document
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("graph: invalid JSON: %w", err)
		}
		docs = []Document{d}
	}
	if len(docs) == 0 {
		return nil, ErrEmptyBatch
	}
	gs := make([]*Graph, len(docs))
	for i, d := range docs {
		if gs[i], err = d.Graph(nodeType, edgeType); err != nil {
			return nil, fmt.Errorf("graph %d: %w", i, err)
		}
	}
	return gs, nil
}
