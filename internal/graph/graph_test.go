package graph_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hanpama/mgc/internal/graph"
	"github.com/hanpama/mgc/internal/graph/graphtest"
	"github.com/hanpama/mgc/internal/tensor"
)

func TestSingle(t *testing.T) {
	in, err := graph.Single(graphtest.FiveNodes(true))
	require.NoError(t, err)
	assert.False(t, in.Batched())
	assert.True(t, in.HasEdgeLabels())
	assert.Equal(t, 5, in.Nodes())
	assert.Equal(t, []int{0, 0, 1, 2, 2, 3, 4}, in.Sources)
	assert.Equal(t, []int{1, 2, 2, 1, 3, 4, 1}, in.Targets)
}

func TestBatchIsDisjointUnion(t *testing.T) {
	in, err := graph.Batch(graphtest.Copies(2, false)...)
	require.NoError(t, err)
	assert.True(t, in.Batched())
	assert.Equal(t, 10, in.Nodes())
	assert.Equal(t, []int{0, 0, 0, 0, 0, 1, 1, 1, 1, 1}, in.Index)
	assert.Equal(t, []int{0, 0, 1, 2, 2, 3, 4, 5, 5, 6, 7, 7, 8, 9}, in.Sources)
	assert.Equal(t, []int{1, 2, 2, 1, 3, 4, 1, 6, 7, 7, 6, 8, 9, 6}, in.Targets)
	assert.Nil(t, in.E)
}

func TestBatchRejectsMixedEdgeLabels(t *testing.T) {
	_, err := graph.Batch(graphtest.FiveNodes(true), graphtest.FiveNodes(false))
	assert.True(t, errors.Is(err, graph.ErrEdgeLabels))

	_, err = graph.Batch()
	assert.True(t, errors.Is(err, graph.ErrEmptyBatch))
}

func TestValidate(t *testing.T) {
	g := graphtest.FiveNodes(false)
	g.Edges = append(g.Edges, graph.Edge{Src: 4, Dst: 5})
	assert.True(t, errors.Is(g.Validate(), graph.ErrEdgeOutOfRange))

	g = graphtest.FiveNodes(true)
	g.Edges = g.Edges[:3]
	assert.True(t, errors.Is(g.Validate(), graph.ErrEdgeLabels))

	assert.True(t, errors.Is((&graph.Graph{}).Validate(), graph.ErrNoNodeLabels))
}

func TestDecode(t *testing.T) {
	gs, err := graph.Decode(strings.NewReader(`{"x": [[1],[2]], "edges": [[0,1]], "e": [[3]]}`), tensor.Uint8, tensor.Uint8)
	require.NoError(t, err)
	require.Len(t, gs, 1)
	assert.Equal(t, [][]float64{{1}, {2}}, gs[0].X.Values())
	assert.Equal(t, []graph.Edge{{Src: 0, Dst: 1}}, gs[0].Edges)
	assert.Equal(t, [][]float64{{3}}, gs[0].E.Values())

	gs, err = graph.Decode(strings.NewReader(` [{"x": [[1]]}, {"x": [[0]]}]`), tensor.Bool, tensor.Bool)
	require.NoError(t, err)
	assert.Len(t, gs, 2)

	_, err = graph.Decode(strings.NewReader(`{"x": [[1]], "edges": [[0, 3]]}`), tensor.Uint8, tensor.Uint8)
	assert.True(t, errors.Is(err, graph.ErrEdgeOutOfRange))

	_, err = graph.Decode(strings.NewReader(`[]`), tensor.Uint8, tensor.Uint8)
	assert.True(t, errors.Is(err, graph.ErrEmptyBatch))
}
