package ir_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/hanpama/mgc/internal/ir"
	"github.com/hanpama/mgc/internal/tensor"
)

func TestInputSpecMode(t *testing.T) {
	node := ir.LabelSpec{DType: tensor.Uint8, Width: 1}
	cases := []struct {
		spec   ir.InputSpec
		mode   string
		inputs int
	}{
		{ir.InputSpec{Node: node}, "x", 1},
		{ir.InputSpec{Node: node, Batched: true}, "xi", 2},
		{ir.InputSpec{Node: node, Adjacency: true}, "xa", 2},
		{ir.InputSpec{Node: node, Adjacency: true, Batched: true}, "xai", 3},
		{ir.InputSpec{Node: node, Adjacency: true, Edge: &node}, "xae", 3},
		{ir.InputSpec{Node: node, Adjacency: true, Edge: &node, Batched: true}, "xaei", 4},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.mode, tc.spec.Mode())
		assert.Equal(t, tc.inputs, tc.spec.Inputs(), tc.mode)
		assert.NoError(t, tc.spec.Validate(), tc.mode)
	}
}

func TestInputSpecValidateCollectsAll(t *testing.T) {
	spec := ir.InputSpec{Edge: &ir.LabelSpec{}}
	err := spec.Validate()
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 3)
}

func chain() (*ir.Node, *ir.Node) {
	x := &ir.Node{ID: 0, Key: "x", Kind: ir.KindInput, Width: 1}
	a := &ir.Node{ID: 1, Key: "a(x)", Kind: ir.KindPsi, OpName: "a", Inputs: []*ir.Node{x}, Width: 1}
	v := &ir.Node{ID: 2, Key: "var:0:b", Kind: ir.KindVariable, Binder: &ir.Binder{Name: "X", Var: "var:0:b", Base: "b"}, Width: 1, Free: []string{"var:0:b"}}
	body := &ir.Node{ID: 3, Key: "concat(a(x),var:0:b)", Kind: ir.KindConcat, Inputs: []*ir.Node{a, v}, Width: 2, Free: []string{"var:0:b"}}
	or := &ir.Node{ID: 4, Key: "or(concat(a(x),var:0:b))", Kind: ir.KindPsi, OpName: "or", Inputs: []*ir.Node{body}, Width: 1, Free: []string{"var:0:b"}}
	fix := &ir.Node{ID: 5, Key: "mu var:0:b.{or(concat(a(x),var:0:b))}", Kind: ir.KindFixPoint, Body: or, Width: 1,
		Binder: &ir.Binder{Least: true, Name: "X", Var: "var:0:b", Base: "b", Init: []float64{0}}}
	return fix, a
}

func TestCollectOrdersDependenciesFirst(t *testing.T) {
	fix, _ := chain()
	nodes := ir.Collect(fix)
	ids := make([]int, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	if diff := cmp.Diff([]int{0, 1, 2, 3, 4, 5}, ids); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestLayersCountsFixpointOnce(t *testing.T) {
	fix, a := chain()
	out := &ir.Node{ID: 6, Key: "concat(a(x),fix)", Kind: ir.KindConcat, Inputs: []*ir.Node{a, fix}, Width: 2}
	spec := ir.InputSpec{Node: ir.LabelSpec{DType: tensor.Uint8, Width: 1}, Adjacency: true}

	m := ir.NewModel("a || mu X,b.((a || X);or)", spec, out)
	// x and adjacency inputs, a, the fixpoint and the outer concat.
	assert.Equal(t, 5, m.Layers())
	assert.Len(t, m.Nodes, 7)

	summary := m.Summary()
	assert.True(t, strings.HasPrefix(summary, "formula: a || mu X,b.((a || X);or)\nmode: xa  layers: 5  nodes: 7\n"), summary)
	assert.Contains(t, summary, "mu X,b body=#4")
	assert.Contains(t, summary, "<- output")
}

func TestNodeName(t *testing.T) {
	_, a := chain()
	same := &ir.Node{Key: a.Key, Kind: ir.KindPsi}
	assert.Equal(t, a.Name(), same.Name())
	assert.True(t, strings.HasPrefix(a.Name(), "psi_"))
	assert.Len(t, a.Name(), len("psi_")+16)
}
