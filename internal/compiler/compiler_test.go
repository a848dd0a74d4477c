package compiler

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/hanpama/mgc/internal/eventbus"
	"github.com/hanpama/mgc/internal/events"
	"github.com/hanpama/mgc/internal/ir"
	"github.com/hanpama/mgc/internal/language"
	"github.com/hanpama/mgc/internal/operator"
	"github.com/hanpama/mgc/internal/tensor"
)

var (
	nodeSpec = ir.LabelSpec{DType: tensor.Uint8, Width: 1}
	edgeSpec = ir.LabelSpec{DType: tensor.Uint8, Width: 1}
)

func newCompiler(t *testing.T, cfg Config) *Compiler {
	t.Helper()
	c, err := New(operator.Defaults(), cfg.WithFixPoint("b", BoolFixPoint(1)))
	require.NoError(t, err)
	return c
}

func TestSharingAcrossCompilations(t *testing.T) {
	ctx := context.Background()
	c := newCompiler(t, XAConfig(nodeSpec))
	assert.Equal(t, 1, c.Len())

	first, err := c.Compile(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())

	second, err := c.Compile(ctx, "(a || b);or")
	require.NoError(t, err)
	assert.Equal(t, 5, c.Len())
	concat := second.Output.Inputs[0]
	require.Equal(t, ir.KindConcat, concat.Kind)
	assert.Same(t, first.Output, concat.Inputs[0])

	third, err := c.Compile(ctx, "a;not")
	require.NoError(t, err)
	assert.Equal(t, 6, c.Len())
	assert.Same(t, first.Output, third.Output.Inputs[0])

	again, err := c.Compile(ctx, "(a || b);or")
	require.NoError(t, err)
	assert.Equal(t, 6, c.Len())
	assert.Same(t, second.Output, again.Output)
}

func TestSequentialIsAssociative(t *testing.T) {
	ctx := context.Background()
	c := newCompiler(t, XAConfig(nodeSpec))
	left, err := c.Compile(ctx, "(a;not);not")
	require.NoError(t, err)
	right, err := c.Compile(ctx, "a;(not;not)")
	require.NoError(t, err)
	assert.Same(t, left.Output, right.Output)
}

func TestReuseLayers(t *testing.T) {
	cases := []struct {
		name    string
		cfg     Config
		formula string
		layers  int
	}{
		{"xa", XAConfig(nodeSpec), "a || ((a || b);or) || (b ; |> or) || mu X,b . ((a || X) ; or) || (a ; not)", 10},
		{"xai", XAIConfig(nodeSpec), "a || ((a || b);or) || (b ; |> or) || mu X,b . ((a || X) ; or) || (a ; not)", 11},
		{"xae", XAEConfig(nodeSpec, edgeSpec), "a || ((a || b);or) || (b ; <z| uor) || mu X,b . (((b ; <z| uor) || X);or) || (a ; not)", 11},
		{"xaei", XAEIConfig(nodeSpec, edgeSpec), "a || ((a || b);or) || (b ; <z| uor) || mu X,b . (((b ; <z| uor) || X);or) || (a ; not)", 12},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newCompiler(t, tc.cfg)
			m, err := c.Compile(context.Background(), tc.formula)
			require.NoError(t, err)
			assert.Equal(t, tc.layers, m.Layers())
			assert.Equal(t, 5, m.Output.Width)
		})
	}
}

func TestFixpointsShareBodies(t *testing.T) {
	ctx := context.Background()
	c := newCompiler(t, XAConfig(nodeSpec))
	mu, err := c.Compile(ctx, "mu X,b . (X ; |> or)")
	require.NoError(t, err)
	assert.Equal(t, 4, c.Len())
	nu, err := c.Compile(ctx, "nu X,b . (X ; |> or)")
	require.NoError(t, err)
	assert.Equal(t, 5, c.Len())

	assert.NotSame(t, mu.Output, nu.Output)
	assert.Same(t, mu.Output.Body, nu.Output.Body)
	assert.Equal(t, []float64{0}, mu.Output.Binder.Init)
	assert.Equal(t, []float64{1}, nu.Output.Binder.Init)
	assert.True(t, mu.Output.Closed())
	assert.Equal(t, []string{"var:0:b"}, mu.Output.Body.Free)
}

func TestVariablesKeyedByBinderDepth(t *testing.T) {
	ctx := context.Background()
	c := newCompiler(t, XAConfig(nodeSpec))
	shadowed, err := c.Compile(ctx, "nu X,b . (X ; mu X,b . ((X || a);or))")
	require.NoError(t, err)
	n := c.Len()

	inner := shadowed.Output.Body
	require.Equal(t, ir.KindFixPoint, inner.Kind)
	assert.Equal(t, "var:1:b", inner.Binder.Var)
	assert.Equal(t, []string{"var:0:b"}, inner.Free)
	assert.False(t, inner.Closed())
	assert.True(t, shadowed.Output.Closed())

	renamed, err := c.Compile(ctx, "nu Y,b . (Y ; mu Z,b . ((Z || a);or))")
	require.NoError(t, err)
	assert.Same(t, shadowed.Output, renamed.Output)
	assert.Equal(t, n, c.Len())
}

func TestConcurrentCompile(t *testing.T) {
	c := newCompiler(t, XAConfig(nodeSpec))
	const workers, formulas = 8, 50

	var wg sync.WaitGroup
	errs := make(chan error, workers*formulas)
	for g := 0; g < workers; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < formulas; i++ {
				if _, err := c.Compile(context.Background(), fmt.Sprintf("const[%d];not", g*formulas+i)); err != nil {
					errs <- err
				}
			}
		}(g)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	// input, then const[i](x) and not(const[i](x)) per formula
	assert.Equal(t, 1+2*workers*formulas, c.Len())
}

func TestWidthInference(t *testing.T) {
	c := newCompiler(t, XAConfig(ir.LabelSpec{DType: tensor.Uint8, Width: 3}))
	cases := map[string]int{
		"a":              3,
		"a || b":         6,
		"(a || b);or":    1,
		"a ; |> or":      3,
		"(gsum || one)":  6,
		"mu X,b.(X;not)": 1,
	}
	for formula, width := range cases {
		m, err := c.Compile(context.Background(), formula)
		require.NoError(t, err, formula)
		assert.Equal(t, width, m.Output.Width, formula)
	}
}

func TestCompileErrors(t *testing.T) {
	c := newCompiler(t, XAConfig(nodeSpec))
	cases := []struct {
		formula string
		target  error
	}{
		{"zzz", operator.ErrUnknownOperator},
		{"a ; |> nope", operator.ErrUnknownOperator},
		{"a ; |q> or", operator.ErrUnknownOperator},
		{"mu X,q . (X)", operator.ErrUnknownOperator},
		{"bit[x]", nil},
		{"mu X,b . (X || a)", tensor.ErrShape},
		{"mu X,b . (a || X)", tensor.ErrShape},
		{"(a ||", language.ErrSyntax},
	}
	for _, tc := range cases {
		_, err := c.Compile(context.Background(), tc.formula)
		require.Error(t, err, tc.formula)
		if tc.target != nil {
			assert.ErrorIs(t, err, tc.target, tc.formula)
		}
	}
}

func TestDiamondNeedsAdjacency(t *testing.T) {
	c := newCompiler(t, XConfig(nodeSpec))
	_, err := c.Compile(context.Background(), "a ; |> or")
	var mm *operator.ModeMismatchError
	require.ErrorAs(t, err, &mm)
	assert.Equal(t, "|>or", mm.Op)

	_, err = c.Compile(context.Background(), "a ; not")
	assert.NoError(t, err)
}

func TestUnboundVariable(t *testing.T) {
	c := newCompiler(t, XAConfig(nodeSpec))
	expr := &language.Sequential{
		Left:  &language.Atom{Name: "a"},
		Right: &language.Variable{Name: "X", Pos: language.Position{Line: 1, Column: 4, Offset: 3}},
	}
	_, err := c.CompileExpr(context.Background(), expr)
	var uv *UnboundVariableError
	require.ErrorAs(t, err, &uv)
	assert.Equal(t, "X", uv.Name)
	assert.ErrorIs(t, err, ErrUnboundVariable)
}

func TestMissingInitialValue(t *testing.T) {
	cfg := XAConfig(nodeSpec).WithFixPoint("lo", FixPointConfig{Width: 1, DType: tensor.Bool, Bottom: []float64{0}})
	c, err := New(operator.Defaults(), cfg)
	require.NoError(t, err)

	_, err = c.Compile(context.Background(), "mu X,lo . (X ; |> or)")
	require.NoError(t, err)
	_, err = c.Compile(context.Background(), "nu X,lo . (X ; |> or)")
	require.Error(t, err)
}

func TestConfigValidation(t *testing.T) {
	cfg := Config{
		Input: ir.InputSpec{Node: ir.LabelSpec{Width: 0}},
		FixPoints: map[string]FixPointConfig{
			"empty": {Width: 1},
			"wide":  {Width: 2, Bottom: []float64{0, 0, 0}},
		},
		MaxIterations: -1,
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 4)

	_, err = New(operator.Defaults(), cfg)
	assert.Error(t, err)
}

func TestFixPointInit(t *testing.T) {
	fp := FixPointConfig{Width: 3, DType: tensor.Uint8, Bottom: []float64{0}, Top: []float64{1, 2, 300}}
	row, err := fp.Init(true)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0}, row)
	row, err = fp.Init(false)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 44}, row)
}

func TestCompileEvents(t *testing.T) {
	eventbus.Use(eventbus.New())
	defer eventbus.Use(nil)

	var finishes []events.CompileFinish
	defer eventbus.Subscribe(func(_ context.Context, e events.CompileFinish) {
		finishes = append(finishes, e)
	})()

	c := newCompiler(t, XAConfig(nodeSpec))
	_, err := c.Compile(context.Background(), "a;not")
	require.NoError(t, err)
	_, err = c.Compile(context.Background(), "a || (a;not)")
	require.NoError(t, err)
	_, err = c.Compile(context.Background(), "nope")
	require.Error(t, err)

	require.Len(t, finishes, 3)
	assert.Equal(t, 2, finishes[0].Created)
	assert.Equal(t, 1, finishes[1].Created)
	assert.Equal(t, 3, finishes[1].Reused)
	assert.Equal(t, "xa", finishes[1].Mode)
	assert.Equal(t, 5, finishes[1].Layers)
	assert.Error(t, finishes[2].Err)
}

func TestCompileHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := newCompiler(t, XAConfig(nodeSpec))
	_, err := c.Compile(ctx, "a")
	assert.ErrorIs(t, err, context.Canceled)
}
