package compiler

import (
	"fmt"
	"sort"

	"go.uber.org/multierr"

	"github.com/hanpama/mgc/internal/ir"
	"github.com/hanpama/mgc/internal/tensor"
)

// FixPointConfig declares the label shape of a bound variable and the
// assignments it starts from: Bottom for mu, Top for nu. A value of length
// 1 is broadcast to every feature. A nil value makes the corresponding
// binder unavailable.
type FixPointConfig struct {
	Width  int
	DType  tensor.DType
	Bottom []float64
	Top    []float64
}

// BoolFixPoint is the boolean lattice of the given width: bottom all false,
// top all true.
func BoolFixPoint(width int) FixPointConfig {
	return FixPointConfig{Width: width, DType: tensor.Bool, Bottom: []float64{0}, Top: []float64{1}}
}

// Init returns the initial row for a least or greatest fixpoint.
func (f FixPointConfig) Init(least bool) ([]float64, error) {
	v, which := f.Top, "top"
	if least {
		v, which = f.Bottom, "bottom"
	}
	switch {
	case v == nil:
		return nil, fmt.Errorf("no %s value", which)
	case len(v) == f.Width:
		row := make([]float64, f.Width)
		for i, x := range v {
			row[i] = f.DType.Cast(x)
		}
		return row, nil
	case len(v) == 1:
		row := make([]float64, f.Width)
		for i := range row {
			row[i] = f.DType.Cast(v[0])
		}
		return row, nil
	}
	return nil, tensor.Shapef("fixpoint", "%s has %d values for width %d", which, len(v), f.Width)
}

func (f FixPointConfig) validate(name string) error {
	if f.Width <= 0 {
		return fmt.Errorf("fixpoint %q: width must be positive, got %d", name, f.Width)
	}
	var err error
	if f.Bottom == nil && f.Top == nil {
		err = multierr.Append(err, fmt.Errorf("fixpoint %q: neither bottom nor top is set", name))
	}
	if f.Bottom != nil {
		if _, e := f.Init(true); e != nil {
			err = multierr.Append(err, fmt.Errorf("fixpoint %q: %w", name, e))
		}
	}
	if f.Top != nil {
		if _, e := f.Init(false); e != nil {
			err = multierr.Append(err, fmt.Errorf("fixpoint %q: %w", name, e))
		}
	}
	return err
}

// Config declares the inputs a compiler targets, the fixpoint lattices
// binders may name, and the evaluation iteration guard (0 selects the
// executor default).
type Config struct {
	Input         ir.InputSpec
	FixPoints     map[string]FixPointConfig
	MaxIterations int
}

// XConfig targets node labels only, one graph at a time.
func XConfig(node ir.LabelSpec) Config { return Config{Input: ir.InputSpec{Node: node}} }

// XIConfig targets node labels of batched graphs.
func XIConfig(node ir.LabelSpec) Config {
	return Config{Input: ir.InputSpec{Node: node, Batched: true}}
}

// XAConfig targets node labels and adjacency of one graph.
func XAConfig(node ir.LabelSpec) Config {
	return Config{Input: ir.InputSpec{Node: node, Adjacency: true}}
}

// XAIConfig targets node labels and adjacency of batched graphs.
func XAIConfig(node ir.LabelSpec) Config {
	return Config{Input: ir.InputSpec{Node: node, Adjacency: true, Batched: true}}
}

// XAEConfig targets node labels, adjacency and edge labels of one graph.
func XAEConfig(node, edge ir.LabelSpec) Config {
	return Config{Input: ir.InputSpec{Node: node, Edge: &edge, Adjacency: true}}
}

// XAEIConfig targets node labels, adjacency and edge labels of batched
// graphs.
func XAEIConfig(node, edge ir.LabelSpec) Config {
	return Config{Input: ir.InputSpec{Node: node, Edge: &edge, Adjacency: true, Batched: true}}
}

// WithFixPoint returns a copy of c that also declares name.
func (c Config) WithFixPoint(name string, f FixPointConfig) Config {
	fps := make(map[string]FixPointConfig, len(c.FixPoints)+1)
	for k, v := range c.FixPoints {
		fps[k] = v
	}
	fps[name] = f
	c.FixPoints = fps
	return c
}

// Validate reports every problem of the configuration at once.
func (c Config) Validate() error {
	err := c.Input.Validate()
	names := make([]string, 0, len(c.FixPoints))
	for name := range c.FixPoints {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		err = multierr.Append(err, c.FixPoints[name].validate(name))
	}
	if c.MaxIterations < 0 {
		err = multierr.Append(err, fmt.Errorf("max iterations must not be negative, got %d", c.MaxIterations))
	}
	return err
}
