// Package config loads compiler configurations from HCL files.
//
// A file declares the input mode, the label shapes, the fixpoint lattices
// binders may name and aliases for registered operators:
//
//	batched        = false
//	adjacency      = true
//	max_iterations = 1000
//
//	node {
//	  dtype = "uint8"
//	  width = 1
//	}
//
//	edge {
//	  dtype = "uint8"
//	  width = 1
//	}
//
//	fixpoint "b" {
//	  dtype  = "bool"
//	  width  = 1
//	  bottom = false
//	  top    = true
//	}
//
//	psi "first" { use = "bit[0]" }
//	sigma "any" { use = "or" }
package config

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
	"go.uber.org/multierr"

	"github.com/hanpama/mgc/internal/compiler"
	"github.com/hanpama/mgc/internal/ir"
	"github.com/hanpama/mgc/internal/operator"
	"github.com/hanpama/mgc/internal/tensor"
)

// hclFile is the top-level structure of a configuration file.
type hclFile struct {
	Batched       *bool          `hcl:"batched,optional"`
	Adjacency     *bool          `hcl:"adjacency,optional"`
	MaxIterations int            `hcl:"max_iterations,optional"`
	Node          *hclLabels     `hcl:"node,block"`
	Edge          *hclLabels     `hcl:"edge,block"`
	FixPoints     []*hclFixPoint `hcl:"fixpoint,block"`
	Psi           []*hclAlias    `hcl:"psi,block"`
	Sigma         []*hclAlias    `hcl:"sigma,block"`
	Phi           []*hclAlias    `hcl:"phi,block"`
}

type hclLabels struct {
	DType string `hcl:"dtype,optional"`
	Width int    `hcl:"width,optional"`
}

type hclFixPoint struct {
	Name   string         `hcl:"name,label"`
	DType  string         `hcl:"dtype,optional"`
	Width  int            `hcl:"width,optional"`
	Bottom hcl.Expression `hcl:"bottom,optional"`
	Top    hcl.Expression `hcl:"top,optional"`
}

type hclAlias struct {
	Name string `hcl:"name,label"`
	Use  string `hcl:"use"`
}

// Alias registers Name in the Role registry as the operator Use resolves to.
type Alias struct {
	Role string
	Name string
	Use  string
}

// File is a decoded configuration file.
type File struct {
	Compiler compiler.Config
	Aliases  []Alias
}

// Load reads and decodes the HCL file at path.
func Load(path string) (*File, error) {
	f, diags := hclparse.NewParser().ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", path, diags)
	}
	return decode(path, f)
}

// Parse decodes HCL source; filename is used in diagnostics only.
func Parse(src []byte, filename string) (*File, error) {
	f, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}
	return decode(filename, f)
}

func decode(filename string, f *hcl.File) (*File, error) {
	var parsed hclFile
	if diags := gohcl.DecodeBody(f.Body, nil, &parsed); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", filename, diags)
	}

	var errs error
	out := &File{}
	spec := ir.InputSpec{Adjacency: true}
	if parsed.Adjacency != nil {
		spec.Adjacency = *parsed.Adjacency
	}
	if parsed.Batched != nil {
		spec.Batched = *parsed.Batched
	}
	if parsed.Node == nil {
		errs = multierr.Append(errs, fmt.Errorf("a node block is required"))
	} else {
		node, err := labels("node", parsed.Node)
		errs = multierr.Append(errs, err)
		spec.Node = node
	}
	if parsed.Edge != nil {
		edge, err := labels("edge", parsed.Edge)
		errs = multierr.Append(errs, err)
		spec.Edge = &edge
	}

	cfg := compiler.Config{Input: spec, FixPoints: map[string]compiler.FixPointConfig{}, MaxIterations: parsed.MaxIterations}
	for _, fp := range parsed.FixPoints {
		if _, dup := cfg.FixPoints[fp.Name]; dup {
			errs = multierr.Append(errs, fmt.Errorf("fixpoint %q declared twice", fp.Name))
			continue
		}
		c, err := fixpoint(fp)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		cfg.FixPoints[fp.Name] = c
	}
	for role, as := range map[string][]*hclAlias{"psi": parsed.Psi, "sigma": parsed.Sigma, "phi": parsed.Phi} {
		for _, a := range as {
			out.Aliases = append(out.Aliases, Alias{Role: role, Name: a.Name, Use: a.Use})
		}
	}
	sortAliases(out.Aliases)

	if errs == nil {
		errs = cfg.Validate()
	}
	if errs != nil {
		return nil, fmt.Errorf("invalid configuration %s: %w", filename, errs)
	}
	out.Compiler = cfg
	return out, nil
}

func labels(block string, l *hclLabels) (ir.LabelSpec, error) {
	spec := ir.LabelSpec{DType: tensor.Float64, Width: l.Width}
	if spec.Width == 0 {
		spec.Width = 1
	}
	if l.DType != "" {
		dt, err := tensor.ParseDType(l.DType)
		if err != nil {
			return spec, fmt.Errorf("%s: %w", block, err)
		}
		spec.DType = dt
	}
	return spec, nil
}

func fixpoint(b *hclFixPoint) (compiler.FixPointConfig, error) {
	c := compiler.FixPointConfig{DType: tensor.Bool, Width: b.Width}
	if c.Width == 0 {
		c.Width = 1
	}
	var errs error
	if b.DType != "" {
		dt, err := tensor.ParseDType(b.DType)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("fixpoint %q: %w", b.Name, err))
		}
		c.DType = dt
	}
	bottom, err := values(b.Bottom)
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("fixpoint %q bottom: %w", b.Name, err))
	}
	top, err := values(b.Top)
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("fixpoint %q top: %w", b.Name, err))
	}
	c.Bottom, c.Top = bottom, top
	return c, errs
}

// values evaluates a bool, a number or a tuple of them. A missing attribute
// yields nil.
func values(expr hcl.Expression) ([]float64, error) {
	if expr == nil {
		return nil, nil
	}
	v, diags := expr.Value(nil)
	if diags.HasErrors() {
		return nil, diags
	}
	if v.IsNull() {
		return nil, nil
	}
	if !v.IsKnown() {
		return nil, fmt.Errorf("value is not known")
	}
	ty := v.Type()
	if ty.IsListType() || ty.IsTupleType() {
		var out []float64
		it := v.ElementIterator()
		for it.Next() {
			_, el := it.Element()
			f, err := scalar(el)
			if err != nil {
				return nil, err
			}
			out = append(out, f)
		}
		if len(out) == 0 {
			return nil, fmt.Errorf("empty list")
		}
		return out, nil
	}
	f, err := scalar(v)
	if err != nil {
		return nil, err
	}
	return []float64{f}, nil
}

func scalar(v cty.Value) (float64, error) {
	switch {
	case v.IsNull():
		return 0, fmt.Errorf("null element")
	case v.Type() == cty.Bool:
		if v.True() {
			return 1, nil
		}
		return 0, nil
	case v.Type() == cty.Number:
		var f float64
		if err := gocty.FromCtyValue(v, &f); err != nil {
			return 0, fmt.Errorf("could not convert number: %w", err)
		}
		return f, nil
	}
	return 0, fmt.Errorf("expected bool or number, got %s", v.Type().FriendlyName())
}

// Apply registers the file's aliases in ops.
func (f *File) Apply(ops operator.Registries) error {
	var errs error
	for _, a := range f.Aliases {
		if err := ops.Alias(a.Role, a.Name, a.Use); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s %q: %w", a.Role, a.Name, err))
		}
	}
	return errs
}

// Registries returns the builtin registries extended with the file's
// aliases.
func (f *File) Registries() (operator.Registries, error) {
	ops := operator.Defaults()
	if err := f.Apply(ops); err != nil {
		return operator.Registries{}, err
	}
	return ops, nil
}
