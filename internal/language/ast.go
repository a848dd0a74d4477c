package language

import "strings"

// Expr is a formula node. Key renders the node as canonical formula text
// that parses back to a structurally equal tree.
type Expr interface {
	Position() Position
	Key() string
	expr()
}

// Atom references a psi operator by name, optionally parameterised.
type Atom struct {
	Name   string
	Arg    string
	HasArg bool
	Pos    Position
}

// Sequential applies Left and then Right to its output.
type Sequential struct {
	Left  Expr
	Right Expr
	Pos   Position
}

// Parallel applies every child to the same input and concatenates the
// results feature-wise, in order.
type Parallel struct {
	Children []Expr
	Pos      Position
}

// RightDiamond passes messages along edges and aggregates them at edge
// targets. Phi is empty when the source labels are the messages.
type RightDiamond struct {
	Sigma string
	Phi   string
	Pos   Position
}

// LeftDiamond passes messages against edge direction and aggregates them at
// edge sources. Phi is empty when the target labels are the messages.
type LeftDiamond struct {
	Sigma string
	Phi   string
	Pos   Position
}

// FixPoint binds Var in Body. Least selects mu, otherwise nu. Base names the
// fixpoint configuration supplying the initial labels and their shape.
type FixPoint struct {
	Least bool
	Var   string
	Base  string
	Body  Expr
	Pos   Position
}

// Variable references the label assignment of an enclosing FixPoint.
type Variable struct {
	Name string
	Pos  Position
}

func (*Atom) expr()         {}
func (*Sequential) expr()   {}
func (*Parallel) expr()     {}
func (*RightDiamond) expr() {}
func (*LeftDiamond) expr()  {}
func (*FixPoint) expr()     {}
func (*Variable) expr()     {}

func (e *Atom) Position() Position         { return e.Pos }
func (e *Sequential) Position() Position   { return e.Pos }
func (e *Parallel) Position() Position     { return e.Pos }
func (e *RightDiamond) Position() Position { return e.Pos }
func (e *LeftDiamond) Position() Position  { return e.Pos }
func (e *FixPoint) Position() Position     { return e.Pos }
func (e *Variable) Position() Position     { return e.Pos }

// OperatorKey returns the registry key of the atom, e.g. bit[2].
func (e *Atom) OperatorKey() string {
	if e.HasArg {
		return e.Name + "[" + e.Arg + "]"
	}
	return e.Name
}

func (e *Atom) Key() string { return e.OperatorKey() }

func (e *Sequential) Key() string { return "(" + e.Left.Key() + ";" + e.Right.Key() + ")" }

func (e *Parallel) Key() string {
	parts := make([]string, len(e.Children))
	for i, c := range e.Children {
		parts[i] = c.Key()
	}
	return "(" + strings.Join(parts, "||") + ")"
}

func (e *RightDiamond) Key() string { return "|" + e.Phi + ">" + e.Sigma }

func (e *LeftDiamond) Key() string { return "<" + e.Phi + "|" + e.Sigma }

func (e *FixPoint) Key() string {
	binder := "nu"
	if e.Least {
		binder = "mu"
	}
	return binder + " " + e.Var + "," + e.Base + "." + e.Body.Key()
}

func (e *Variable) Key() string { return e.Name }

// Walk calls fn for e and every node below it, parents first. Returning
// false skips the children of the current node.
func Walk(e Expr, fn func(Expr) bool) {
	if e == nil || !fn(e) {
		return
	}
	switch n := e.(type) {
	case *Sequential:
		Walk(n.Left, fn)
		Walk(n.Right, fn)
	case *Parallel:
		for _, c := range n.Children {
			Walk(c, fn)
		}
	case *FixPoint:
		Walk(n.Body, fn)
	}
}
