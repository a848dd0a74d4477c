package ir

import (
	"fmt"
	"strings"
)

// Model is a compiled formula: the output node of a shared computation DAG
// plus the input shape it was compiled for.
type Model struct {
	Formula string    `json:"formula"`
	Spec    InputSpec `json:"spec"`
	Output  *Node     `json:"output"`
	// Nodes holds every node reachable from Output, fixpoint bodies
	// included, dependencies first.
	Nodes []*Node `json:"nodes"`
}

// NewModel collects the nodes reachable from out.
func NewModel(formula string, spec InputSpec, out *Node) *Model {
	return &Model{Formula: formula, Spec: spec, Output: out, Nodes: Collect(out)}
}

// Collect returns the nodes reachable from out in dependency order.
func Collect(out *Node) []*Node {
	var order []*Node
	seen := make(map[*Node]bool)
	var visit func(n *Node)
	visit = func(n *Node) {
		if seen[n] {
			return
		}
		seen[n] = true
		for _, d := range n.Deps() {
			visit(d)
		}
		order = append(order, n)
	}
	visit(out)
	return order
}

// Layers counts the model's inputs plus the distinct computation nodes
// reachable from the output. A fixpoint counts as one layer: nodes only
// reachable through its body are internal to it.
func (m *Model) Layers() int {
	seen := make(map[*Node]bool)
	var visit func(n *Node)
	visit = func(n *Node) {
		if seen[n] {
			return
		}
		seen[n] = true
		for _, in := range n.Inputs {
			visit(in)
		}
	}
	visit(m.Output)
	count := m.Spec.Inputs()
	for n := range seen {
		if n.Kind != KindInput {
			count++
		}
	}
	return count
}

// Summary renders the model one node per line, dependencies first.
func (m *Model) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "formula: %s\n", m.Formula)
	fmt.Fprintf(&b, "mode: %s  layers: %d  nodes: %d\n", m.Spec.Mode(), m.Layers(), len(m.Nodes))
	for _, n := range m.Nodes {
		width := "?"
		if n.Width >= 0 {
			width = fmt.Sprint(n.Width)
		}
		fmt.Fprintf(&b, "  %-28s %-8s width=%-2s %s", n.Name(), n.Kind, width, describe(n))
		if n == m.Output {
			b.WriteString("  <- output")
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func describe(n *Node) string {
	ids := make([]string, len(n.Inputs))
	for i, in := range n.Inputs {
		ids[i] = fmt.Sprintf("#%d", in.ID)
	}
	args := strings.Join(ids, ",")
	switch n.Kind {
	case KindInput:
		return fmt.Sprintf("#%d x", n.ID)
	case KindPsi:
		return fmt.Sprintf("#%d %s(%s)", n.ID, n.OpName, args)
	case KindConcat:
		return fmt.Sprintf("#%d concat(%s)", n.ID, args)
	case KindDiamond:
		return fmt.Sprintf("#%d %s %s/%s(%s)", n.ID, n.Direction, n.PhiName, n.OpName, args)
	case KindVariable:
		return fmt.Sprintf("#%d %s", n.ID, n.Binder.Name)
	case KindFixPoint:
		binder := "nu"
		if n.Binder.Least {
			binder = "mu"
		}
		return fmt.Sprintf("#%d %s %s,%s body=#%d", n.ID, binder, n.Binder.Name, n.Binder.Base, n.Body.ID)
	}
	return fmt.Sprintf("#%d", n.ID)
}
