// Package operator defines the four operator families a formula can invoke
// and the registries that map formula-level names onto them.
//
// # Families
//
//   - Psi: a node-wise transform. Every Psi offers a single-graph and a
//     batched (disjoint union) capability; the executor picks one from the
//     compilation mode. Local wraps graph-agnostic maps, Global wraps pooling
//     operators whose per-graph result is broadcast back to every node of
//     that graph.
//   - Phi: computes one message per edge from the source label, the edge
//     label and the target label.
//   - Sigma: aggregates the messages addressed to each node, together with
//     the node's current label, into that node's new label.
//
// Operators are pure functions of their input tensors and carry no state.
//
// # Registries
//
// A Registry maps a name to a constructor taking an optional textual
// argument, so that a formula atom such as "bit[2]" selects a member of an
// operator family at compile time. Ready-made instances are wrapped into
// constructors that ignore the argument and return the same instance for
// every reference.
//
// Operators may implement Shaped to declare their output feature width; the
// compiler uses it to check fixpoint widths before evaluation.
package operator
