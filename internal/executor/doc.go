// Package executor evaluates compiled models against graph inputs.
//
// # Evaluation
//
// A model is a DAG of computation nodes. Evaluation walks it from the output
// node, computing every node once per input:
//   - input: the node-label tensor.
//   - psi: the operator's single-graph capability, or its batched capability
//     together with the graph index when the model was compiled for batches.
//   - concat: feature-wise concatenation of the children, in order.
//   - diamond: one message per edge (the phi operator applied to the source
//     labels, edge labels and target labels, or the neighbour labels when no
//     phi is given), aggregated by sigma at edge targets (forward) or edge
//     sources (backward). Every node receives an aggregate, including nodes
//     without messages.
//   - variable: the current assignment of the innermost enclosing fixpoint
//     that binds it.
//   - fixpoint: see below.
//
// Results of nodes without free variables are kept for the whole
// evaluation. Results of nodes that depend on a bound variable are kept
// only for the fixpoint iteration that produced them.
//
// # Fixpoints
//
// Each fixpoint node runs a small state machine:
//
//	Init       the bound variable is set to the configured bottom (mu) or
//	           top (nu) row, broadcast to every node.
//	Iterating  the body is evaluated with the current assignment; if the
//	           result differs from the assignment it becomes the new
//	           assignment, otherwise the fixpoint has converged.
//	Converged  the last assignment is the output.
//
// Comparison is exact equality. A monotone body over a finite lattice
// converges; a non-monotone body may not, so the number of iterations is
// bounded and exceeding the bound yields a NonTerminationError. The context
// is checked once per iteration.
package executor
