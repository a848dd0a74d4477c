// Package ir defines compiled computation nodes and models.
//
// A node is identified by a canonical key built from its operator and the
// keys of its inputs, so structurally identical sub-formulas compile to a
// single node with several consumers. Variable nodes stand for the current
// assignment of an enclosing fixpoint and are resolved at evaluation time.
package ir
