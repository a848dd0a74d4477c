// Package compiler compiles formulas into models of shared computation
// nodes.
//
// Every sub-formula is keyed by its operator and the key of the node it is
// applied to, so `(f;g);h` and `f;(g;h)` produce the same node and a
// sub-formula occurring in several places, or in several formulas compiled
// by the same Compiler, is computed once.
package compiler
