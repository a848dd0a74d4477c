// Package language parses formula text into an abstract syntax tree.
//
// The grammar, from lowest to highest precedence:
//
//	expr     := seq ( '||' seq )*
//	seq      := unary ( ';' unary )*
//	unary    := '|>' name | '<|' name | '|' name '>' name | '<' name '|' name
//	          | ('mu' | 'nu') IDENT ',' name '.' unary
//	          | '(' expr ')' | name
//	name     := IDENT ( '[' arg ']' )?
//
// A binder body is a single unary term, so `mu X,b.(X;|>or) || a` is the
// parallel composition of the fixpoint and a. Inside a body the bound
// identifier parses to a Variable, every other identifier to an Atom.
package language
