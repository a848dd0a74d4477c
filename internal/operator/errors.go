package operator

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownOperator = errors.New("operator: unknown operator")
	ErrInvalidOperator = errors.New("operator: invalid operator")
	ErrModeMismatch    = errors.New("operator: mode mismatch")
)

// UnknownOperatorError reports a name that is not registered for a role.
type UnknownOperatorError struct {
	Role string
	Name string
}

func (e *UnknownOperatorError) Error() string {
	return fmt.Sprintf("unknown %s operator %q", e.Role, e.Name)
}

func (e *UnknownOperatorError) Is(target error) bool { return target == ErrUnknownOperator }

// InvalidOperatorError reports a registration whose value is neither an
// operator of the registry's family nor a constructor of one.
type InvalidOperatorError struct {
	Role  string
	Name  string
	Value any
}

func (e *InvalidOperatorError) Error() string {
	return fmt.Sprintf("invalid %s operator %q: %T is neither an operator nor a constructor", e.Role, e.Name, e.Value)
}

func (e *InvalidOperatorError) Is(target error) bool { return target == ErrInvalidOperator }

// ModeMismatchError reports an operator invoked in a batching mode it does
// not support, or an input that does not match the compiled mode.
type ModeMismatchError struct {
	Op      string
	Batched bool
	Reason  string
}

func (e *ModeMismatchError) Error() string {
	mode := "single-graph"
	if e.Batched {
		mode = "batched"
	}
	if e.Reason != "" {
		return fmt.Sprintf("%s (%s mode): %s", e.Op, mode, e.Reason)
	}
	return fmt.Sprintf("%s: not available in %s mode", e.Op, mode)
}

func (e *ModeMismatchError) Is(target error) bool { return target == ErrModeMismatch }
