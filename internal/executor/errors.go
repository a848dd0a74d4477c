package executor

import (
	"errors"
	"fmt"
)

var ErrNonTermination = errors.New("executor: fixpoint did not converge")

// NonTerminationError reports a fixpoint that was still changing after the
// iteration limit.
type NonTerminationError struct {
	Key        string
	Iterations int
}

func (e *NonTerminationError) Error() string {
	return fmt.Sprintf("fixpoint %s did not converge after %d iterations", e.Key, e.Iterations)
}

func (e *NonTerminationError) Is(target error) bool { return target == ErrNonTermination }
