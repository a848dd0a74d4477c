package compiler

import (
	"errors"
	"fmt"

	"github.com/hanpama/mgc/internal/language"
)

var ErrUnboundVariable = errors.New("compiler: unbound variable")

// UnboundVariableError reports a variable with no enclosing binder of the
// same name.
type UnboundVariableError struct {
	Name string
	Pos  language.Position
}

func (e *UnboundVariableError) Error() string {
	return fmt.Sprintf("unbound variable %s at %s", e.Name, e.Pos)
}

func (e *UnboundVariableError) Is(target error) bool { return target == ErrUnboundVariable }
