package tensor

import (
	"errors"
	"fmt"
)

// ErrShape matches every ShapeError via errors.Is.
var ErrShape = errors.New("tensor: shape mismatch")

// ShapeError reports a feature-width or row-count mismatch.
type ShapeError struct {
	Op      string
	Message string
}

func (e *ShapeError) Error() string {
	if e.Op == "" {
		return "shape error: " + e.Message
	}
	return fmt.Sprintf("shape error in %s: %s", e.Op, e.Message)
}

func (e *ShapeError) Is(target error) bool { return target == ErrShape }

// Shapef builds a ShapeError for op with a formatted message.
func Shapef(op, format string, args ...any) error {
	return &ShapeError{Op: op, Message: fmt.Sprintf(format, args...)}
}
