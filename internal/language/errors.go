package language

import (
	"errors"
	"fmt"
)

var ErrSyntax = errors.New("language: syntax error")

// Position locates a token in formula text. Line and Column are 1-based,
// Offset is the 0-based byte offset.
type Position struct {
	Offset int `json:"offset"`
	Line   int `json:"line"`
	Column int `json:"column"`
}

func (p Position) String() string { return fmt.Sprintf("%d:%d", p.Line, p.Column) }

// SyntaxError reports malformed formula text at the offending token.
type SyntaxError struct {
	Pos     Position
	Token   string
	Message string
}

func (e *SyntaxError) Error() string {
	if e.Token == "" {
		return fmt.Sprintf("syntax error at %s: %s", e.Pos, e.Message)
	}
	return fmt.Sprintf("syntax error at %s near %q: %s", e.Pos, e.Token, e.Message)
}

func (e *SyntaxError) Is(target error) bool { return target == ErrSyntax }
