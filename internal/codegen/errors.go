package codegen

import (
	"fmt"

	"github.com/iley/rpncc/internal/operand"
)

type ErrorKind int

const (
	MalformedInput ErrorKind = iota
	StackUnderflow
	UnsupportedOperandShape
	InvalidAssignmentTarget
	UnbalancedStatement
)

func (k ErrorKind) String() string {
	switch k {
	case MalformedInput:
		return "malformed input"
	case StackUnderflow:
		return "stack underflow"
	case UnsupportedOperandShape:
		return "unsupported operand shape"
	case InvalidAssignmentTarget:
		return "invalid assignment target"
	case UnbalancedStatement:
		return "unbalanced statement"
	default:
		return "unknown error"
	}
}

// Error is the single terminal failure of a compilation. Stack holds the
// evaluation stack as it was when the violation was detected. Pos is the
// zero-based input column, or -1 when not tied to an input character.
type Error struct {
	Kind   ErrorKind
	Detail string
	Stack  []operand.Location
	Pos    int
}

func (e *Error) Error() string {
	if e.Pos >= 0 {
		return fmt.Sprintf("%s at column %d: %s (stack: %s)", e.Kind, e.Pos+1, e.Detail, operand.FormatStack(e.Stack))
	}
	return fmt.Sprintf("%s: %s (stack: %s)", e.Kind, e.Detail, operand.FormatStack(e.Stack))
}

// Is makes errors.Is match any *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind && t.Detail == "" && t.Stack == nil
}

// KindError returns a template error usable with errors.Is.
func KindError(kind ErrorKind) *Error {
	return &Error{Kind: kind, Pos: -1}
}
