package operand

import (
	"fmt"
	"strings"

	"github.com/iley/rpncc/internal/asm"
)

// Operand is a primary of the input language: either an unsigned 32-bit
// literal or a single-letter variable naming a 4-byte memory cell.
type Operand struct {
	Variable byte // zero for integer operands
	Integer  uint32
}

func Integer(value uint32) Operand {
	return Operand{Integer: value}
}

func Variable(name byte) Operand {
	return Operand{Variable: name}
}

func (o Operand) IsVariable() bool {
	return o.Variable != 0
}

// Arg returns the instruction operand addressing this value directly: an
// immediate for integers, a rip-relative memory reference for variables.
func (o Operand) Arg() asm.Arg {
	if o.IsVariable() {
		return asm.Mem(string(o.Variable))
	}
	return asm.Imm(o.Integer)
}

// Text renders the operand the way it appears inside an emitted instruction.
func (o Operand) Text() string {
	return o.Arg().String()
}

func (o Operand) String() string {
	if o.IsVariable() {
		return string(o.Variable)
	}
	return fmt.Sprintf("%d", o.Integer)
}

type LocationKind int

const (
	OnOperandStack LocationKind = iota
	InAccumulator
	OnCpuStack
)

func (k LocationKind) String() string {
	switch k {
	case OnOperandStack:
		return "operand"
	case InAccumulator:
		return "accumulator"
	case OnCpuStack:
		return "cpu-stack"
	default:
		return "unknown"
	}
}

// Location records where the result of one pending sub-expression lives.
// Operand is only meaningful for OnOperandStack.
type Location struct {
	Kind    LocationKind
	Operand Operand
}

func Pending(op Operand) Location {
	return Location{Kind: OnOperandStack, Operand: op}
}

var (
	Accumulator = Location{Kind: InAccumulator}
	CpuStack    = Location{Kind: OnCpuStack}
)

func (l Location) String() string {
	if l.Kind == OnOperandStack {
		return fmt.Sprintf("operand(%s)", l.Operand)
	}
	return l.Kind.String()
}

// FormatStack renders an evaluation stack bottom to top, e.g.
// "[cpu-stack operand(x) accumulator]".
func FormatStack(stack []Location) string {
	parts := make([]string, len(stack))
	for i, loc := range stack {
		parts[i] = loc.String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}
