package codegen

import (
	"fmt"
	"iter"
	"slices"

	"github.com/iley/rpncc/internal/asm"
	"github.com/iley/rpncc/internal/operand"
)

const EntryPoint = "_evaluate"

type Op int

const (
	Add Op = iota
	Subtract
	Multiply
)

func (op Op) Mnemonic() string {
	switch op {
	case Add:
		return "add"
	case Subtract:
		return "sub"
	case Multiply:
		return "mul"
	}
	panic(fmt.Sprintf("invalid operator: %d", op))
}

func (op Op) String() string {
	switch op {
	case Add:
		return "+"
	case Subtract:
		return "-"
	case Multiply:
		return "*"
	}
	return "?"
}

// Generator translates postfix events straight into x86-64 using eax as the
// only accumulator and ebx as a scratch register. Pending sub-expression
// results are tracked on an explicit evaluation stack; when the accumulator
// is needed for a new computation its current value is pushed onto the
// native stack and popped back when it is consumed.
//
// A Generator compiles exactly one program. After the first error every
// further event returns that same error.
type Generator struct {
	stack   []operand.Location
	symbols *symbolSet
	lines   []asm.Line
	err     error
}

func New() *Generator {
	return &Generator{symbols: newSymbolSet()}
}

func (g *Generator) Prologue() error {
	if g.err != nil {
		return g.err
	}
	g.emit(
		asm.Directive("global "+EntryPoint),
		asm.Directive("section .text"),
		asm.Label(EntryPoint))
	return nil
}

func (g *Generator) PushNumber(n uint32) error {
	if g.err != nil {
		return g.err
	}
	g.stack = append(g.stack, operand.Pending(operand.Integer(n)))
	return nil
}

func (g *Generator) PushVariable(name byte) error {
	if g.err != nil {
		return g.err
	}
	if !isLetter(name) {
		return g.fail(MalformedInput, fmt.Sprintf("invalid variable name %q", name))
	}
	g.symbols.add(name)
	g.stack = append(g.stack, operand.Pending(operand.Variable(name)))
	return nil
}

func (g *Generator) BinaryOp(op Op) error {
	if g.err != nil {
		return g.err
	}
	lhs, rhs, err := g.popPair(op.String())
	if err != nil {
		return err
	}
	g.spill()

	switch {
	case lhs.Kind == operand.OnOperandStack && rhs.Kind == operand.OnOperandStack:
		g.emit(asm.Op2("mov", asm.EAX, lhs.Operand.Arg()))
		g.apply(op, rhs.Operand.Arg())
	case lhs.Kind == operand.OnOperandStack && rhs.Kind == operand.InAccumulator:
		g.emit(
			asm.Op2("mov", asm.EBX, asm.EAX),
			asm.Op2("mov", asm.EAX, lhs.Operand.Arg()))
		g.apply(op, asm.EBX)
	case lhs.Kind == operand.InAccumulator && rhs.Kind == operand.OnOperandStack:
		g.apply(op, rhs.Operand.Arg())
	case lhs.Kind == operand.OnCpuStack && rhs.Kind == operand.InAccumulator:
		// The reloaded lhs lands in ebx, so this computes rhs op lhs.
		// Subtraction comes out reversed here.
		g.emit(asm.Op1("pop", asm.RBX))
		g.apply(op, asm.EBX)
	default:
		return g.fail(UnsupportedOperandShape,
			fmt.Sprintf("cannot combine %s %s %s", lhs, op, rhs))
	}

	g.stack = append(g.stack, operand.Accumulator)
	return nil
}

func (g *Generator) Assign() error {
	if g.err != nil {
		return g.err
	}
	lhs, rhs, err := g.popPair("=")
	if err != nil {
		return err
	}
	g.spill()

	if lhs.Kind != operand.OnOperandStack || !lhs.Operand.IsVariable() {
		return g.fail(InvalidAssignmentTarget, fmt.Sprintf("cannot assign %s to %s", rhs, lhs))
	}
	target := asm.Mem(string(lhs.Operand.Variable))

	switch rhs.Kind {
	case operand.OnOperandStack:
		g.emit(
			asm.Op2("mov", asm.EAX, rhs.Operand.Arg()),
			asm.Op2("mov", target, asm.EAX))
	case operand.InAccumulator:
		g.emit(asm.Op2("mov", target, asm.EAX))
	default:
		return g.fail(UnsupportedOperandShape, fmt.Sprintf("cannot assign %s to %s", rhs, lhs))
	}

	g.stack = append(g.stack, operand.Accumulator)
	return nil
}

// EndOfStatement leaves the value of the finished statement in eax and
// empties the evaluation stack. An empty statement is a no-op.
func (g *Generator) EndOfStatement() error {
	if g.err != nil {
		return g.err
	}
	if len(g.stack) == 0 {
		return nil
	}
	if len(g.stack) > 1 {
		return g.fail(UnbalancedStatement,
			fmt.Sprintf("%d values left at end of statement", len(g.stack)))
	}

	switch top := g.stack[0]; top.Kind {
	case operand.OnOperandStack:
		g.emit(asm.Op2("mov", asm.EAX, top.Operand.Arg()))
	case operand.InAccumulator:
	default:
		return g.fail(UnbalancedStatement, "spilled value was never reloaded")
	}

	g.stack = g.stack[:0]
	return nil
}

func (g *Generator) Epilogue() error {
	if err := g.EndOfStatement(); err != nil {
		return err
	}
	g.emit(asm.Op0("ret"))

	if g.symbols.size() > 0 {
		g.emit(asm.Directive("section .data"))
		for _, name := range g.symbols.names() {
			g.emit(asm.DoubleWord(string(name)))
		}
	}
	return nil
}

// Lines yields the text of every line emitted so far. The sequence can be
// ranged over any number of times.
func (g *Generator) Lines() iter.Seq[string] {
	lines := g.lines
	return func(yield func(string) bool) {
		for _, line := range lines {
			if !yield(asm.FormatLine(line)) {
				return
			}
		}
	}
}

// Stack returns a copy of the evaluation stack, bottom first.
func (g *Generator) Stack() []operand.Location {
	return slices.Clone(g.stack)
}

func (g *Generator) Depth() int {
	return len(g.stack)
}

// Symbols returns the referenced variables in order of first use.
func (g *Generator) Symbols() []byte {
	return g.symbols.names()
}

// Fail records an error detected outside the generator, such as a lexing
// problem, so that it carries the current stack and poisons later calls.
func (g *Generator) Fail(kind ErrorKind, pos int, detail string) error {
	if g.err != nil {
		return g.err
	}
	g.err = &Error{Kind: kind, Detail: detail, Stack: g.Stack(), Pos: pos}
	return g.err
}

func (g *Generator) fail(kind ErrorKind, detail string) error {
	return g.Fail(kind, -1, detail)
}

func (g *Generator) emit(lines ...asm.Line) {
	g.lines = append(g.lines, lines...)
}

// popPair removes the two topmost locations. Nothing is popped on underflow.
func (g *Generator) popPair(what string) (lhs, rhs operand.Location, err error) {
	n := len(g.stack)
	if n < 2 {
		return lhs, rhs, g.fail(StackUnderflow,
			fmt.Sprintf("operator %s needs 2 operands, have %d", what, n))
	}
	lhs, rhs = g.stack[n-2], g.stack[n-1]
	g.stack = g.stack[:n-2]
	return lhs, rhs, nil
}

// spill frees eax before the next computation overwrites it. Only the
// accumulator entry needs saving: pending operands can still be addressed
// directly and values already on the native stack stay where they are.
// Pending operands may sit above the accumulator entry, e.g. the 3 in
// "12+345+*".
func (g *Generator) spill() {
	for i, loc := range g.stack {
		if loc.Kind == operand.InAccumulator {
			g.emit(asm.Op1("push", asm.RAX))
			g.stack[i] = operand.CpuStack
		}
	}
}

// apply emits eax = eax op arg. mul only takes a register or memory operand
// and ebx is used for it so immediates and variables go the same way.
func (g *Generator) apply(op Op, arg asm.Arg) {
	if op == Multiply {
		if !arg.IsReg() {
			g.emit(asm.Op2("mov", asm.EBX, arg))
			arg = asm.EBX
		}
		g.emit(asm.Op1("mul", arg))
		return
	}
	g.emit(asm.Op2(op.Mnemonic(), asm.EAX, arg))
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
