package codegen

import (
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/iley/rpncc/internal/operand"
)

var prologue = []string{"global _evaluate", "section .text", "_evaluate:"}

// drive feeds a compact postfix program to g, one character per event.
func drive(g *Generator, program string) error {
	if err := g.Prologue(); err != nil {
		return err
	}
	for i := 0; i < len(program); i++ {
		c := program[i]
		var err error
		switch {
		case c >= '0' && c <= '9':
			err = g.PushNumber(uint32(c - '0'))
		case isLetter(c):
			err = g.PushVariable(c)
		case c == '+':
			err = g.BinaryOp(Add)
		case c == '-':
			err = g.BinaryOp(Subtract)
		case c == '*':
			err = g.BinaryOp(Multiply)
		case c == '=':
			err = g.Assign()
		case c == ';':
			err = g.EndOfStatement()
		}
		if err != nil {
			return err
		}
	}
	return g.Epilogue()
}

func TestGenerate(t *testing.T) {
	tests := []struct {
		name     string
		program  string
		expected []string
	}{
		{
			name:     "empty program",
			program:  "",
			expected: []string{"\tret"},
		},
		{
			name:     "single literal",
			program:  "7",
			expected: []string{"\tmov eax, 7", "\tret"},
		},
		{
			name:    "single variable",
			program: "a",
			expected: []string{
				"\tmov eax, [rel a]",
				"\tret",
				"section .data",
				"a: dd 0",
			},
		},
		{
			name:     "add two literals",
			program:  "12+",
			expected: []string{"\tmov eax, 1", "\tadd eax, 2", "\tret"},
		},
		{
			name:     "subtract two literals",
			program:  "94-",
			expected: []string{"\tmov eax, 9", "\tsub eax, 4", "\tret"},
		},
		{
			name:     "multiply two literals",
			program:  "67*",
			expected: []string{"\tmov eax, 6", "\tmov ebx, 7", "\tmul ebx", "\tret"},
		},
		{
			name:    "accumulator on the left",
			program: "12+3-",
			expected: []string{
				"\tmov eax, 1",
				"\tadd eax, 2",
				"\tsub eax, 3",
				"\tret",
			},
		},
		{
			name:    "accumulator on the left multiply",
			program: "12+3*",
			expected: []string{
				"\tmov eax, 1",
				"\tadd eax, 2",
				"\tmov ebx, 3",
				"\tmul ebx",
				"\tret",
			},
		},
		{
			name:    "accumulator on the right",
			program: "123+-",
			expected: []string{
				"\tmov eax, 2",
				"\tadd eax, 3",
				"\tmov ebx, eax",
				"\tmov eax, 1",
				"\tsub eax, ebx",
				"\tret",
			},
		},
		{
			name:    "spilled left operand",
			program: "12+34+*",
			expected: []string{
				"\tmov eax, 1",
				"\tadd eax, 2",
				"\tpush rax",
				"\tmov eax, 3",
				"\tadd eax, 4",
				"\tpop rbx",
				"\tmul ebx",
				"\tret",
			},
		},
		{
			name:    "pending operands are not spilled",
			program: "1x2+*",
			expected: []string{
				"\tmov eax, [rel x]",
				"\tadd eax, 2",
				"\tmov ebx, eax",
				"\tmov eax, 1",
				"\tmul ebx",
				"\tret",
				"section .data",
				"x: dd 0",
			},
		},
		{
			name:    "accumulator below a pending operand",
			program: "12+345+*+",
			expected: []string{
				"\tmov eax, 1",
				"\tadd eax, 2",
				"\tpush rax",
				"\tmov eax, 4",
				"\tadd eax, 5",
				"\tmov ebx, eax",
				"\tmov eax, 3",
				"\tmul ebx",
				"\tpop rbx",
				"\tadd eax, ebx",
				"\tret",
			},
		},
		{
			name:    "assignment above a buried accumulator",
			program: "12+x34+=+",
			expected: []string{
				"\tmov eax, 1",
				"\tadd eax, 2",
				"\tpush rax",
				"\tmov eax, 3",
				"\tadd eax, 4",
				"\tmov [rel x], eax",
				"\tpop rbx",
				"\tadd eax, ebx",
				"\tret",
				"section .data",
				"x: dd 0",
			},
		},
		{
			name:    "assign literal then reuse",
			program: "x5=;x3+;",
			expected: []string{
				"\tmov eax, 5",
				"\tmov [rel x], eax",
				"\tmov eax, [rel x]",
				"\tadd eax, 3",
				"\tret",
				"section .data",
				"x: dd 0",
			},
		},
		{
			name:    "assign computed value",
			program: "y12*=",
			expected: []string{
				"\tmov eax, 1",
				"\tmov ebx, 2",
				"\tmul ebx",
				"\tmov [rel y], eax",
				"\tret",
				"section .data",
				"y: dd 0",
			},
		},
		{
			name:    "chained assignment",
			program: "xy5==",
			expected: []string{
				"\tmov eax, 5",
				"\tmov [rel y], eax",
				"\tmov [rel x], eax",
				"\tret",
				"section .data",
				"x: dd 0",
				"y: dd 0",
			},
		},
		{
			name:    "assignment spills the accumulator",
			program: "12+x3=*",
			expected: []string{
				"\tmov eax, 1",
				"\tadd eax, 2",
				"\tpush rax",
				"\tmov eax, 3",
				"\tmov [rel x], eax",
				"\tpop rbx",
				"\tmul ebx",
				"\tret",
				"section .data",
				"x: dd 0",
			},
		},
		{
			name:    "trailing separator",
			program: "4;",
			expected: []string{
				"\tmov eax, 4",
				"\tret",
			},
		},
		{
			name:    "every statement is materialized",
			program: "1;2;3",
			expected: []string{
				"\tmov eax, 1",
				"\tmov eax, 2",
				"\tmov eax, 3",
				"\tret",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New()
			if err := drive(g, tt.program); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			got := slices.Collect(g.Lines())
			want := append(slices.Clone(prologue), tt.expected...)
			if !slices.Equal(got, want) {
				t.Errorf("program %q:\ngot:\n%s\nwant:\n%s", tt.program,
					strings.Join(got, "\n"), strings.Join(want, "\n"))
			}
			if g.Depth() != 0 {
				t.Errorf("stack not empty after epilogue: %s", operand.FormatStack(g.Stack()))
			}
		})
	}
}

func TestSymbolsInFirstUseOrder(t *testing.T) {
	g := New()
	if err := drive(g, "ba+ab+*c+b+"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := string(g.Symbols()); got != "bac" {
		t.Errorf("Symbols() = %q, want %q", got, "bac")
	}

	var decls []string
	for line := range g.Lines() {
		if strings.HasSuffix(line, ": dd 0") {
			decls = append(decls, line)
		}
	}
	want := []string{"b: dd 0", "a: dd 0", "c: dd 0"}
	if !slices.Equal(decls, want) {
		t.Errorf("declarations = %v, want %v", decls, want)
	}
}

func TestLinesIsRestartable(t *testing.T) {
	g := New()
	if err := drive(g, "12+"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	seq := g.Lines()
	first := slices.Collect(seq)
	second := slices.Collect(seq)
	if !slices.Equal(first, second) {
		t.Errorf("second iteration differs:\n%v\n%v", first, second)
	}

	count := 0
	for range seq {
		count++
		if count == 2 {
			break
		}
	}
	if count != 2 {
		t.Errorf("early break yielded %d lines", count)
	}
}

func TestErrors(t *testing.T) {
	tests := []struct {
		name    string
		program string
		kind    ErrorKind
		stack   string
	}{
		{"operator without operands", "+", StackUnderflow, "[]"},
		{"operator with one operand", "1*", StackUnderflow, "[operand(1)]"},
		{"assign with one operand", "x=", StackUnderflow, "[operand(x)]"},
		{"assign to literal", "12=", InvalidAssignmentTarget, "[]"},
		{"assign to computed value", "12+3=", InvalidAssignmentTarget, "[]"},
		{"two values at end of input", "12", UnbalancedStatement, "[operand(1) operand(2)]"},
		{"two values at separator", "12+3;", UnbalancedStatement, "[accumulator operand(3)]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New()
			err := drive(g, tt.program)
			if err == nil {
				t.Fatalf("expected error for %q", tt.program)
			}
			var cgErr *Error
			if !errors.As(err, &cgErr) {
				t.Fatalf("expected *Error, got %T", err)
			}
			if cgErr.Kind != tt.kind {
				t.Errorf("kind = %s, want %s", cgErr.Kind, tt.kind)
			}
			if got := operand.FormatStack(cgErr.Stack); got != tt.stack {
				t.Errorf("stack = %s, want %s", got, tt.stack)
			}
			if !errors.Is(err, KindError(tt.kind)) {
				t.Errorf("errors.Is does not match kind %s", tt.kind)
			}
			if !strings.Contains(err.Error(), tt.stack) {
				t.Errorf("message %q does not include stack", err)
			}
		})
	}
}

func TestErrorPoisonsGenerator(t *testing.T) {
	g := New()
	first := g.BinaryOp(Add)
	if first == nil {
		t.Fatalf("expected underflow")
	}
	calls := []func() error{
		func() error { return g.PushNumber(1) },
		func() error { return g.PushVariable('x') },
		func() error { return g.Assign() },
		func() error { return g.EndOfStatement() },
		func() error { return g.Epilogue() },
	}
	for i, call := range calls {
		if err := call(); err != first {
			t.Errorf("call %d returned %v, want the first error", i, err)
		}
	}
	if g.Depth() != 0 || len(g.Symbols()) != 0 {
		t.Errorf("generator state changed after error")
	}
}

func TestPushVariableRejectsNonLetters(t *testing.T) {
	g := New()
	err := g.PushVariable('1')
	if !errors.Is(err, KindError(MalformedInput)) {
		t.Errorf("expected malformed input, got %v", err)
	}
}

func TestUnreachableShapes(t *testing.T) {
	tests := []struct {
		name  string
		stack []operand.Location
		event func(*Generator) error
		kind  ErrorKind
	}{
		{
			name:  "two accumulator values",
			stack: []operand.Location{operand.Accumulator, operand.Accumulator},
			event: func(g *Generator) error { return g.BinaryOp(Add) },
			kind:  UnsupportedOperandShape,
		},
		{
			name:  "spilled right operand",
			stack: []operand.Location{operand.Pending(operand.Integer(1)), operand.CpuStack},
			event: func(g *Generator) error { return g.BinaryOp(Subtract) },
			kind:  UnsupportedOperandShape,
		},
		{
			name:  "assign spilled value",
			stack: []operand.Location{operand.Pending(operand.Variable('x')), operand.CpuStack},
			event: func(g *Generator) error { return g.Assign() },
			kind:  UnsupportedOperandShape,
		},
		{
			name:  "statement ends on native stack",
			stack: []operand.Location{operand.CpuStack},
			event: func(g *Generator) error { return g.EndOfStatement() },
			kind:  UnbalancedStatement,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New()
			g.stack = tt.stack
			err := tt.event(g)
			var cgErr *Error
			if !errors.As(err, &cgErr) {
				t.Fatalf("expected *Error, got %v", err)
			}
			if cgErr.Kind != tt.kind {
				t.Errorf("kind = %s, want %s (%v)", cgErr.Kind, tt.kind, err)
			}
		})
	}
}

func TestErrorMessage(t *testing.T) {
	err := &Error{
		Kind:   StackUnderflow,
		Detail: "operator + needs 2 operands, have 1",
		Stack:  []operand.Location{operand.Pending(operand.Integer(3))},
		Pos:    1,
	}
	want := "stack underflow at column 2: operator + needs 2 operands, have 1 (stack: [operand(3)])"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	err.Pos = -1
	want = "stack underflow: operator + needs 2 operands, have 1 (stack: [operand(3)])"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestSpillBuriedAccumulator(t *testing.T) {
	g := New()
	for _, step := range []func() error{
		func() error { return g.PushNumber(1) },
		func() error { return g.PushNumber(2) },
		func() error { return g.BinaryOp(Add) },
		func() error { return g.PushNumber(3) },
		func() error { return g.PushNumber(4) },
		func() error { return g.PushNumber(5) },
		func() error { return g.BinaryOp(Add) },
	} {
		if err := step(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	want := "[cpu-stack operand(3) accumulator]"
	if got := operand.FormatStack(g.Stack()); got != want {
		t.Errorf("stack = %s, want %s", got, want)
	}
}
