package asm

import "fmt"

var (
	EAX = Reg("eax")
	EBX = Reg("ebx")
	RAX = Reg("rax")
	RBX = Reg("rbx")
)

type Line struct {
	Directive string
	Label     string
	Op        string
	Arity     int
	Arg1      Arg
	Arg2      Arg
}

// Arg is one instruction operand. Exactly one of Reg, Imm or Label is set;
// Label always denotes a memory cell addressed relative to rip.
type Arg struct {
	Reg   string
	Imm   *uint32
	Label string
}

func (a Arg) IsReg() bool {
	return a.Reg != ""
}

func (a Arg) String() string {
	if a.Reg != "" {
		return a.Reg
	} else if a.Label != "" {
		return fmt.Sprintf("[rel %s]", a.Label)
	} else if a.Imm != nil {
		return fmt.Sprintf("%d", *a.Imm)
	}
	panic(fmt.Errorf("invalid arg %#v", a))
}

func Reg(reg string) Arg {
	return Arg{Reg: reg}
}

func Imm(value uint32) Arg {
	return Arg{Imm: &value}
}

func Mem(label string) Arg {
	return Arg{Label: label}
}

func Op0(op string) Line {
	return Line{Op: op}
}

func Op1(op string, arg Arg) Line {
	return Line{Op: op, Arity: 1, Arg1: arg}
}

func Op2(op string, arg1, arg2 Arg) Line {
	return Line{Op: op, Arity: 2, Arg1: arg1, Arg2: arg2}
}

func Label(text string) Line {
	return Line{Label: text}
}

func Directive(text string) Line {
	return Line{Directive: text}
}

// DoubleWord declares a zero-initialized 4-byte cell named label.
func DoubleWord(label string) Line {
	return Line{Label: label, Op: "dd", Arity: 1, Arg1: Imm(0)}
}
