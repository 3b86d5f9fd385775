// Package sim executes the subset of x86-64 NASM text that the code
// generator emits, so generated units can be checked without an assembler.
package sim

import (
	"fmt"
	"strconv"
	"strings"
)

type regInfo struct {
	index int
	wide  bool
}

var registers = map[string]regInfo{
	"eax": {0, false},
	"ebx": {1, false},
	"edx": {2, false},
	"rax": {0, true},
	"rbx": {1, true},
	"rdx": {2, true},
}

type argKind int

const (
	argReg argKind = iota
	argImm
	argMem
)

type arg struct {
	kind  argKind
	reg   regInfo
	imm   uint32
	label string
}

type instruction struct {
	op     string
	args   []arg
	lineNo int
}

// State is the machine after a run.
type State struct {
	Regs   [3]uint64 // rax, rbx, rdx
	Memory map[string]uint32
	// Symbols lists data cells in declaration order.
	Symbols  []string
	Stack    []uint64
	Pushes   int
	Pops     int
	MaxDepth int
	Steps    int
}

func (s *State) EAX() uint32 {
	return uint32(s.Regs[0])
}

// Result is the function return value as a signed 32-bit integer.
func (s *State) Result() int32 {
	return int32(s.EAX())
}

// Run executes lines starting at the entry label until the first ret.
func Run(lines []string, entry string) (*State, error) {
	s := &State{Memory: make(map[string]uint32)}

	var program []instruction
	start := -1
	for i, raw := range lines {
		lineNo := i + 1
		line := raw
		if idx := strings.IndexByte(line, ';'); idx >= 0 {
			line = line[:idx]
		}
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "global ") || strings.HasPrefix(line, "section ") {
			continue
		}

		if label, rest, ok := strings.Cut(line, ":"); ok {
			label = strings.TrimSpace(label)
			rest = strings.TrimSpace(rest)
			if rest == "" {
				if label == entry {
					start = len(program)
				}
				continue
			}
			if err := s.declare(label, rest, lineNo); err != nil {
				return nil, err
			}
			continue
		}

		instr, err := parseInstruction(line, lineNo)
		if err != nil {
			return nil, err
		}
		program = append(program, instr)
	}

	if start < 0 {
		return nil, fmt.Errorf("entry label %s not found", entry)
	}

	for pc := start; pc < len(program); pc++ {
		instr := program[pc]
		s.Steps++
		if instr.op == "ret" {
			return s, nil
		}
		if err := s.exec(instr); err != nil {
			return nil, fmt.Errorf("line %d: %w", instr.lineNo, err)
		}
	}
	return nil, fmt.Errorf("reached end of code without ret")
}

func (s *State) declare(label, rest string, lineNo int) error {
	fields := strings.Fields(rest)
	if len(fields) != 2 || fields[0] != "dd" {
		return fmt.Errorf("line %d: unsupported data declaration %q", lineNo, rest)
	}
	value, err := strconv.ParseUint(fields[1], 10, 32)
	if err != nil {
		return fmt.Errorf("line %d: invalid initializer %q", lineNo, fields[1])
	}
	if _, ok := s.Memory[label]; ok {
		return fmt.Errorf("line %d: symbol %s redefined", lineNo, label)
	}
	s.Memory[label] = uint32(value)
	s.Symbols = append(s.Symbols, label)
	return nil
}

func parseInstruction(line string, lineNo int) (instruction, error) {
	op, rest, _ := strings.Cut(line, " ")
	instr := instruction{op: op, lineNo: lineNo}
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return instr, nil
	}
	for _, text := range strings.Split(rest, ",") {
		a, err := parseArg(strings.TrimSpace(text))
		if err != nil {
			return instr, fmt.Errorf("line %d: %w", lineNo, err)
		}
		instr.args = append(instr.args, a)
	}
	return instr, nil
}

func parseArg(text string) (arg, error) {
	if reg, ok := registers[text]; ok {
		return arg{kind: argReg, reg: reg}, nil
	}
	if strings.HasPrefix(text, "[rel ") && strings.HasSuffix(text, "]") {
		label := strings.TrimSpace(text[len("[rel ") : len(text)-1])
		return arg{kind: argMem, label: label}, nil
	}
	value, err := strconv.ParseUint(text, 10, 32)
	if err != nil {
		return arg{}, fmt.Errorf("invalid operand %q", text)
	}
	return arg{kind: argImm, imm: uint32(value)}, nil
}

func (s *State) exec(instr instruction) error {
	switch instr.op {
	case "mov":
		if len(instr.args) != 2 {
			return fmt.Errorf("mov takes 2 operands")
		}
		value, err := s.read32(instr.args[1])
		if err != nil {
			return err
		}
		return s.write32(instr.args[0], value)
	case "add", "sub":
		if len(instr.args) != 2 || instr.args[0].kind != argReg {
			return fmt.Errorf("%s needs a register destination", instr.op)
		}
		dst, err := s.read32(instr.args[0])
		if err != nil {
			return err
		}
		src, err := s.read32(instr.args[1])
		if err != nil {
			return err
		}
		if instr.op == "add" {
			return s.write32(instr.args[0], dst+src)
		}
		return s.write32(instr.args[0], dst-src)
	case "mul":
		if len(instr.args) != 1 || instr.args[0].kind == argImm {
			return fmt.Errorf("mul needs a register or memory operand")
		}
		src, err := s.read32(instr.args[0])
		if err != nil {
			return err
		}
		product := uint64(s.EAX()) * uint64(src)
		s.Regs[0] = product & 0xffffffff
		s.Regs[2] = product >> 32
		return nil
	case "push":
		if len(instr.args) != 1 || instr.args[0].kind != argReg || !instr.args[0].reg.wide {
			return fmt.Errorf("push needs a 64-bit register")
		}
		s.Stack = append(s.Stack, s.Regs[instr.args[0].reg.index])
		s.Pushes++
		s.MaxDepth = max(s.MaxDepth, len(s.Stack))
		return nil
	case "pop":
		if len(instr.args) != 1 || instr.args[0].kind != argReg || !instr.args[0].reg.wide {
			return fmt.Errorf("pop needs a 64-bit register")
		}
		if len(s.Stack) == 0 {
			return fmt.Errorf("pop from empty stack")
		}
		s.Regs[instr.args[0].reg.index] = s.Stack[len(s.Stack)-1]
		s.Stack = s.Stack[:len(s.Stack)-1]
		s.Pops++
		return nil
	}
	return fmt.Errorf("unsupported instruction %q", instr.op)
}

func (s *State) read32(a arg) (uint32, error) {
	switch a.kind {
	case argReg:
		if a.reg.wide {
			return 0, fmt.Errorf("64-bit register used in 32-bit operation")
		}
		return uint32(s.Regs[a.reg.index]), nil
	case argImm:
		return a.imm, nil
	case argMem:
		value, ok := s.Memory[a.label]
		if !ok {
			return 0, fmt.Errorf("undefined symbol %s", a.label)
		}
		return value, nil
	}
	return 0, fmt.Errorf("invalid operand")
}

// write32 stores a 32-bit value. Register writes zero the upper half, as on
// real hardware.
func (s *State) write32(a arg, value uint32) error {
	switch a.kind {
	case argReg:
		if a.reg.wide {
			return fmt.Errorf("64-bit register used in 32-bit operation")
		}
		s.Regs[a.reg.index] = uint64(value)
		return nil
	case argMem:
		if _, ok := s.Memory[a.label]; !ok {
			return fmt.Errorf("undefined symbol %s", a.label)
		}
		s.Memory[a.label] = value
		return nil
	}
	return fmt.Errorf("cannot write to immediate")
}
