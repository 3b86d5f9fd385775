package asm

import (
	"fmt"
	"strings"
)

// FormatLine renders a line in NASM syntax. Instructions are indented by a
// tab; directives and labels start at column zero.
func FormatLine(line Line) string {
	var sb strings.Builder

	if line.Directive != "" {
		sb.WriteString(line.Directive)
	} else if line.Label != "" {
		sb.WriteString(line.Label)
		sb.WriteString(":")
		if line.Op != "" {
			sb.WriteString(" ")
			writeInstruction(&sb, line)
		}
	} else if line.Op != "" {
		sb.WriteString("\t")
		writeInstruction(&sb, line)
	}

	return sb.String()
}

func writeInstruction(sb *strings.Builder, line Line) {
	sb.WriteString(line.Op)
	if line.Arity >= 1 {
		fmt.Fprintf(sb, " %s", line.Arg1)
	}
	if line.Arity >= 2 {
		fmt.Fprintf(sb, ", %s", line.Arg2)
	}
}
