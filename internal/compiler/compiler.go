package compiler

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/davecgh/go-spew/spew"

	"github.com/iley/rpncc/internal/codegen"
	"github.com/iley/rpncc/internal/lexer"
)

type Options struct {
	// Trace, when set, receives a dump of the generator state after every
	// input event.
	Trace io.Writer
}

type traceEntry struct {
	Event   string
	Stack   []string
	Symbols string
	Emitted []string
}

var traceConfig = spew.ConfigState{
	Indent:                  "  ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	DisableMethods:          true,
}

// Compile translates a whole program into the lines of an assembly unit.
// The first error aborts compilation; no partial output is returned.
func Compile(input io.Reader, opts Options) ([]string, error) {
	lex := lexer.New(input)
	g := codegen.New()

	if err := g.Prologue(); err != nil {
		return nil, err
	}

	emitted := 0
	for {
		lexeme, err := lex.Next()
		if err != nil {
			return nil, g.Fail(codegen.MalformedInput, lexeme.Col, err.Error())
		}

		if err := feed(g, lexeme); err != nil {
			return nil, err
		}

		if opts.Trace != nil {
			emitted = trace(opts.Trace, g, lexeme, emitted)
		}

		if lexeme.Type == lexer.LEX_EOF {
			break
		}
	}

	return slices.Collect(g.Lines()), nil
}

func CompileString(input string) ([]string, error) {
	return Compile(strings.NewReader(input), Options{})
}

func feed(g *codegen.Generator, lexeme lexer.Lexeme) error {
	switch lexeme.Type {
	case lexer.LEX_DIGIT:
		return g.PushNumber(lexeme.Value())
	case lexer.LEX_LETTER:
		return g.PushVariable(lexeme.Char)
	case lexer.LEX_PLUS:
		return g.BinaryOp(codegen.Add)
	case lexer.LEX_MINUS:
		return g.BinaryOp(codegen.Subtract)
	case lexer.LEX_STAR:
		return g.BinaryOp(codegen.Multiply)
	case lexer.LEX_EQUALS:
		return g.Assign()
	case lexer.LEX_SEMICOLON:
		// A separator must close a statement. Statements left empty by
		// the grammar only happen at the end of input.
		if g.Depth() == 0 {
			return g.Fail(codegen.MalformedInput, lexeme.Col, "empty statement")
		}
		return g.EndOfStatement()
	case lexer.LEX_EOF:
		return g.Epilogue()
	}
	return g.Fail(codegen.MalformedInput, lexeme.Col, fmt.Sprintf("unexpected token %s", lexeme))
}

func trace(out io.Writer, g *codegen.Generator, lexeme lexer.Lexeme, emitted int) int {
	entry := traceEntry{
		Event:   lexeme.String(),
		Symbols: string(g.Symbols()),
	}
	for _, loc := range g.Stack() {
		entry.Stack = append(entry.Stack, loc.String())
	}
	lines := slices.Collect(g.Lines())
	entry.Emitted = lines[emitted:]
	traceConfig.Fdump(out, entry)
	return len(lines)
}
