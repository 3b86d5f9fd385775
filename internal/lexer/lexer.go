package lexer

import (
	"bufio"
	"fmt"
	"io"
)

type TokenType int

// Token types. Every token is exactly one character long.
const (
	LEX_EOF TokenType = iota
	LEX_DIGIT
	LEX_LETTER
	LEX_PLUS
	LEX_MINUS
	LEX_STAR
	LEX_SEMICOLON
	LEX_EQUALS
)

func (t TokenType) String() string {
	switch t {
	case LEX_EOF:
		return "EOF"
	case LEX_DIGIT:
		return "DIGIT"
	case LEX_LETTER:
		return "LETTER"
	case LEX_PLUS:
		return "PLUS"
	case LEX_MINUS:
		return "MINUS"
	case LEX_STAR:
		return "STAR"
	case LEX_SEMICOLON:
		return "SEMICOLON"
	case LEX_EQUALS:
		return "EQUALS"
	default:
		return "UNKNOWN"
	}
}

var singleCharTokens = map[rune]TokenType{
	'+': LEX_PLUS,
	'-': LEX_MINUS,
	'*': LEX_STAR,
	';': LEX_SEMICOLON,
	'=': LEX_EQUALS,
}

// Lexeme is one input event. Char is the source character; Col is its
// zero-based position in the input.
type Lexeme struct {
	Type TokenType
	Char byte
	Col  int
}

func (l Lexeme) String() string {
	if l.Type == LEX_EOF {
		return fmt.Sprintf("<%s>", l.Type)
	}
	return fmt.Sprintf("<%s %q>", l.Type, l.Char)
}

// Value returns the numeric value of a digit token.
func (l Lexeme) Value() uint32 {
	return uint32(l.Char - '0')
}

// UnexpectedCharError reports a character outside the input alphabet.
type UnexpectedCharError struct {
	Char rune
	Col  int
}

func (e *UnexpectedCharError) Error() string {
	return fmt.Sprintf("unexpected input character %q at column %d", e.Char, e.Col+1)
}

type Lexer struct {
	input *bufio.Reader
	col   int
}

func New(inputReader io.Reader) *Lexer {
	return &Lexer{input: bufio.NewReader(inputReader)}
}

// Next returns the next lexeme from the input. There is no whitespace or
// comment skipping: any character that is not a token is an error.
func (l *Lexer) Next() (Lexeme, error) {
	col := l.col
	r, _, err := l.input.ReadRune()
	if err != nil {
		if err == io.EOF {
			return Lexeme{Type: LEX_EOF, Col: col}, nil
		}
		return Lexeme{Type: LEX_EOF, Col: col}, err
	}
	l.col++

	switch {
	case r >= '0' && r <= '9':
		return Lexeme{Type: LEX_DIGIT, Char: byte(r), Col: col}, nil
	case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
		return Lexeme{Type: LEX_LETTER, Char: byte(r), Col: col}, nil
	}

	if tt, ok := singleCharTokens[r]; ok {
		return Lexeme{Type: tt, Char: byte(r), Col: col}, nil
	}

	return Lexeme{Type: LEX_EOF, Col: col}, &UnexpectedCharError{Char: r, Col: col}
}
