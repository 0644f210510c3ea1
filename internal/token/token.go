package token

import (
	"loxvm/internal/source"
)

// Token is a lexeme with its location. Line is the 1-based line the lexeme
// ends on, so a multi-line string reports its closing line.
type Token struct {
	Kind Kind
	Span source.Span
	Text string
	Line int
}

// IsKeyword reports whether the token is a reserved word.
func (t Token) IsKeyword() bool { return t.Kind >= KwAnd && t.Kind <= KwWhile }

// IsLiteral reports whether the token is a string or number literal.
func (t Token) IsLiteral() bool { return t.Kind == StringLit || t.Kind == NumberLit }
