// Package lexer turns Lox source into tokens on demand. Lexical errors do not
// stop scanning; they come back as token.Invalid with the message as text.
package lexer

import (
	"loxvm/internal/source"
	"loxvm/internal/token"
)

// Error messages carried by Invalid tokens.
const (
	MsgUnexpectedChar     = "Unexpected character."
	MsgUnterminatedString = "Unterminated string."
)

// Lexer scans one file.
type Lexer struct {
	file   *source.File
	cursor Cursor
	look   *token.Token // 1 элементный буфер для токена
}

// New creates a lexer over file.
func New(file *source.File) *Lexer {
	return &Lexer{file: file, cursor: NewCursor(file)}
}

// Next returns the next token. After the end of input it keeps returning EOF.
func (lx *Lexer) Next() token.Token {
	if lx.look != nil {
		tok := *lx.look
		lx.look = nil
		return tok
	}

	lx.skipWhitespace()
	start := lx.cursor.Mark()
	if lx.cursor.EOF() {
		return lx.make(token.EOF, start)
	}

	ch := lx.cursor.Peek()
	switch {
	case isAlpha(ch):
		return lx.scanIdentOrKeyword()
	case isDigit(ch):
		return lx.scanNumber()
	case ch == '"':
		return lx.scanString()
	default:
		return lx.scanOperatorOrPunct()
	}
}

// Peek returns the next token without consuming it.
func (lx *Lexer) Peek() token.Token {
	t := lx.Next()
	lx.look = &t
	return t
}

// All scans the rest of the input, EOF included.
func (lx *Lexer) All() []token.Token {
	var toks []token.Token
	for {
		tok := lx.Next()
		toks = append(toks, tok)
		if tok.Kind == token.EOF {
			return toks
		}
	}
}

func (lx *Lexer) make(kind token.Kind, start Mark) token.Token {
	sp := lx.cursor.SpanFrom(start)
	return token.Token{
		Kind: kind,
		Span: sp,
		Text: string(lx.file.Content[sp.Start:sp.End]),
		Line: lx.cursor.Line,
	}
}

func (lx *Lexer) errorToken(msg string, start Mark) token.Token {
	return token.Token{
		Kind: token.Invalid,
		Span: lx.cursor.SpanFrom(start),
		Text: msg,
		Line: lx.cursor.Line,
	}
}

func (lx *Lexer) skipWhitespace() {
	for {
		switch lx.cursor.Peek() {
		case ' ', '\r', '\t', '\n':
			lx.cursor.Bump()
		case '/':
			if lx.cursor.PeekNext() != '/' {
				return
			}
			for lx.cursor.Peek() != '\n' && !lx.cursor.EOF() {
				lx.cursor.Bump()
			}
		default:
			return
		}
	}
}

func isAlpha(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b == '_'
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
