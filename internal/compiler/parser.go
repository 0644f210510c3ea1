package compiler

import (
	"fmt"

	"loxvm/internal/diag"
	"loxvm/internal/lexer"
	"loxvm/internal/token"
)

func (c *Compiler) advance() {
	c.previous = c.current
	for {
		c.current = c.lx.Next()
		if c.current.Kind != token.Invalid {
			return
		}
		code := diag.LexUnknownChar
		if c.current.Text == lexer.MsgUnterminatedString {
			code = diag.LexUnterminatedString
		}
		c.errorAtCurrent(code, c.current.Text)
	}
}

func (c *Compiler) check(kind token.Kind) bool { return c.current.Kind == kind }

func (c *Compiler) match(kind token.Kind) bool {
	if !c.check(kind) {
		return false
	}
	c.advance()
	return true
}

func (c *Compiler) consume(kind token.Kind, msg string) {
	if c.check(kind) {
		c.advance()
		return
	}
	c.errorAtCurrent(diag.SynExpectToken, msg)
}

func (c *Compiler) error(code diag.Code, msg string) { c.errorAt(c.previous, code, msg) }

func (c *Compiler) errorAtCurrent(code diag.Code, msg string) { c.errorAt(c.current, code, msg) }

func (c *Compiler) errorAt(tok token.Token, code diag.Code, msg string) {
	if c.panicMode {
		return
	}
	c.panicMode = true
	c.hadError = true

	d := diag.NewError(code, tok.Span, msg)
	d.Line = tok.Line
	switch tok.Kind {
	case token.EOF:
		d.At = " at end"
	case token.Invalid:
	default:
		d.At = fmt.Sprintf(" at '%s'", tok.Text)
	}
	if c.opts.Reporter != nil {
		c.opts.Reporter.Report(d)
	}
}

// synchronize skips tokens until a likely statement boundary.
func (c *Compiler) synchronize() {
	c.panicMode = false
	for c.current.Kind != token.EOF {
		if c.previous.Kind == token.Semicolon {
			return
		}
		switch c.current.Kind {
		case token.KwClass, token.KwFun, token.KwVar, token.KwFor,
			token.KwIf, token.KwWhile, token.KwPrint, token.KwReturn:
			return
		}
		c.advance()
	}
}
