package lexer

import "loxvm/internal/token"

func (lx *Lexer) scanIdentOrKeyword() token.Token {
	start := lx.cursor.Mark()
	for isAlpha(lx.cursor.Peek()) || isDigit(lx.cursor.Peek()) {
		lx.cursor.Bump()
	}
	tok := lx.make(token.Ident, start)
	if kw, ok := token.LookupKeyword(tok.Text); ok {
		tok.Kind = kw
	}
	return tok
}

// scanNumber reads digits with an optional fraction. A trailing '.' without
// digits is left for the next token, so "1.foo" is a number then a dot.
func (lx *Lexer) scanNumber() token.Token {
	start := lx.cursor.Mark()
	for isDigit(lx.cursor.Peek()) {
		lx.cursor.Bump()
	}
	if lx.cursor.Peek() == '.' && isDigit(lx.cursor.PeekNext()) {
		lx.cursor.Bump()
		for isDigit(lx.cursor.Peek()) {
			lx.cursor.Bump()
		}
	}
	return lx.make(token.NumberLit, start)
}

// scanString reads a double-quoted literal. Strings may span lines and have
// no escape sequences; the token text keeps the quotes.
func (lx *Lexer) scanString() token.Token {
	start := lx.cursor.Mark()
	lx.cursor.Bump()
	for lx.cursor.Peek() != '"' && !lx.cursor.EOF() {
		lx.cursor.Bump()
	}
	if lx.cursor.EOF() {
		return lx.errorToken(MsgUnterminatedString, start)
	}
	lx.cursor.Bump()
	return lx.make(token.StringLit, start)
}

func (lx *Lexer) scanOperatorOrPunct() token.Token {
	start := lx.cursor.Mark()
	ch := lx.cursor.Bump()

	pick := func(next byte, two, one token.Kind) token.Token {
		if lx.cursor.Eat(next) {
			return lx.make(two, start)
		}
		return lx.make(one, start)
	}

	switch ch {
	case '(':
		return lx.make(token.LParen, start)
	case ')':
		return lx.make(token.RParen, start)
	case '{':
		return lx.make(token.LBrace, start)
	case '}':
		return lx.make(token.RBrace, start)
	case ';':
		return lx.make(token.Semicolon, start)
	case ',':
		return lx.make(token.Comma, start)
	case '.':
		return lx.make(token.Dot, start)
	case '-':
		return lx.make(token.Minus, start)
	case '+':
		return lx.make(token.Plus, start)
	case '/':
		return lx.make(token.Slash, start)
	case '*':
		return lx.make(token.Star, start)
	case '!':
		return pick('=', token.BangEq, token.Bang)
	case '=':
		return pick('=', token.EqEq, token.Assign)
	case '<':
		return pick('=', token.LtEq, token.Lt)
	case '>':
		return pick('=', token.GtEq, token.Gt)
	}
	return lx.errorToken(MsgUnexpectedChar, start)
}
