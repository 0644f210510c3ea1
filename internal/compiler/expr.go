package compiler

import (
	"strconv"

	"loxvm/internal/chunk"
	"loxvm/internal/diag"
	"loxvm/internal/token"
	"loxvm/internal/value"
)

// Precedence levels, lowest to highest.
type Precedence uint8

const (
	PrecNone Precedence = iota
	PrecAssignment
	PrecOr
	PrecAnd
	PrecEquality
	PrecComparison
	PrecTerm
	PrecFactor
	PrecUnary
	PrecCall
	PrecPrimary
)

type parseFn func(c *Compiler, canAssign bool)

type parseRule struct {
	prefix parseFn
	infix  parseFn
	prec   Precedence
}

var rules [token.KwWhile + 1]parseRule

func init() {
	rules = [token.KwWhile + 1]parseRule{
		token.LParen:    {(*Compiler).grouping, (*Compiler).call, PrecCall},
		token.Dot:       {nil, (*Compiler).dot, PrecCall},
		token.Minus:     {(*Compiler).unary, (*Compiler).binary, PrecTerm},
		token.Plus:      {nil, (*Compiler).binary, PrecTerm},
		token.Slash:     {nil, (*Compiler).binary, PrecFactor},
		token.Star:      {nil, (*Compiler).binary, PrecFactor},
		token.Bang:      {(*Compiler).unary, nil, PrecNone},
		token.BangEq:    {nil, (*Compiler).binary, PrecEquality},
		token.EqEq:      {nil, (*Compiler).binary, PrecEquality},
		token.Gt:        {nil, (*Compiler).binary, PrecComparison},
		token.GtEq:      {nil, (*Compiler).binary, PrecComparison},
		token.Lt:        {nil, (*Compiler).binary, PrecComparison},
		token.LtEq:      {nil, (*Compiler).binary, PrecComparison},
		token.Ident:     {(*Compiler).variable, nil, PrecNone},
		token.StringLit: {(*Compiler).stringLit, nil, PrecNone},
		token.NumberLit: {(*Compiler).number, nil, PrecNone},
		token.KwAnd:     {nil, (*Compiler).and, PrecAnd},
		token.KwOr:      {nil, (*Compiler).or, PrecOr},
		token.KwFalse:   {(*Compiler).literal, nil, PrecNone},
		token.KwNil:     {(*Compiler).literal, nil, PrecNone},
		token.KwTrue:    {(*Compiler).literal, nil, PrecNone},
		token.KwSuper:   {(*Compiler).super, nil, PrecNone},
		token.KwThis:    {(*Compiler).this, nil, PrecNone},
	}
}

func rule(kind token.Kind) *parseRule {
	if int(kind) >= len(rules) {
		return &rules[token.Invalid]
	}
	return &rules[kind]
}

func (c *Compiler) expression() {
	c.parsePrecedence(PrecAssignment)
}

func (c *Compiler) parsePrecedence(prec Precedence) {
	c.advance()
	prefix := rule(c.previous.Kind).prefix
	if prefix == nil {
		c.error(diag.SynExpectExpression, "Expect expression.")
		return
	}

	canAssign := prec <= PrecAssignment
	prefix(c, canAssign)

	for prec <= rule(c.current.Kind).prec {
		c.advance()
		rule(c.previous.Kind).infix(c, canAssign)
	}

	if canAssign && c.match(token.Assign) {
		c.error(diag.SynInvalidAssignTarget, "Invalid assignment target.")
	}
}

func (c *Compiler) number(bool) {
	// out-of-range literals become ±Inf, the error is only ErrRange
	n, _ := strconv.ParseFloat(c.previous.Text, 64)
	c.emitConstant(value.Number(n))
}

func (c *Compiler) stringLit(bool) {
	text := c.previous.Text
	c.emitConstant(value.Obj(c.heap.CopyString(text[1 : len(text)-1])))
}

func (c *Compiler) literal(bool) {
	switch c.previous.Kind {
	case token.KwFalse:
		c.emitOp(chunk.OpFalse)
	case token.KwNil:
		c.emitOp(chunk.OpNil)
	case token.KwTrue:
		c.emitOp(chunk.OpTrue)
	}
}

func (c *Compiler) grouping(bool) {
	c.expression()
	c.consume(token.RParen, "Expect ')' after expression.")
}

func (c *Compiler) unary(bool) {
	op := c.previous.Kind
	c.parsePrecedence(PrecUnary)
	switch op {
	case token.Bang:
		c.emitOp(chunk.OpNot)
	case token.Minus:
		c.emitOp(chunk.OpNegate)
	}
}

func (c *Compiler) binary(bool) {
	op := c.previous.Kind
	c.parsePrecedence(rule(op).prec + 1)

	switch op {
	case token.BangEq:
		c.emitOp(chunk.OpEqual)
		c.emitOp(chunk.OpNot)
	case token.EqEq:
		c.emitOp(chunk.OpEqual)
	case token.Gt:
		c.emitOp(chunk.OpGreater)
	case token.GtEq:
		c.emitOp(chunk.OpLess)
		c.emitOp(chunk.OpNot)
	case token.Lt:
		c.emitOp(chunk.OpLess)
	case token.LtEq:
		c.emitOp(chunk.OpGreater)
		c.emitOp(chunk.OpNot)
	case token.Plus:
		c.emitOp(chunk.OpAdd)
	case token.Minus:
		c.emitOp(chunk.OpSubtract)
	case token.Star:
		c.emitOp(chunk.OpMultiply)
	case token.Slash:
		c.emitOp(chunk.OpDivide)
	}
}

func (c *Compiler) and(bool) {
	endJump := c.emitJump(chunk.OpJumpIfFalse)
	c.emitOp(chunk.OpPop)
	c.parsePrecedence(PrecAnd)
	c.patchJump(endJump)
}

func (c *Compiler) or(bool) {
	elseJump := c.emitJump(chunk.OpJumpIfFalse)
	endJump := c.emitJump(chunk.OpJump)
	c.patchJump(elseJump)
	c.emitOp(chunk.OpPop)
	c.parsePrecedence(PrecOr)
	c.patchJump(endJump)
}

func (c *Compiler) call(bool) {
	argc := c.argumentList()
	c.emitOpArg(chunk.OpCall, argc)
}

func (c *Compiler) argumentList() byte {
	var argc int
	if !c.check(token.RParen) {
		for {
			c.expression()
			if argc == maxArgs {
				c.error(diag.SynTooManyArgs, "Can't have more than 255 arguments.")
			}
			argc++
			if !c.match(token.Comma) {
				break
			}
		}
	}
	c.consume(token.RParen, "Expect ')' after arguments.")
	return byte(min(argc, maxArgs)) // #nosec G115 -- clamped
}

func (c *Compiler) dot(canAssign bool) {
	c.consume(token.Ident, "Expect property name after '.'.")
	name := c.identifierConstant(c.previous.Text)

	switch {
	case canAssign && c.match(token.Assign):
		c.expression()
		c.emitOpArg(chunk.OpSetProperty, name)
	case c.match(token.LParen):
		argc := c.argumentList()
		c.emitOpArg(chunk.OpInvoke, name)
		c.emitByte(argc)
	default:
		c.emitOpArg(chunk.OpGetProperty, name)
	}
}

func (c *Compiler) variable(canAssign bool) {
	c.namedVariable(c.previous.Text, canAssign)
}

func (c *Compiler) namedVariable(name string, canAssign bool) {
	var getOp, setOp chunk.OpCode
	var arg byte
	if slot := c.resolveLocal(c.fs, name); slot >= 0 {
		arg, getOp, setOp = byte(slot), chunk.OpGetLocal, chunk.OpSetLocal // #nosec G115 -- < maxLocals
	} else if idx := c.resolveUpvalue(c.fs, name); idx >= 0 {
		arg, getOp, setOp = byte(idx), chunk.OpGetUpvalue, chunk.OpSetUpvalue // #nosec G115 -- < maxUpvalues
	} else {
		arg, getOp, setOp = c.identifierConstant(name), chunk.OpGetGlobal, chunk.OpSetGlobal
	}

	if canAssign && c.match(token.Assign) {
		c.expression()
		c.emitOpArg(setOp, arg)
		return
	}
	c.emitOpArg(getOp, arg)
}

func (c *Compiler) this(bool) {
	if c.class == nil {
		c.error(diag.SynThisOutsideClass, "Can't use 'this' outside of a class.")
		return
	}
	c.variable(false)
}

func (c *Compiler) super(bool) {
	switch {
	case c.class == nil:
		c.error(diag.SynSuperOutsideClass, "Can't use 'super' outside of a class.")
	case !c.class.hasSuperclass:
		c.error(diag.SynSuperNoSuperclass, "Can't use 'super' in a class with no superclass.")
	}

	c.consume(token.Dot, "Expect '.' after 'super'.")
	c.consume(token.Ident, "Expect superclass method name.")
	name := c.identifierConstant(c.previous.Text)

	c.namedVariable("this", false)
	if c.match(token.LParen) {
		argc := c.argumentList()
		c.namedVariable("super", false)
		c.emitOpArg(chunk.OpSuperInvoke, name)
		c.emitByte(argc)
		return
	}
	c.namedVariable("super", false)
	c.emitOpArg(chunk.OpGetSuper, name)
}
