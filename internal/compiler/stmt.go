package compiler

import (
	"loxvm/internal/chunk"
	"loxvm/internal/diag"
	"loxvm/internal/token"
	"loxvm/internal/value"
)

func (c *Compiler) declaration() {
	switch {
	case c.match(token.KwClass):
		c.classDeclaration()
	case c.match(token.KwFun):
		c.funDeclaration()
	case c.match(token.KwVar):
		c.varDeclaration()
	default:
		c.statement()
	}
	if c.panicMode {
		c.synchronize()
	}
}

func (c *Compiler) classDeclaration() {
	c.consume(token.Ident, "Expect class name.")
	className := c.previous.Text
	nameConstant := c.identifierConstant(className)
	c.declareVariable()

	c.emitOpArg(chunk.OpClass, nameConstant)
	c.defineVariable(nameConstant)

	cls := &classState{enclosing: c.class}
	c.class = cls

	if c.match(token.Lt) {
		c.consume(token.Ident, "Expect superclass name.")
		c.variable(false)
		if c.previous.Text == className {
			c.error(diag.SynInheritSelf, "A class can't inherit from itself.")
		}

		c.beginScope()
		c.addLocal("super")
		c.defineVariable(0)

		c.namedVariable(className, false)
		c.emitOp(chunk.OpInherit)
		cls.hasSuperclass = true
	}

	c.namedVariable(className, false)
	c.consume(token.LBrace, "Expect '{' before class body.")
	for !c.check(token.RBrace) && !c.check(token.EOF) {
		c.method()
	}
	c.consume(token.RBrace, "Expect '}' after class body.")
	c.emitOp(chunk.OpPop)

	if cls.hasSuperclass {
		c.endScope()
	}
	c.class = cls.enclosing
}

func (c *Compiler) method() {
	c.consume(token.Ident, "Expect method name.")
	constant := c.identifierConstant(c.previous.Text)
	kind := TypeMethod
	if c.previous.Text == "init" {
		kind = TypeInitializer
	}
	c.function(kind)
	c.emitOpArg(chunk.OpMethod, constant)
}

func (c *Compiler) funDeclaration() {
	global := c.parseVariable("Expect function name.")
	// рекурсия: имя видно внутри собственного тела
	c.markInitialized()
	c.function(TypeFunction)
	c.defineVariable(global)
}

func (c *Compiler) function(kind FunctionType) {
	c.beginFunction(kind)
	c.beginScope()

	c.consume(token.LParen, "Expect '(' after function name.")
	if !c.check(token.RParen) {
		for {
			c.fs.fn.Arity++
			if c.fs.fn.Arity > maxArgs {
				c.errorAtCurrent(diag.SynTooManyParams, "Can't have more than 255 parameters.")
			}
			constant := c.parseVariable("Expect parameter name.")
			c.defineVariable(constant)
			if !c.match(token.Comma) {
				break
			}
		}
	}
	c.consume(token.RParen, "Expect ')' after parameters.")
	c.consume(token.LBrace, "Expect '{' before function body.")
	c.block()

	fn, upvalues := c.endFunction()
	c.emitOpArg(chunk.OpClosure, c.makeConstant(value.Obj(fn)))
	for _, up := range upvalues {
		var isLocal byte
		if up.isLocal {
			isLocal = 1
		}
		c.emitByte(isLocal)
		c.emitByte(up.index)
	}
}

func (c *Compiler) varDeclaration() {
	global := c.parseVariable("Expect variable name.")
	if c.match(token.Assign) {
		c.expression()
	} else {
		c.emitOp(chunk.OpNil)
	}
	c.consume(token.Semicolon, "Expect ';' after variable declaration.")
	c.defineVariable(global)
}

func (c *Compiler) statement() {
	switch {
	case c.match(token.KwPrint):
		c.printStatement()
	case c.match(token.KwFor):
		c.forStatement()
	case c.match(token.KwIf):
		c.ifStatement()
	case c.match(token.KwReturn):
		c.returnStatement()
	case c.match(token.KwWhile):
		c.whileStatement()
	case c.match(token.LBrace):
		c.beginScope()
		c.block()
		c.endScope()
	default:
		c.expressionStatement()
	}
}

func (c *Compiler) block() {
	for !c.check(token.RBrace) && !c.check(token.EOF) {
		c.declaration()
	}
	c.consume(token.RBrace, "Expect '}' after block.")
}

func (c *Compiler) printStatement() {
	c.expression()
	c.consume(token.Semicolon, "Expect ';' after value.")
	c.emitOp(chunk.OpPrint)
}

func (c *Compiler) expressionStatement() {
	c.expression()
	c.consume(token.Semicolon, "Expect ';' after expression.")
	c.emitOp(chunk.OpPop)
}

func (c *Compiler) ifStatement() {
	c.consume(token.LParen, "Expect '(' after 'if'.")
	c.expression()
	c.consume(token.RParen, "Expect ')' after condition.")

	thenJump := c.emitJump(chunk.OpJumpIfFalse)
	c.emitOp(chunk.OpPop)
	c.statement()

	elseJump := c.emitJump(chunk.OpJump)
	c.patchJump(thenJump)
	c.emitOp(chunk.OpPop)

	if c.match(token.KwElse) {
		c.statement()
	}
	c.patchJump(elseJump)
}

func (c *Compiler) whileStatement() {
	loopStart := c.chunk().Len()
	c.consume(token.LParen, "Expect '(' after 'while'.")
	c.expression()
	c.consume(token.RParen, "Expect ')' after condition.")

	exitJump := c.emitJump(chunk.OpJumpIfFalse)
	c.emitOp(chunk.OpPop)
	c.statement()
	c.emitLoop(loopStart)

	c.patchJump(exitJump)
	c.emitOp(chunk.OpPop)
}

func (c *Compiler) forStatement() {
	c.beginScope()
	c.consume(token.LParen, "Expect '(' after 'for'.")
	switch {
	case c.match(token.Semicolon):
	case c.match(token.KwVar):
		c.varDeclaration()
	default:
		c.expressionStatement()
	}

	loopStart := c.chunk().Len()
	exitJump := -1
	if !c.match(token.Semicolon) {
		c.expression()
		c.consume(token.Semicolon, "Expect ';' after loop condition.")
		exitJump = c.emitJump(chunk.OpJumpIfFalse)
		c.emitOp(chunk.OpPop)
	}

	if !c.match(token.RParen) {
		bodyJump := c.emitJump(chunk.OpJump)
		incrementStart := c.chunk().Len()
		c.expression()
		c.emitOp(chunk.OpPop)
		c.consume(token.RParen, "Expect ')' after for clauses.")

		c.emitLoop(loopStart)
		loopStart = incrementStart
		c.patchJump(bodyJump)
	}

	c.statement()
	c.emitLoop(loopStart)

	if exitJump != -1 {
		c.patchJump(exitJump)
		c.emitOp(chunk.OpPop)
	}
	c.endScope()
}

func (c *Compiler) returnStatement() {
	if c.fs.kind == TypeScript {
		c.error(diag.SynReturnTopLevel, "Can't return from top-level code.")
	}

	if c.match(token.Semicolon) {
		c.emitReturn()
		return
	}
	if c.fs.kind == TypeInitializer {
		c.error(diag.SynReturnFromInit, "Can't return a value from an initializer.")
	}
	c.expression()
	c.consume(token.Semicolon, "Expect ';' after return value.")
	c.emitOp(chunk.OpReturn)
}
