package compiler

import (
	"loxvm/internal/chunk"
	"loxvm/internal/diag"
	"loxvm/internal/token"
	"loxvm/internal/value"
)

func (c *Compiler) beginScope() { c.fs.scopeDepth++ }

func (c *Compiler) endScope() {
	fs := c.fs
	fs.scopeDepth--
	for len(fs.locals) > 0 && fs.locals[len(fs.locals)-1].depth > fs.scopeDepth {
		if fs.locals[len(fs.locals)-1].isCaptured {
			c.emitOp(chunk.OpCloseUpvalue)
		} else {
			c.emitOp(chunk.OpPop)
		}
		fs.locals = fs.locals[:len(fs.locals)-1]
	}
}

func (c *Compiler) identifierConstant(name string) byte {
	return c.makeConstant(value.Obj(c.heap.CopyString(name)))
}

func (c *Compiler) addLocal(name string) {
	if len(c.fs.locals) == maxLocals {
		c.error(diag.SynTooManyLocals, "Too many local variables in function.")
		return
	}
	c.fs.locals = append(c.fs.locals, local{name: name, depth: -1})
}

func (c *Compiler) declareVariable() {
	fs := c.fs
	if fs.scopeDepth == 0 {
		return
	}
	name := c.previous.Text
	for i := len(fs.locals) - 1; i >= 0; i-- {
		l := &fs.locals[i]
		if l.depth != -1 && l.depth < fs.scopeDepth {
			break
		}
		if l.name == name {
			c.error(diag.SynDuplicateLocal, "Already a variable with this name in this scope.")
		}
	}
	c.addLocal(name)
}

// parseVariable consumes a name and returns its constant index for globals, 0 for locals.
func (c *Compiler) parseVariable(msg string) byte {
	c.consume(token.Ident, msg)
	c.declareVariable()
	if c.fs.scopeDepth > 0 {
		return 0
	}
	return c.identifierConstant(c.previous.Text)
}

func (c *Compiler) markInitialized() {
	if c.fs.scopeDepth == 0 {
		return
	}
	c.fs.locals[len(c.fs.locals)-1].depth = c.fs.scopeDepth
}

func (c *Compiler) defineVariable(global byte) {
	if c.fs.scopeDepth > 0 {
		c.markInitialized()
		return
	}
	c.emitOpArg(chunk.OpDefineGlobal, global)
}

func (c *Compiler) resolveLocal(fs *funcState, name string) int {
	for i := len(fs.locals) - 1; i >= 0; i-- {
		if fs.locals[i].name != name {
			continue
		}
		if fs.locals[i].depth == -1 {
			c.error(diag.SynLocalInOwnInit, "Can't read local variable in its own initializer.")
		}
		return i
	}
	return -1
}

// resolveUpvalue finds name in an enclosing function and threads an upvalue
// through every function in between.
func (c *Compiler) resolveUpvalue(fs *funcState, name string) int {
	if fs.enclosing == nil {
		return -1
	}
	if slot := c.resolveLocal(fs.enclosing, name); slot >= 0 {
		fs.enclosing.locals[slot].isCaptured = true
		return c.addUpvalue(fs, byte(slot), true) // #nosec G115 -- < maxLocals
	}
	if idx := c.resolveUpvalue(fs.enclosing, name); idx >= 0 {
		return c.addUpvalue(fs, byte(idx), false) // #nosec G115 -- < maxUpvalues
	}
	return -1
}

func (c *Compiler) addUpvalue(fs *funcState, index byte, isLocal bool) int {
	for i, up := range fs.upvalues {
		if up.index == index && up.isLocal == isLocal {
			return i
		}
	}
	if len(fs.upvalues) == maxUpvalues {
		c.error(diag.SynTooManyUpvalues, "Too many closure variables in function.")
		return 0
	}
	fs.upvalues = append(fs.upvalues, upvalueRef{index: index, isLocal: isLocal})
	return len(fs.upvalues) - 1
}
