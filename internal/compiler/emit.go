package compiler

import (
	"loxvm/internal/chunk"
	"loxvm/internal/diag"
	"loxvm/internal/value"
)

func (c *Compiler) emitByte(b byte) {
	c.chunk().Write(b, c.previous.Line)
}

func (c *Compiler) emitOp(op chunk.OpCode) {
	c.chunk().WriteOp(op, c.previous.Line)
}

func (c *Compiler) emitOpArg(op chunk.OpCode, arg byte) {
	c.emitOp(op)
	c.emitByte(arg)
}

func (c *Compiler) emitReturn() {
	if c.fs.kind == TypeInitializer {
		c.emitOpArg(chunk.OpGetLocal, 0)
	} else {
		c.emitOp(chunk.OpNil)
	}
	c.emitOp(chunk.OpReturn)
}

func (c *Compiler) makeConstant(v value.Value) byte {
	idx, err := chunk.ByteOperand(c.chunk().AddConstant(v))
	if err != nil {
		c.error(diag.SynTooManyConstants, "Too many constants in one chunk.")
		return 0
	}
	return idx
}

func (c *Compiler) emitConstant(v value.Value) {
	c.emitOpArg(chunk.OpConstant, c.makeConstant(v))
}

// emitJump writes op with a placeholder offset and returns the operand position.
func (c *Compiler) emitJump(op chunk.OpCode) int {
	c.emitOp(op)
	c.emitByte(0xff)
	c.emitByte(0xff)
	return c.chunk().Len() - 2
}

func (c *Compiler) patchJump(at int) {
	jump, err := chunk.ShortOperand(c.chunk().Len() - at - 2)
	if err != nil {
		c.error(diag.SynJumpTooLarge, "Too much code to jump over.")
		return
	}
	c.chunk().PatchShort(at, jump)
}

func (c *Compiler) emitLoop(loopStart int) {
	c.emitOp(chunk.OpLoop)
	offset, err := chunk.ShortOperand(c.chunk().Len() - loopStart + 2)
	if err != nil {
		c.error(diag.SynLoopTooLarge, "Loop body too large.")
	}
	c.emitByte(byte(offset >> 8))
	c.emitByte(byte(offset))
}
