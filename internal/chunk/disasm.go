package chunk

import (
	"fmt"
	"io"

	"loxvm/internal/value"
)

// Inspector resolves constant-pool entries the disassembler cannot render on
// its own because they point into a heap.
type Inspector interface {
	FormatValue(v value.Value) string
	// UpvalueCount returns the number of upvalue descriptors that follow an
	// OP_CLOSURE whose function constant is v.
	UpvalueCount(v value.Value) int
}

// Disassemble writes every instruction in c under a "== name ==" header.
func Disassemble(w io.Writer, c *Chunk, name string, in Inspector) {
	fmt.Fprintf(w, "== %s ==\n", name)
	for offset := 0; offset < len(c.Code); {
		offset = DisassembleInstruction(w, c, offset, in)
	}
}

// DisassembleInstruction writes the instruction at offset and returns the
// offset of the next one.
func DisassembleInstruction(w io.Writer, c *Chunk, offset int, in Inspector) int {
	fmt.Fprintf(w, "%04d ", offset)
	if offset > 0 && c.Lines[offset] == c.Lines[offset-1] {
		fmt.Fprint(w, "   | ")
	} else {
		fmt.Fprintf(w, "%4d ", c.Lines[offset])
	}

	op := OpCode(c.Code[offset])
	switch op {
	case OpConstant, OpGetGlobal, OpDefineGlobal, OpSetGlobal,
		OpGetProperty, OpSetProperty, OpGetSuper, OpClass, OpMethod:
		return constantInstruction(w, op, c, offset, in)
	case OpGetLocal, OpSetLocal, OpGetUpvalue, OpSetUpvalue, OpCall:
		return byteInstruction(w, op, c, offset)
	case OpJump, OpJumpIfFalse:
		return jumpInstruction(w, op, 1, c, offset)
	case OpLoop:
		return jumpInstruction(w, op, -1, c, offset)
	case OpInvoke, OpSuperInvoke:
		return invokeInstruction(w, op, c, offset, in)
	case OpClosure:
		return closureInstruction(w, c, offset, in)
	default:
		if !op.Valid() {
			fmt.Fprintf(w, "Unknown opcode %d\n", uint8(op))
			return offset + 1
		}
		fmt.Fprintf(w, "%s\n", op)
		return offset + 1
	}
}

func constantInstruction(w io.Writer, op OpCode, c *Chunk, offset int, in Inspector) int {
	idx := c.Code[offset+1]
	fmt.Fprintf(w, "%-16s %4d '%s'\n", op, idx, formatConstant(c, int(idx), in))
	return offset + 2
}

func byteInstruction(w io.Writer, op OpCode, c *Chunk, offset int) int {
	fmt.Fprintf(w, "%-16s %4d\n", op, c.Code[offset+1])
	return offset + 2
}

func jumpInstruction(w io.Writer, op OpCode, sign int, c *Chunk, offset int) int {
	jump := int(c.ReadShort(offset + 1))
	fmt.Fprintf(w, "%-16s %4d -> %d\n", op, offset, offset+3+sign*jump)
	return offset + 3
}

func invokeInstruction(w io.Writer, op OpCode, c *Chunk, offset int, in Inspector) int {
	idx := c.Code[offset+1]
	argc := c.Code[offset+2]
	fmt.Fprintf(w, "%-16s (%d args) %4d '%s'\n", op, argc, idx, formatConstant(c, int(idx), in))
	return offset + 3
}

func closureInstruction(w io.Writer, c *Chunk, offset int, in Inspector) int {
	offset++
	idx := int(c.Code[offset])
	offset++
	fmt.Fprintf(w, "%-16s %4d %s\n", OpClosure, idx, formatConstant(c, idx, in))

	count := 0
	if in != nil && idx < len(c.Constants) {
		count = in.UpvalueCount(c.Constants[idx])
	}
	for range count {
		isLocal := c.Code[offset]
		index := c.Code[offset+1]
		kind := "upvalue"
		if isLocal == 1 {
			kind = "local"
		}
		fmt.Fprintf(w, "%04d      |                     %s %d\n", offset, kind, index)
		offset += 2
	}
	return offset
}

func formatConstant(c *Chunk, idx int, in Inspector) string {
	if idx >= len(c.Constants) {
		return "<bad constant>"
	}
	v := c.Constants[idx]
	if in != nil {
		return in.FormatValue(v)
	}
	return v.String()
}
