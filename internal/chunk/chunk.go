// Package chunk holds the bytecode unit produced by the compiler for one
// function body: the instruction stream, a parallel line table and the
// constant pool.
package chunk

import (
	"fmt"
	"strconv"

	"fortio.org/safecast"

	"loxvm/internal/value"
)

// MaxConstants is the number of constants addressable by a one-byte operand.
const MaxConstants = 256

const (
	lineSize  = strconv.IntSize / 8
	valueSize = 8
)

// Chunk is append-only while the compiler owns it and read-only afterwards.
type Chunk struct {
	Code      []byte
	Lines     []int
	Constants []value.Value

	// OnGrow, when set, is told how many bytes each append added to the
	// backing arrays.
	OnGrow func(delta int)
}

// New returns an empty chunk.
func New() *Chunk {
	return &Chunk{}
}

// Write appends one byte tagged with the source line it came from.
func (c *Chunk) Write(b byte, line int) {
	before := c.Bytes()
	c.Code = append(c.Code, b)
	c.Lines = append(c.Lines, line)
	c.charge(before)
}

// Append copies a whole code stream with its line table, as a loader does.
func (c *Chunk) Append(code []byte, lines []int) {
	before := c.Bytes()
	c.Code = append(c.Code, code...)
	c.Lines = append(c.Lines, lines...)
	c.charge(before)
}

// WriteOp appends an opcode.
func (c *Chunk) WriteOp(op OpCode, line int) {
	c.Write(byte(op), line)
}

// AddConstant appends v to the pool and returns its index.
func (c *Chunk) AddConstant(v value.Value) int {
	before := c.Bytes()
	c.Constants = append(c.Constants, v)
	c.charge(before)
	return len(c.Constants) - 1
}

// Bytes is the capacity of the backing arrays in bytes.
func (c *Chunk) Bytes() int {
	return cap(c.Code) + cap(c.Lines)*lineSize + cap(c.Constants)*valueSize
}

func (c *Chunk) charge(before int) {
	if c.OnGrow == nil {
		return
	}
	if delta := c.Bytes() - before; delta != 0 {
		c.OnGrow(delta)
	}
}

// Len is the number of code bytes.
func (c *Chunk) Len() int { return len(c.Code) }

// Line returns the source line of the byte at offset, or 0 when out of range.
func (c *Chunk) Line(offset int) int {
	if offset < 0 || offset >= len(c.Lines) {
		return 0
	}
	return c.Lines[offset]
}

// ReadShort decodes the big-endian u16 operand starting at offset.
func (c *Chunk) ReadShort(offset int) uint16 {
	return uint16(c.Code[offset])<<8 | uint16(c.Code[offset+1])
}

// PatchShort overwrites the u16 operand at offset.
func (c *Chunk) PatchShort(offset int, v uint16) {
	c.Code[offset] = byte(v >> 8)
	c.Code[offset+1] = byte(v)
}

// ByteOperand converts n into a one-byte operand, failing when it does not fit.
func ByteOperand(n int) (byte, error) {
	b, err := safecast.Conv[uint8](n)
	if err != nil {
		return 0, fmt.Errorf("operand %d does not fit in a byte: %w", n, err)
	}
	return b, nil
}

// ShortOperand converts n into a u16 operand, failing when it does not fit.
func ShortOperand(n int) (uint16, error) {
	s, err := safecast.Conv[uint16](n)
	if err != nil {
		return 0, fmt.Errorf("operand %d does not fit in 16 bits: %w", n, err)
	}
	return s, nil
}
