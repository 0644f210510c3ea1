package lexer

import (
	"fmt"

	"fortio.org/safecast"

	"loxvm/internal/source"
)

// Cursor is a byte position in a file that also tracks the current line.
type Cursor struct {
	File  *source.File
	Off   uint32
	Line  int
	limit uint32
}

// NewCursor creates a cursor at the start of f.
func NewCursor(f *source.File) Cursor {
	limit, err := safecast.Conv[uint32](len(f.Content))
	if err != nil {
		panic(fmt.Errorf("len file content overflow: %w", err))
	}
	return Cursor{File: f, Line: 1, limit: limit}
}

// EOF проверяет, достигнут ли конец файла
func (c *Cursor) EOF() bool {
	return c.Off >= c.limit
}

// Peek returns the current byte, or 0 at EOF.
func (c *Cursor) Peek() byte {
	if c.EOF() {
		return 0
	}
	return c.File.Content[c.Off]
}

// PeekNext returns the byte after the current one, or 0.
func (c *Cursor) PeekNext() byte {
	if c.Off+1 >= c.limit {
		return 0
	}
	return c.File.Content[c.Off+1]
}

// Bump consumes one byte and returns it, counting newlines.
func (c *Cursor) Bump() byte {
	if c.EOF() {
		return 0
	}
	b := c.File.Content[c.Off]
	c.Off++
	if b == '\n' {
		c.Line++
	}
	return b
}

// Eat consumes the next byte if it is b.
func (c *Cursor) Eat(b byte) bool {
	if !c.EOF() && c.File.Content[c.Off] == b {
		c.Bump()
		return true
	}
	return false
}

// Mark is a saved offset used to build spans.
type Mark uint32

// Mark сохраняет текущую позицию курсора
func (c *Cursor) Mark() Mark {
	return Mark(c.Off)
}

// SpanFrom returns the span from m to the current offset.
func (c *Cursor) SpanFrom(m Mark) source.Span {
	return source.Span{File: c.File.ID, Start: uint32(m), End: c.Off}
}
