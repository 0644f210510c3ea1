package vm

import (
	"fmt"
	"io"
	"strings"

	"loxvm/internal/chunk"
)

// Tracer prints the operand stack and the next instruction before every step.
type Tracer struct {
	w    io.Writer
	heap *Heap
	sb   strings.Builder
}

// NewTracer creates a tracer writing to w.
func NewTracer(w io.Writer, heap *Heap) *Tracer {
	return &Tracer{w: w, heap: heap}
}

// TraceInstr traces the instruction frame is about to execute.
// Format: "          [ a ][ b ]" then the disassembled instruction.
func (t *Tracer) TraceInstr(vm *VM, frame *CallFrame) {
	if t == nil || t.w == nil {
		return
	}
	t.sb.Reset()
	t.sb.WriteString("          ")
	for _, v := range vm.stack[:vm.sp] {
		t.sb.WriteString("[ ")
		t.sb.WriteString(t.heap.FormatValue(v))
		t.sb.WriteString(" ]")
	}
	t.sb.WriteByte('\n')
	_, _ = io.WriteString(t.w, t.sb.String())
	chunk.DisassembleInstruction(t.w, frame.fn.Chunk, frame.ip, t.heap)
}

// DumpFunction disassembles fn and, recursively, every function in its
// constant pool.
func (h *Heap) DumpFunction(w io.Writer, fn *Function) {
	name := "<script>"
	if fn.Name != 0 {
		name = h.Str(fn.Name).Chars
	}
	chunk.Disassemble(w, fn.Chunk, name, h)
	for _, c := range fn.Chunk.Constants {
		if h.IsKind(c, OKFunction) {
			fmt.Fprintln(w)
			h.DumpFunction(w, h.Function(c.AsObj()))
		}
	}
}
