// Package image serializes compiled programs to the .loxc format and loads
// them back into a heap without the compiler.
//
// An image is a msgpack document holding a flat function table. Strings and
// numbers are stored by value; function constants refer to other entries by
// index. Entry 0 is the top-level script.
package image

import (
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"loxvm/internal/chunk"
	"loxvm/internal/value"
	"loxvm/internal/vm"
)

// SchemaVersion is bumped whenever the encoded layout changes.
const SchemaVersion uint16 = 1

const magic = "LOXC"

// Ext is the file extension of program images.
const Ext = ".loxc"

// ErrBadImage is wrapped by every structural decoding failure.
var ErrBadImage = errors.New("malformed image")

// ConstKind tags a constant-pool entry.
type ConstKind uint8

const (
	ConstNil ConstKind = iota
	ConstBool
	ConstNumber
	ConstString
	ConstFunction
)

// Program is the on-disk document.
type Program struct {
	Magic     string     `msgpack:"magic"`
	Schema    uint16     `msgpack:"schema"`
	Source    string     `msgpack:"source,omitempty"`
	Functions []Function `msgpack:"functions"`
}

// Function is one encoded function body.
type Function struct {
	Name         string     `msgpack:"name,omitempty"` // empty for the script
	Arity        int        `msgpack:"arity"`
	UpvalueCount int        `msgpack:"upvalues"`
	Code         []byte     `msgpack:"code"`
	Lines        []int      `msgpack:"lines"`
	Constants    []Constant `msgpack:"constants"`
}

// Constant is a tagged constant-pool entry.
type Constant struct {
	Kind ConstKind `msgpack:"k"`
	Bool bool      `msgpack:"b,omitempty"`
	Num  float64   `msgpack:"n,omitempty"`
	Str  string    `msgpack:"s,omitempty"`
	Fn   int       `msgpack:"f,omitempty"`
}

// Encode serializes script and every function reachable from its constants.
func Encode(heap *vm.Heap, script value.Handle, sourcePath string) ([]byte, error) {
	prog, err := Build(heap, script)
	if err != nil {
		return nil, err
	}
	prog.Source = sourcePath
	return Marshal(prog)
}

// Marshal serializes an already built program.
func Marshal(prog *Program) ([]byte, error) {
	return msgpack.Marshal(prog)
}

// Build flattens script into a Program without serializing it.
func Build(heap *vm.Heap, script value.Handle) (*Program, error) {
	b := builder{heap: heap, index: make(map[value.Handle]int)}
	if _, err := b.add(script); err != nil {
		return nil, err
	}
	return &Program{Magic: magic, Schema: SchemaVersion, Functions: b.fns}, nil
}

type builder struct {
	heap  *vm.Heap
	index map[value.Handle]int
	fns   []Function
}

func (b *builder) add(handle value.Handle) (int, error) {
	if idx, ok := b.index[handle]; ok {
		return idx, nil
	}
	fn := b.heap.Function(handle)
	idx := len(b.fns)
	b.index[handle] = idx
	b.fns = append(b.fns, Function{
		Arity:        fn.Arity,
		UpvalueCount: fn.UpvalueCount,
		Code:         append([]byte(nil), fn.Chunk.Code...),
		Lines:        append([]int(nil), fn.Chunk.Lines...),
	})
	if fn.Name != 0 {
		b.fns[idx].Name = b.heap.Str(fn.Name).Chars
	}

	consts := make([]Constant, 0, len(fn.Chunk.Constants))
	for _, c := range fn.Chunk.Constants {
		ec, err := b.constant(c)
		if err != nil {
			return 0, err
		}
		consts = append(consts, ec)
	}
	b.fns[idx].Constants = consts
	return idx, nil
}

func (b *builder) constant(v value.Value) (Constant, error) {
	switch {
	case v.IsNil():
		return Constant{Kind: ConstNil}, nil
	case v.IsBool():
		return Constant{Kind: ConstBool, Bool: v.AsBool()}, nil
	case v.IsNumber():
		return Constant{Kind: ConstNumber, Num: v.AsNumber()}, nil
	}
	switch b.heap.KindOf(v) {
	case vm.OKString:
		return Constant{Kind: ConstString, Str: b.heap.Chars(v)}, nil
	case vm.OKFunction:
		idx, err := b.add(v.AsObj())
		return Constant{Kind: ConstFunction, Fn: idx}, err
	default:
		return Constant{}, fmt.Errorf("constant of kind %s cannot be stored in an image", b.heap.KindOf(v))
	}
}

// Decode loads data into heap and returns the script function. The returned
// handle is unrooted; pass it to the VM before allocating again.
func Decode(heap *vm.Heap, data []byte) (value.Handle, error) {
	var prog Program
	if err := msgpack.Unmarshal(data, &prog); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrBadImage, err)
	}
	return Load(heap, &prog)
}

// Load materializes prog in heap.
func Load(heap *vm.Heap, prog *Program) (value.Handle, error) {
	if err := Validate(prog); err != nil {
		return 0, err
	}

	l := &loader{}
	heap.AddRoots(l)
	defer heap.RemoveRoots(l)

	for _, ef := range prog.Functions {
		handle := heap.NewFunction()
		l.fns = append(l.fns, handle)
		fn := heap.Function(handle)
		fn.Arity = ef.Arity
		fn.UpvalueCount = ef.UpvalueCount
		if ef.Name != "" {
			fn.Name = heap.CopyString(ef.Name)
		}
	}
	for i, ef := range prog.Functions {
		c := heap.Function(l.fns[i]).Chunk
		c.Append(ef.Code, ef.Lines)
		for _, ec := range ef.Constants {
			// CopyString may collect; the constant lands in the pool before the next allocation
			c.AddConstant(l.value(heap, ec))
		}
	}
	return l.fns[0], nil
}

// loader keeps every function of a partially loaded image alive.
type loader struct {
	fns []value.Handle
}

func (l *loader) MarkRoots(h *vm.Heap) {
	for _, fn := range l.fns {
		h.MarkObject(fn)
	}
}

func (l *loader) value(heap *vm.Heap, c Constant) value.Value {
	switch c.Kind {
	case ConstBool:
		return value.Bool(c.Bool)
	case ConstNumber:
		return value.Number(c.Num)
	case ConstString:
		return value.Obj(heap.CopyString(c.Str))
	case ConstFunction:
		return value.Obj(l.fns[c.Fn])
	default:
		return value.Nil
	}
}

// Validate checks the structure of prog: header, constant references and
// that every instruction decodes with in-range operands.
func Validate(prog *Program) error {
	if prog.Magic != magic {
		return fmt.Errorf("%w: bad magic %q", ErrBadImage, prog.Magic)
	}
	if prog.Schema != SchemaVersion {
		return fmt.Errorf("%w: schema %d, want %d", ErrBadImage, prog.Schema, SchemaVersion)
	}
	if len(prog.Functions) == 0 {
		return fmt.Errorf("%w: no functions", ErrBadImage)
	}
	if prog.Functions[0].Name != "" {
		return fmt.Errorf("%w: entry function must be the script", ErrBadImage)
	}
	for i := range prog.Functions {
		if err := validateFunction(prog, i); err != nil {
			return fmt.Errorf("%w: function %d: %w", ErrBadImage, i, err)
		}
	}
	return nil
}

func validateFunction(prog *Program, i int) error {
	fn := &prog.Functions[i]
	if len(fn.Lines) != len(fn.Code) {
		return fmt.Errorf("%d lines for %d code bytes", len(fn.Lines), len(fn.Code))
	}
	if len(fn.Constants) > chunk.MaxConstants {
		return fmt.Errorf("%d constants", len(fn.Constants))
	}
	for _, c := range fn.Constants {
		if c.Kind > ConstFunction {
			return fmt.Errorf("unknown constant kind %d", c.Kind)
		}
		if c.Kind == ConstFunction && (c.Fn <= 0 || c.Fn >= len(prog.Functions)) {
			return fmt.Errorf("function constant %d out of range", c.Fn)
		}
	}

	for off := 0; off < len(fn.Code); {
		op := chunk.OpCode(fn.Code[off])
		if !op.Valid() {
			return fmt.Errorf("unknown opcode %d at %d", op, off)
		}
		width := op.OperandBytes()
		if op == chunk.OpClosure && off+1 < len(fn.Code) {
			idx := int(fn.Code[off+1])
			if idx >= len(fn.Constants) || fn.Constants[idx].Kind != ConstFunction {
				return fmt.Errorf("closure at %d does not name a function", off)
			}
			width += 2 * prog.Functions[fn.Constants[idx].Fn].UpvalueCount
		}
		if off+width >= len(fn.Code) {
			return fmt.Errorf("truncated %s at %d", op, off)
		}
		if usesConstant(op) && int(fn.Code[off+1]) >= len(fn.Constants) {
			return fmt.Errorf("%s at %d: constant %d out of range", op, off, fn.Code[off+1])
		}
		off += 1 + width
	}
	return nil
}

func usesConstant(op chunk.OpCode) bool {
	switch op {
	case chunk.OpConstant, chunk.OpGetGlobal, chunk.OpDefineGlobal, chunk.OpSetGlobal,
		chunk.OpGetProperty, chunk.OpSetProperty, chunk.OpGetSuper, chunk.OpClass,
		chunk.OpMethod, chunk.OpInvoke, chunk.OpSuperInvoke, chunk.OpClosure:
		return true
	}
	return false
}
