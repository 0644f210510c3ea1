package compiler

import (
	"io"

	"loxvm/internal/chunk"
	"loxvm/internal/diag"
	"loxvm/internal/lexer"
	"loxvm/internal/source"
	"loxvm/internal/token"
	"loxvm/internal/value"
	"loxvm/internal/vm"
)

const (
	maxLocals   = 256
	maxUpvalues = 256
	maxArgs     = 255
)

// FunctionType distinguishes the bodies the compiler can be inside.
type FunctionType uint8

const (
	TypeFunction FunctionType = iota
	TypeInitializer
	TypeMethod
	TypeScript
)

// Options configures a compilation.
type Options struct {
	Reporter  diag.Reporter
	PrintCode io.Writer // disassemble every function that compiled cleanly
}

type local struct {
	name       string
	depth      int // -1 while the initializer is being compiled
	isCaptured bool
}

type upvalueRef struct {
	index   byte
	isLocal bool
}

type funcState struct {
	enclosing  *funcState
	handle     value.Handle
	fn         *vm.Function
	kind       FunctionType
	locals     []local
	upvalues   []upvalueRef
	scopeDepth int
}

type classState struct {
	enclosing     *classState
	hasSuperclass bool
}

// Compiler holds parser and emitter state for one source file.
type Compiler struct {
	heap *vm.Heap
	file *source.File
	lx   *lexer.Lexer
	opts Options

	current   token.Token
	previous  token.Token
	hadError  bool
	panicMode bool

	fs    *funcState
	class *classState
}

// Compile compiles file into a top-level script function. The returned
// handle is valid only when ok is true; errors have already been reported.
func Compile(heap *vm.Heap, file *source.File, reporter diag.Reporter) (value.Handle, bool) {
	return CompileWith(heap, file, Options{Reporter: reporter})
}

// CompileWith is Compile with explicit options.
func CompileWith(heap *vm.Heap, file *source.File, opts Options) (value.Handle, bool) {
	c := &Compiler{
		heap: heap,
		file: file,
		lx:   lexer.New(file),
		opts: opts,
	}
	heap.AddRoots(c)
	defer heap.RemoveRoots(c)

	c.beginFunction(TypeScript)
	c.advance()
	for !c.match(token.EOF) {
		c.declaration()
	}
	script, _ := c.endFunction()
	if c.hadError {
		return 0, false
	}
	return script, true
}

// MarkRoots implements vm.RootSource. Every function still being compiled is
// reachable only from here.
func (c *Compiler) MarkRoots(h *vm.Heap) {
	for fs := c.fs; fs != nil; fs = fs.enclosing {
		h.MarkObject(fs.handle)
	}
}

func (c *Compiler) chunk() *chunk.Chunk { return c.fs.fn.Chunk }

func (c *Compiler) beginFunction(kind FunctionType) {
	handle := c.heap.NewFunction()
	fs := &funcState{
		enclosing: c.fs,
		handle:    handle,
		fn:        c.heap.Function(handle),
		kind:      kind,
		locals:    make([]local, 0, 8),
	}
	c.fs = fs
	if kind != TypeScript {
		fs.fn.Name = c.heap.CopyString(c.previous.Text)
	}

	// слот 0 занят вызываемым объектом или получателем
	slot0 := ""
	if kind != TypeFunction && kind != TypeScript {
		slot0 = "this"
	}
	fs.locals = append(fs.locals, local{name: slot0})
}

func (c *Compiler) endFunction() (value.Handle, []upvalueRef) {
	c.emitReturn()
	fs := c.fs
	fs.fn.UpvalueCount = len(fs.upvalues)
	if c.opts.PrintCode != nil && !c.hadError {
		name := "<script>"
		if fs.fn.Name != 0 {
			name = c.heap.Str(fs.fn.Name).Chars
		}
		chunk.Disassemble(c.opts.PrintCode, fs.fn.Chunk, name, c.heap)
	}
	c.fs = fs.enclosing
	return fs.handle, fs.upvalues
}
