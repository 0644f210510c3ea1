package vm

import (
	"io"
	"os"
	"time"

	"loxvm/internal/table"
	"loxvm/internal/trace"
	"loxvm/internal/value"
)

const (
	// DefaultFramesMax bounds call depth.
	DefaultFramesMax = 64
	// SlotsPerFrame is the most stack slots one frame can address with a byte operand.
	SlotsPerFrame = 256
)

// Result classifies the outcome of an interpretation.
type Result uint8

const (
	InterpretOK Result = iota
	InterpretCompileError
	InterpretRuntimeError
)

func (r Result) String() string {
	switch r {
	case InterpretOK:
		return "ok"
	case InterpretCompileError:
		return "compile error"
	case InterpretRuntimeError:
		return "runtime error"
	default:
		return "unknown"
	}
}

// Options configures a VM.
type Options struct {
	TraceExec        bool // print stack and instruction before each step
	StressGC         bool
	LogGC            bool
	GrowthFactor     float64
	InitialThreshold int
	FramesMax        int
	Color            bool // colorize runtime errors
	Stdout           io.Writer
	Stderr           io.Writer // runtime errors, exec trace, GC log
	Tracer           trace.Tracer
}

// CallFrame is one active function invocation. Slots of the frame start at
// base; slot zero holds the callee or the receiver.
type CallFrame struct {
	closure value.Handle
	cl      *Closure
	fn      *Function
	ip      int
	base    int
}

// VM executes compiled functions. A VM is not safe for concurrent use.
type VM struct {
	heap   *Heap
	opts   Options
	stdout io.Writer
	stderr io.Writer

	frames     []CallFrame
	frameCount int
	stack      []value.Value
	sp         int

	globals      table.Table
	openUpvalues []value.Handle // ordered by stack slot, ascending
	initString   value.Handle

	errs    errorBuilder
	tracer  *Tracer
	lastErr *RuntimeError
	started time.Time
}

// New creates a VM with its own heap and the standard natives installed.
func New(opts Options) *VM {
	if opts.FramesMax <= 0 {
		opts.FramesMax = DefaultFramesMax
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	var gcLog io.Writer
	if opts.LogGC {
		gcLog = opts.Stderr
	}
	vm := &VM{
		heap: NewHeap(HeapOptions{
			InitialThreshold: opts.InitialThreshold,
			GrowthFactor:     opts.GrowthFactor,
			Stress:           opts.StressGC,
			Log:              gcLog,
			Tracer:           opts.Tracer,
		}),
		opts:    opts,
		stdout:  opts.Stdout,
		stderr:  opts.Stderr,
		frames:  make([]CallFrame, opts.FramesMax),
		stack:   make([]value.Value, opts.FramesMax*SlotsPerFrame),
		started: time.Now(),
	}
	vm.errs = errorBuilder{vm: vm}
	vm.globals.OnGrow = vm.heap.charge
	if opts.TraceExec {
		vm.tracer = NewTracer(opts.Stderr, vm.heap)
	}
	vm.heap.AddRoots(vm)
	vm.initString = vm.heap.CopyString("init")
	vm.defineStdlib()
	return vm
}

// Heap exposes the VM's heap to compilers and loaders.
func (vm *VM) Heap() *Heap { return vm.heap }

// SetOutput redirects print output.
func (vm *VM) SetOutput(w io.Writer) { vm.stdout = w }

// LastError returns the error from the most recent failed Interpret, if any.
func (vm *VM) LastError() *RuntimeError { return vm.lastErr }

// Interpret wraps fn in a closure and runs it to completion.
func (vm *VM) Interpret(fn value.Handle) Result {
	vm.lastErr = nil
	err := vm.protect(func() {
		vm.push(value.Obj(fn))
		closure := vm.heap.NewClosure(fn)
		vm.pop()
		vm.push(value.Obj(closure))
		vm.call(closure, 0)
		vm.run()
	})
	if err != nil {
		vm.lastErr = err
		err.Format(vm.stderr, vm.opts.Color)
		vm.resetStack()
		return InterpretRuntimeError
	}
	return InterpretOK
}

// protect runs body and converts a raised *RuntimeError into a return value.
func (vm *VM) protect(body func()) (rtErr *RuntimeError) {
	defer func() {
		if r := recover(); r != nil {
			e, ok := r.(*RuntimeError)
			if !ok {
				panic(r)
			}
			rtErr = e
		}
	}()
	body()
	return nil
}

// DefineNative binds name to fn in the global table.
func (vm *VM) DefineNative(name string, fn NativeFn) {
	vm.push(vm.heap.StringValue(name))
	vm.push(value.Obj(vm.heap.NewNative(name, fn)))
	vm.globals.Set(vm.heap.Key(vm.peek(1).AsObj()), vm.peek(0))
	vm.pop()
	vm.pop()
}

// Global looks up a global variable by name.
func (vm *VM) Global(name string) (value.Value, bool) {
	h, ok := vm.heap.Intern(name)
	if !ok {
		return value.Nil, false
	}
	return vm.globals.Get(vm.heap.Key(h))
}

// StackDepth reports the number of live operand-stack slots.
func (vm *VM) StackDepth() int { return vm.sp }

// FrameDepth reports the number of active call frames.
func (vm *VM) FrameDepth() int { return vm.frameCount }

// OpenUpvalues reports the number of upvalues still aliasing stack slots.
func (vm *VM) OpenUpvalues() int { return len(vm.openUpvalues) }

// MarkRoots implements RootSource.
func (vm *VM) MarkRoots(h *Heap) {
	for _, v := range vm.stack[:vm.sp] {
		h.MarkValue(v)
	}
	for i := 0; i < vm.frameCount; i++ {
		h.MarkObject(vm.frames[i].closure)
	}
	for _, up := range vm.openUpvalues {
		h.MarkObject(up)
	}
	vm.globals.Mark(h.MarkObject, h.MarkValue)
	h.MarkObject(vm.initString)
}

func (vm *VM) resetStack() {
	vm.sp = 0
	vm.frameCount = 0
	vm.openUpvalues = vm.openUpvalues[:0]
}

func (vm *VM) backtrace() []BacktraceFrame {
	frames := make([]BacktraceFrame, 0, vm.frameCount)
	for i := vm.frameCount - 1; i >= 0; i-- {
		f := &vm.frames[i]
		frames = append(frames, BacktraceFrame{
			Function: vm.heap.FunctionName(f.fn),
			Line:     f.fn.Chunk.Line(f.ip - 1),
			TopLevel: f.fn.Name == 0,
		})
	}
	return frames
}

func (vm *VM) push(v value.Value) {
	if vm.sp == len(vm.stack) {
		panic(vm.errs.stackOverflow())
	}
	vm.stack[vm.sp] = v
	vm.sp++
}

func (vm *VM) pop() value.Value {
	vm.sp--
	return vm.stack[vm.sp]
}

func (vm *VM) peek(distance int) value.Value {
	return vm.stack[vm.sp-1-distance]
}
