// Package driver wires the compiler, image loader and VM into runnable
// sessions: files, images, REPL lines and disassembly listings.
package driver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"loxvm/internal/compiler"
	"loxvm/internal/diag"
	"loxvm/internal/diagfmt"
	"loxvm/internal/image"
	"loxvm/internal/observ"
	"loxvm/internal/source"
	"loxvm/internal/trace"
	"loxvm/internal/value"
	"loxvm/internal/vm"
)

// DefaultMaxDiagnostics bounds the compile errors kept per source.
const DefaultMaxDiagnostics uint16 = 100

// Options configures a Session.
type Options struct {
	// Cache, when set, is consulted before compiling and filled after.
	Cache *CompileCache
	// Timer receives one phase per load, compile and execute step.
	Timer    *observ.Timer
	Observer PhaseObserver
	// PrintCode disassembles every compiled function; it bypasses the cache.
	PrintCode io.Writer
	// Diagnostics receives rendered compile errors. Defaults to os.Stderr.
	Diagnostics    io.Writer
	Color          bool
	MaxDiagnostics uint16
	// VerboseDiagnostics renders errors as "path:line:col: ERROR CODE: msg".
	VerboseDiagnostics bool
}

// Session compiles and runs sources against one VM. Globals persist between
// calls, which is what the REPL relies on.
type Session struct {
	VM    *vm.VM
	Files *source.FileSet
	opts  Options

	// CacheHits counts compilations served from the cache.
	CacheHits int
}

// NewSession wraps machine.
func NewSession(machine *vm.VM, opts Options) *Session {
	if opts.Diagnostics == nil {
		opts.Diagnostics = os.Stderr
	}
	if opts.MaxDiagnostics == 0 {
		opts.MaxDiagnostics = DefaultMaxDiagnostics
	}
	return &Session{VM: machine, Files: source.NewFileSet(), opts: opts}
}

// Interpret compiles file and runs it on machine, printing compile errors to
// stderr. Runtime errors are printed by the VM itself.
func Interpret(ctx context.Context, machine *vm.VM, file *source.File) (vm.Result, *diag.Bag) {
	return NewSession(machine, Options{}).Interpret(ctx, file)
}

// phase starts a timed, traced step and returns the function that ends it.
func (s *Session) phase(ctx context.Context, name string) (context.Context, func(note string)) {
	span := trace.Begin(trace.FromContext(ctx), trace.ScopePass, name, trace.CurrentSpan(ctx))
	idx := -1
	if s.opts.Timer != nil {
		idx = s.opts.Timer.Begin(name)
	}
	if s.opts.Observer != nil {
		s.opts.Observer(PhaseEvent{Name: name, Status: PhaseStart})
	}
	return trace.WithSpan(ctx, span), func(note string) {
		elapsed := span.End(note)
		if s.opts.Timer != nil {
			s.opts.Timer.End(idx, note)
		}
		if s.opts.Observer != nil {
			s.opts.Observer(PhaseEvent{Name: name, Status: PhaseEnd, Elapsed: elapsed})
		}
	}
}

// Compile turns file into a script function. The handle is unrooted: hand it
// to the VM before anything else allocates on its heap.
func (s *Session) Compile(ctx context.Context, file *source.File) (value.Handle, *diag.Bag) {
	bag := diag.NewBag(s.opts.MaxDiagnostics)
	heap := s.VM.Heap()

	if s.opts.Cache != nil && s.opts.PrintCode == nil {
		if fn, ok := s.fromCache(ctx, file); ok {
			return fn, bag
		}
	}

	_, end := s.phase(ctx, "compile")
	fn, ok := compiler.CompileWith(heap, file, compiler.Options{
		Reporter:  diag.BagReporter{Bag: bag},
		PrintCode: s.opts.PrintCode,
	})
	if !ok {
		end(fmt.Sprintf("%d errors", bag.Len()))
		return 0, bag
	}
	end("")

	if s.opts.Cache != nil && s.opts.PrintCode == nil {
		s.toCache(ctx, file, fn)
	}
	return fn, bag
}

func (s *Session) fromCache(ctx context.Context, file *source.File) (value.Handle, bool) {
	_, end := s.phase(ctx, "cache")
	var payload CachePayload
	hit, err := s.opts.Cache.Get(file.Hash, &payload)
	if err != nil || !hit {
		end("miss")
		return 0, false
	}
	fn, err := image.Load(s.VM.Heap(), payload.Program)
	if err != nil {
		trace.Point(trace.FromContext(ctx), trace.ScopeDriver, "cache-reject", err.Error(), nil)
		end("reject")
		return 0, false
	}
	s.CacheHits++
	end("hit")
	return fn, true
}

func (s *Session) toCache(ctx context.Context, file *source.File, fn value.Handle) {
	prog, err := image.Build(s.VM.Heap(), fn)
	if err == nil {
		err = s.opts.Cache.Put(file.Hash, &CachePayload{Path: file.Path, Program: prog})
	}
	if err != nil {
		// кэш не обязателен: ошибка записи не мешает запуску
		trace.Point(trace.FromContext(ctx), trace.ScopeDriver, "cache-write", err.Error(), nil)
	}
}

// Interpret compiles and runs file. Compile errors are rendered to the
// diagnostics writer and returned in the bag.
func (s *Session) Interpret(ctx context.Context, file *source.File) (vm.Result, *diag.Bag) {
	span := trace.Begin(trace.FromContext(ctx), trace.ScopeDriver, "interpret", trace.CurrentSpan(ctx)).
		WithExtra("path", file.Path)
	ctx = trace.WithSpan(ctx, span)

	fn, bag := s.Compile(ctx, file)
	if bag.HasErrors() {
		s.report(bag)
		span.End(vm.InterpretCompileError.String())
		return vm.InterpretCompileError, bag
	}
	res := s.execute(ctx, fn)
	span.End(res.String())
	return res, bag
}

func (s *Session) report(bag *diag.Bag) {
	if s.opts.VerboseDiagnostics {
		diagfmt.Short(s.opts.Diagnostics, bag, s.Files)
		return
	}
	diagfmt.Pretty(s.opts.Diagnostics, bag, diagfmt.PrettyOpts{Color: s.opts.Color})
}

// InterpretSource adds src to the session's file set under name and runs it.
func (s *Session) InterpretSource(ctx context.Context, name string, src []byte) (vm.Result, *diag.Bag) {
	id := s.Files.AddVirtual(name, src)
	return s.Interpret(ctx, s.Files.Get(id))
}

func (s *Session) execute(ctx context.Context, fn value.Handle) vm.Result {
	_, end := s.phase(ctx, "execute")
	before := s.VM.Heap().Stats()
	res := s.VM.Interpret(fn)
	after := s.VM.Heap().Stats()
	end(res.String() + ", gc=" + strconv.Itoa(after.Collections-before.Collections))
	return res
}

// RunFile loads path and runs it. Paths ending in image.Ext are decoded as
// program images; anything else is compiled as Lox source. The error is set
// only when the file could not be read or decoded.
func (s *Session) RunFile(ctx context.Context, path string) (vm.Result, error) {
	if err := ctx.Err(); err != nil {
		return vm.InterpretOK, err
	}
	if strings.HasSuffix(path, image.Ext) {
		// #nosec G304 -- path is provided by the caller
		data, err := os.ReadFile(path)
		if err != nil {
			return vm.InterpretOK, err
		}
		return s.RunImage(ctx, data)
	}

	_, end := s.phase(ctx, "load")
	id, err := s.Files.Load(path)
	if err != nil {
		end("failed")
		return vm.InterpretOK, err
	}
	end("")
	res, _ := s.Interpret(ctx, s.Files.Get(id))
	return res, nil
}

// RunImage decodes data and runs the program it holds.
func (s *Session) RunImage(ctx context.Context, data []byte) (vm.Result, error) {
	_, end := s.phase(ctx, "decode")
	fn, err := image.Decode(s.VM.Heap(), data)
	if err != nil {
		end("failed")
		return vm.InterpretOK, err
	}
	end("")
	return s.execute(ctx, fn), nil
}

// ErrCompile is returned by helpers that compile without running.
var ErrCompile = errors.New("compile error")
