// Package buildpipeline compiles many Lox sources into program images in
// parallel.
package buildpipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"loxvm/internal/compiler"
	"loxvm/internal/diag"
	"loxvm/internal/driver"
	"loxvm/internal/image"
	"loxvm/internal/source"
	"loxvm/internal/trace"
	"loxvm/internal/vm"
)

// ErrCompile marks a file whose source did not compile.
var ErrCompile = errors.New("compile error")

// Request configures a build.
type Request struct {
	Files []string
	// OutDir receives every image; empty means next to each source.
	OutDir string
	// Jobs bounds concurrent files; 0 means GOMAXPROCS.
	Jobs  int
	Cache *driver.CompileCache
	// Heap configures the private heap each file is compiled into.
	Heap           vm.HeapOptions
	MaxDiagnostics uint16
	Progress       ProgressSink
}

// FileResult is the outcome for one source.
type FileResult struct {
	Path      string
	Output    string
	FileSet   *source.FileSet
	Bag       *diag.Bag
	Functions int
	Bytes     int
	Cached    bool
	Err       error
}

// Result captures per-file outcomes and summed stage timings.
type Result struct {
	Files   []FileResult
	Timings *Timings
	Failed  int
}

// Build compiles every file in req. Files are independent: one failing file
// does not stop the others. The returned error summarizes failures or
// reports cancellation.
func Build(ctx context.Context, req *Request) (Result, error) {
	result := Result{Timings: &Timings{}}
	if ctx == nil {
		ctx = context.Background()
	}
	if req == nil {
		return result, fmt.Errorf("missing build request")
	}
	if len(req.Files) == 0 {
		return result, fmt.Errorf("no input files")
	}
	outputs, err := outputPaths(req.Files, req.OutDir)
	if err != nil {
		return result, err
	}
	if req.OutDir != "" {
		if err := os.MkdirAll(req.OutDir, 0o750); err != nil {
			return result, fmt.Errorf("failed to create output dir: %w", err)
		}
	}
	maxDiags := req.MaxDiagnostics
	if maxDiags == 0 {
		maxDiags = driver.DefaultMaxDiagnostics
	}
	jobs := req.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	span := trace.Begin(trace.FromContext(ctx), trace.ScopeDriver, "build", trace.CurrentSpan(ctx)).
		WithExtra("files", fmt.Sprint(len(req.Files))).
		WithExtra("jobs", fmt.Sprint(jobs))
	ctx = trace.WithSpan(ctx, span)

	emitQueued(req.Progress, req.Files)
	result.Files = make([]FileResult, len(req.Files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, path := range req.Files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			w := worker{req: req, ctx: gctx, timings: result.Timings, maxDiags: maxDiags}
			result.Files[i] = w.build(path, outputs[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.End("cancelled")
		return result, err
	}

	for _, fr := range result.Files {
		if fr.Err != nil {
			result.Failed++
		}
	}
	if result.Failed > 0 {
		span.End(fmt.Sprintf("%d failed", result.Failed))
		return result, fmt.Errorf("%d of %d files failed", result.Failed, len(req.Files))
	}
	span.End("ok")
	return result, nil
}

// outputPaths maps every source to its image path and rejects two sources
// that would overwrite the same image.
func outputPaths(files []string, outDir string) ([]string, error) {
	out := make([]string, len(files))
	seen := make(map[string]string, len(files))
	for i, file := range files {
		name := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file)) + image.Ext
		dir := outDir
		if dir == "" {
			dir = filepath.Dir(file)
		}
		p := filepath.Clean(filepath.Join(dir, name))
		if prev, ok := seen[p]; ok {
			return nil, fmt.Errorf("%s and %s both build to %s", prev, file, p)
		}
		seen[p] = file
		out[i] = p
	}
	return out, nil
}

type worker struct {
	req      *Request
	ctx      context.Context
	timings  *Timings
	maxDiags uint16
}

// stage runs fn as one stage of path, reporting progress and timing.
func (w *worker) stage(path string, stage Stage, fn func() (cached bool, err error)) error {
	span := trace.Begin(trace.FromContext(w.ctx), trace.ScopePass, string(stage), trace.CurrentSpan(w.ctx)).
		WithExtra("file", path)
	emitStage(w.req.Progress, path, stage, StatusWorking, nil, 0, false)
	start := time.Now()
	cached, err := fn()
	elapsed := time.Since(start)
	w.timings.Add(stage, elapsed)
	if err != nil {
		span.End(err.Error())
		emitStage(w.req.Progress, path, stage, StatusError, err, elapsed, false)
		return err
	}
	span.End("")
	emitStage(w.req.Progress, path, stage, StatusDone, nil, elapsed, cached)
	return nil
}

func (w *worker) build(path, output string) FileResult {
	fr := FileResult{
		Path:    path,
		Output:  output,
		FileSet: source.NewFileSet(),
		Bag:     diag.NewBag(w.maxDiags),
	}
	heap := vm.NewHeap(w.req.Heap)

	var file *source.File
	fr.Err = w.stage(path, StageLoad, func() (bool, error) {
		id, err := fr.FileSet.Load(path)
		if err != nil {
			return false, err
		}
		file = fr.FileSet.Get(id)
		return false, nil
	})
	if fr.Err != nil {
		return fr
	}

	var prog *image.Program
	fr.Err = w.stage(path, StageCompile, func() (bool, error) {
		var payload driver.CachePayload
		if hit, err := w.req.Cache.Get(file.Hash, &payload); err == nil && hit {
			if err := image.Validate(payload.Program); err == nil {
				prog = payload.Program
				fr.Cached = true
				return true, nil
			}
		}
		fn, ok := compiler.Compile(heap, file, diag.BagReporter{Bag: fr.Bag})
		if !ok {
			return false, ErrCompile
		}
		built, err := image.Build(heap, fn)
		if err != nil {
			return false, err
		}
		prog = built
		if err := w.req.Cache.Put(file.Hash, &driver.CachePayload{Path: file.Path, Program: prog}); err != nil {
			trace.Point(trace.FromContext(w.ctx), trace.ScopeDriver, "cache-write", err.Error(), nil)
		}
		return false, nil
	})
	if fr.Err != nil {
		return fr
	}
	fr.Functions = len(prog.Functions)

	var data []byte
	fr.Err = w.stage(path, StageEncode, func() (bool, error) {
		prog.Source = file.Path
		var err error
		data, err = image.Marshal(prog)
		return false, err
	})
	if fr.Err != nil {
		return fr
	}
	fr.Bytes = len(data)

	fr.Err = w.stage(path, StageWrite, func() (bool, error) {
		return false, writeAtomic(output, data)
	})
	return fr
}

// writeAtomic replaces path with data via a temp file in the same directory.
func writeAtomic(path string, data []byte) error {
	f, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return err
	}
	if err := os.Rename(f.Name(), path); err != nil {
		_ = os.Remove(f.Name())
		return fmt.Errorf("failed to write %q: %w", path, err)
	}
	return nil
}

func emitQueued(sink ProgressSink, files []string) {
	if sink == nil {
		return
	}
	for _, file := range files {
		sink.OnEvent(Event{File: file, Stage: StageLoad, Status: StatusQueued})
	}
}

func emitStage(sink ProgressSink, file string, stage Stage, status Status, err error, elapsed time.Duration, cached bool) {
	if sink == nil {
		return
	}
	sink.OnEvent(Event{File: file, Stage: stage, Status: status, Err: err, Elapsed: elapsed, Cached: cached})
}
