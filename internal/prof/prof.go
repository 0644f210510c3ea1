package prof

import (
	"errors"
	"os"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
)

var (
	cpuFile   *os.File
	traceFile *os.File
)

// Options names the profiles to capture; empty paths are skipped.
type Options struct {
	CPU   string
	Mem   string
	Trace string
}

// Start begins every profile requested in opts. The returned stop function
// ends them and writes the heap profile last, so it reflects the run.
func Start(opts Options) (stop func() error, err error) {
	if opts.CPU != "" {
		if err := StartCPU(opts.CPU); err != nil {
			return nil, err
		}
	}
	if opts.Trace != "" {
		if err := StartTrace(opts.Trace); err != nil {
			if opts.CPU != "" {
				StopCPU()
			}
			return nil, err
		}
	}
	return func() error {
		if opts.CPU != "" {
			StopCPU()
		}
		if opts.Trace != "" {
			StopTrace()
		}
		if opts.Mem != "" {
			return WriteMem(opts.Mem)
		}
		return nil
	}, nil
}

// StartCPU enables CPU profiling and writes samples to the provided path.
func StartCPU(path string) error {
	// #nosec G304 -- path is provided by the caller
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		_ = f.Close()
		return err
	}
	cpuFile = f
	return nil
}

// StopCPU stops an active CPU profile and closes the underlying file.
func StopCPU() {
	pprof.StopCPUProfile()
	if cpuFile != nil {
		_ = cpuFile.Close()
		cpuFile = nil
	}
}

// WriteMem captures a heap profile to the supplied file path.
func WriteMem(path string) (err error) {
	// #nosec G304 -- path is provided by the caller
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()
	runtime.GC()
	return pprof.WriteHeapProfile(f)
}

// StartTrace writes runtime trace data to the provided path.
func StartTrace(path string) error {
	// #nosec G304 -- path is provided by the caller
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := trace.Start(f); err != nil {
		_ = f.Close()
		return err
	}
	traceFile = f
	return nil
}

// StopTrace ends an active runtime trace and closes the file.
func StopTrace() {
	trace.Stop()
	if traceFile != nil {
		_ = traceFile.Close()
		traceFile = nil
	}
}
