package driver

import (
	"context"
	"io"
	"os"
	"strings"

	"loxvm/internal/image"
	"loxvm/internal/value"
)

// Disassemble writes the listing of the script in path and of every function
// nested in it, without running anything. Images are decoded, sources are
// compiled; a source with errors yields ErrCompile after the errors are
// rendered.
func (s *Session) Disassemble(ctx context.Context, path string, w io.Writer) error {
	var fn value.Handle
	if strings.HasSuffix(path, image.Ext) {
		// #nosec G304 -- path is provided by the caller
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if fn, err = image.Decode(s.VM.Heap(), data); err != nil {
			return err
		}
	} else {
		id, err := s.Files.Load(path)
		if err != nil {
			return err
		}
		compiled, bag := s.Compile(ctx, s.Files.Get(id))
		if bag.HasErrors() {
			s.report(bag)
			return ErrCompile
		}
		fn = compiled
	}
	heap := s.VM.Heap()
	heap.DumpFunction(w, heap.Function(fn))
	return nil
}
