package image_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/vmihailenco/msgpack/v5"

	"loxvm/internal/chunk"
	"loxvm/internal/compiler"
	"loxvm/internal/diag"
	"loxvm/internal/image"
	"loxvm/internal/source"
	"loxvm/internal/value"
	"loxvm/internal/vm"
)

const program = `
class Counter {
  init(start) { this.n = start; }
  next() { this.n = this.n + 1; return this.n; }
}
fun twice(f) { f(); return f(); }
var c = Counter(40);
print twice(c.next);
print "done" + "!";
print -1.5;
print true;
`

func compileProgram(t *testing.T, heap *vm.Heap, src string) value.Handle {
	t.Helper()
	fs := source.NewFileSet()
	id := fs.AddVirtual("prog.lox", []byte(src))
	bag := diag.NewBag(8)
	fn, ok := compiler.Compile(heap, fs.Get(id), diag.BagReporter{Bag: bag})
	if !ok {
		t.Fatalf("compile: %v", bag.Items())
	}
	return fn
}

func TestRoundTripRuns(t *testing.T) {
	for _, stress := range []bool{false, true} {
		src := vm.New(vm.Options{})
		data, err := image.Encode(src.Heap(), compileProgram(t, src.Heap(), program), "prog.lox")
		if err != nil {
			t.Fatal(err)
		}

		var out bytes.Buffer
		dst := vm.New(vm.Options{Stdout: &out, StressGC: stress})
		fn, err := image.Decode(dst.Heap(), data)
		if err != nil {
			t.Fatal(err)
		}
		if res := dst.Interpret(fn); res != vm.InterpretOK {
			t.Fatalf("stress=%v result %s", stress, res)
		}
		if want := "42\ndone!\n-1.5\ntrue\n"; out.String() != want {
			t.Fatalf("stress=%v stdout %q, want %q", stress, out.String(), want)
		}
	}
}

func TestBuildFlattensFunctions(t *testing.T) {
	heap := vm.NewHeap(vm.HeapOptions{})
	prog, err := image.Build(heap, compileProgram(t, heap, program))
	if err != nil {
		t.Fatal(err)
	}
	// script, init, next, twice
	if len(prog.Functions) != 4 {
		t.Fatalf("functions = %d", len(prog.Functions))
	}
	if prog.Functions[0].Name != "" || prog.Functions[1].Name != "init" {
		t.Fatalf("names = %q, %q", prog.Functions[0].Name, prog.Functions[1].Name)
	}
	if err := image.Validate(prog); err != nil {
		t.Fatal(err)
	}
}

func encode(t *testing.T, prog *image.Program) []byte {
	t.Helper()
	data, err := msgpack.Marshal(prog)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func validProgram() *image.Program {
	return &image.Program{
		Magic:  "LOXC",
		Schema: image.SchemaVersion,
		Functions: []image.Function{{
			Code:      []byte{byte(chunk.OpConstant), 0, byte(chunk.OpPrint), byte(chunk.OpNil), byte(chunk.OpReturn)},
			Lines:     []int{1, 1, 1, 1, 1},
			Constants: []image.Constant{{Kind: image.ConstNumber, Num: 7}},
		}},
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *image.Program)
	}{
		{"magic", func(p *image.Program) { p.Magic = "NOPE" }},
		{"schema", func(p *image.Program) { p.Schema = image.SchemaVersion + 1 }},
		{"empty", func(p *image.Program) { p.Functions = nil }},
		{"lines", func(p *image.Program) { p.Functions[0].Lines = p.Functions[0].Lines[:2] }},
		{"opcode", func(p *image.Program) { p.Functions[0].Code[2] = 250 }},
		{"constant-index", func(p *image.Program) { p.Functions[0].Code[1] = 3 }},
		{"truncated", func(p *image.Program) {
			p.Functions[0].Code = p.Functions[0].Code[:1]
			p.Functions[0].Lines = p.Functions[0].Lines[:1]
		}},
		{"function-ref", func(p *image.Program) {
			p.Functions[0].Constants = append(p.Functions[0].Constants, image.Constant{Kind: image.ConstFunction, Fn: 9})
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog := validProgram()
			tt.mutate(prog)
			_, err := image.Decode(vm.NewHeap(vm.HeapOptions{}), encode(t, prog))
			if !errors.Is(err, image.ErrBadImage) {
				t.Fatalf("err = %v, want ErrBadImage", err)
			}
		})
	}
}

func TestDecodeGarbage(t *testing.T) {
	_, err := image.Decode(vm.NewHeap(vm.HeapOptions{}), []byte{0xc1, 0x00, 0x13})
	if !errors.Is(err, image.ErrBadImage) {
		t.Fatalf("err = %v", err)
	}
}

func TestDecodeValidProgram(t *testing.T) {
	var out bytes.Buffer
	machine := vm.New(vm.Options{Stdout: &out})
	fn, err := image.Decode(machine.Heap(), encode(t, validProgram()))
	if err != nil {
		t.Fatal(err)
	}
	if res := machine.Interpret(fn); res != vm.InterpretOK || out.String() != "7\n" {
		t.Fatalf("res=%s out=%q", res, out.String())
	}
}
