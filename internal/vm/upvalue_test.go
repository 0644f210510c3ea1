package vm

import (
	"io"
	"testing"

	"loxvm/internal/value"
)

func TestCaptureUpvalue_SortedAndShared(t *testing.T) {
	vm := New(Options{Stdout: io.Discard, Stderr: io.Discard})
	for i := range 6 {
		vm.push(value.Number(float64(i)))
	}

	u4 := vm.captureUpvalue(4)
	u1 := vm.captureUpvalue(1)
	u3 := vm.captureUpvalue(3)
	if again := vm.captureUpvalue(3); again != u3 {
		t.Fatal("capturing the same slot twice must share the upvalue")
	}

	want := []value.Handle{u1, u3, u4}
	if len(vm.openUpvalues) != len(want) {
		t.Fatalf("open upvalues = %v", vm.openUpvalues)
	}
	for i, h := range want {
		if vm.openUpvalues[i] != h {
			t.Fatalf("open upvalues not ordered by slot: %v", vm.openUpvalues)
		}
	}

	vm.writeUpvalue(u3, value.Number(30))
	if got := vm.stack[3].AsNumber(); got != 30 {
		t.Fatalf("open upvalue should write through to the stack, got %v", got)
	}

	vm.closeUpvalues(3)
	if vm.OpenUpvalues() != 1 || vm.openUpvalues[0] != u1 {
		t.Fatalf("closing from slot 3 should leave only slot 1 open: %v", vm.openUpvalues)
	}
	if up := vm.heap.Upvalue(u3); up.Open || up.Closed.AsNumber() != 30 {
		t.Fatalf("u3 not closed over its last value: %+v", up)
	}
	vm.stack[3] = value.Number(99)
	if got := vm.readUpvalue(u3).AsNumber(); got != 30 {
		t.Fatalf("closed upvalue must not alias the stack, got %v", got)
	}
	if got := vm.readUpvalue(u4).AsNumber(); got != 4 {
		t.Fatalf("u4 = %v", got)
	}
}
