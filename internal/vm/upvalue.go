package vm

import (
	"sort"

	"loxvm/internal/value"
)

// captureUpvalue returns the open upvalue for slot, creating it if no closure
// has captured that slot yet. Closures capturing the same local share it.
func (vm *VM) captureUpvalue(slot int) value.Handle {
	i := sort.Search(len(vm.openUpvalues), func(i int) bool {
		return vm.heap.Upvalue(vm.openUpvalues[i]).Slot >= slot
	})
	if i < len(vm.openUpvalues) {
		if existing := vm.openUpvalues[i]; vm.heap.Upvalue(existing).Slot == slot {
			return existing
		}
	}

	created := vm.heap.NewUpvalue(slot)
	vm.openUpvalues = append(vm.openUpvalues, 0)
	copy(vm.openUpvalues[i+1:], vm.openUpvalues[i:])
	vm.openUpvalues[i] = created
	return created
}

// closeUpvalues closes every open upvalue at or above slot last.
func (vm *VM) closeUpvalues(last int) {
	for n := len(vm.openUpvalues); n > 0; n-- {
		up := vm.heap.Upvalue(vm.openUpvalues[n-1])
		if up.Slot < last {
			break
		}
		up.Closed = vm.stack[up.Slot]
		up.Open = false
		vm.openUpvalues = vm.openUpvalues[:n-1]
	}
}

func (vm *VM) readUpvalue(h value.Handle) value.Value {
	up := vm.heap.Upvalue(h)
	if up.Open {
		return vm.stack[up.Slot]
	}
	return up.Closed
}

func (vm *VM) writeUpvalue(h value.Handle, v value.Value) {
	up := vm.heap.Upvalue(h)
	if up.Open {
		vm.stack[up.Slot] = v
		return
	}
	up.Closed = v
}
