package vm

import (
	"time"

	"loxvm/internal/value"
)

func (vm *VM) defineStdlib() {
	vm.DefineNative("clock", vm.clockNative)
}

// clockNative returns seconds elapsed since the VM was created.
func (vm *VM) clockNative(_ []value.Value) (value.Value, error) {
	return value.Number(time.Since(vm.started).Seconds()), nil
}
