package vm

import (
	"loxvm/internal/value"
)

// call pushes a frame for closure whose arguments are the top argc slots.
func (vm *VM) call(closure value.Handle, argc int) {
	cl := vm.heap.Closure(closure)
	fn := vm.heap.Function(cl.Function)
	if argc != fn.Arity {
		panic(vm.errs.arity(fn.Arity, argc))
	}
	if vm.frameCount == len(vm.frames) {
		panic(vm.errs.stackOverflow())
	}
	vm.frames[vm.frameCount] = CallFrame{
		closure: closure,
		cl:      cl,
		fn:      fn,
		base:    vm.sp - argc - 1,
	}
	vm.frameCount++
}

func (vm *VM) callValue(callee value.Value, argc int) {
	if callee.IsObj() {
		handle := callee.AsObj()
		switch data := vm.heap.Get(handle).Data.(type) {
		case *BoundMethod:
			vm.stack[vm.sp-argc-1] = data.Receiver
			vm.call(data.Method, argc)
			return
		case *Class:
			vm.stack[vm.sp-argc-1] = value.Obj(vm.heap.NewInstance(handle))
			if init, ok := data.Methods.Get(vm.heap.Key(vm.initString)); ok {
				vm.call(init.AsObj(), argc)
			} else if argc != 0 {
				panic(vm.errs.arity(0, argc))
			}
			return
		case *Closure:
			vm.call(handle, argc)
			return
		case *Native:
			args := vm.stack[vm.sp-argc : vm.sp]
			result, err := data.Fn(args)
			if err != nil {
				panic(vm.errs.native(data.Name, err))
			}
			vm.sp -= argc + 1
			vm.push(result)
			return
		}
	}
	panic(vm.errs.notCallable())
}

func (vm *VM) invokeFromClass(class value.Handle, name value.Handle, argc int) {
	method, ok := vm.heap.Class(class).Methods.Get(vm.heap.Key(name))
	if !ok {
		panic(vm.errs.undefinedProperty(vm.heap.Str(name).Chars))
	}
	vm.call(method.AsObj(), argc)
}

// invoke fuses a property read with a call. A field shadowing the method is
// called as an ordinary value; otherwise no bound method is allocated.
func (vm *VM) invoke(name value.Handle, argc int) {
	receiver := vm.peek(argc)
	if !vm.heap.IsKind(receiver, OKInstance) {
		panic(vm.errs.notInstance("methods"))
	}
	inst := vm.heap.Instance(receiver.AsObj())
	if field, ok := inst.Fields.Get(vm.heap.Key(name)); ok {
		vm.stack[vm.sp-argc-1] = field
		vm.callValue(field, argc)
		return
	}
	vm.invokeFromClass(inst.Class, name, argc)
}

// bindMethod replaces the receiver on top of the stack with a bound method.
func (vm *VM) bindMethod(class value.Handle, name value.Handle) {
	method, ok := vm.heap.Class(class).Methods.Get(vm.heap.Key(name))
	if !ok {
		panic(vm.errs.undefinedProperty(vm.heap.Str(name).Chars))
	}
	bound := vm.heap.NewBoundMethod(vm.peek(0), method.AsObj())
	vm.pop()
	vm.push(value.Obj(bound))
}

func (vm *VM) defineMethod(name value.Handle) {
	method := vm.peek(0)
	class := vm.heap.Class(vm.peek(1).AsObj())
	class.Methods.Set(vm.heap.Key(name), method)
	vm.pop()
}
