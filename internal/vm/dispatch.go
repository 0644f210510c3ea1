package vm

import (
	"fmt"

	"loxvm/internal/chunk"
	"loxvm/internal/value"
)

func (f *CallFrame) readByte() byte {
	b := f.fn.Chunk.Code[f.ip]
	f.ip++
	return b
}

func (f *CallFrame) readShort() int {
	s := f.fn.Chunk.ReadShort(f.ip)
	f.ip += 2
	return int(s)
}

func (f *CallFrame) readConstant() value.Value {
	return f.fn.Chunk.Constants[f.readByte()]
}

func (f *CallFrame) readString() value.Handle {
	return f.readConstant().AsObj()
}

func (vm *VM) currentFrame() *CallFrame {
	return &vm.frames[vm.frameCount-1]
}

// run executes instructions until the outermost frame returns. Runtime errors
// escape as a *RuntimeError panic caught by protect.
func (vm *VM) run() {
	frame := vm.currentFrame()
	for {
		if vm.tracer != nil {
			vm.tracer.TraceInstr(vm, frame)
		}

		op := chunk.OpCode(frame.readByte())
		switch op {
		case chunk.OpConstant:
			vm.push(frame.readConstant())
		case chunk.OpNil:
			vm.push(value.Nil)
		case chunk.OpTrue:
			vm.push(value.True)
		case chunk.OpFalse:
			vm.push(value.False)
		case chunk.OpPop:
			vm.pop()

		case chunk.OpGetLocal:
			slot := int(frame.readByte())
			vm.push(vm.stack[frame.base+slot])
		case chunk.OpSetLocal:
			slot := int(frame.readByte())
			vm.stack[frame.base+slot] = vm.peek(0)

		case chunk.OpGetGlobal:
			name := frame.readString()
			v, ok := vm.globals.Get(vm.heap.Key(name))
			if !ok {
				panic(vm.errs.undefinedVariable(vm.heap.Str(name).Chars))
			}
			vm.push(v)
		case chunk.OpDefineGlobal:
			name := frame.readString()
			vm.globals.Set(vm.heap.Key(name), vm.peek(0))
			vm.pop()
		case chunk.OpSetGlobal:
			name := frame.readString()
			key := vm.heap.Key(name)
			if vm.globals.Set(key, vm.peek(0)) {
				vm.globals.Delete(key)
				panic(vm.errs.undefinedVariable(vm.heap.Str(name).Chars))
			}

		case chunk.OpGetUpvalue:
			slot := frame.readByte()
			vm.push(vm.readUpvalue(frame.cl.Upvalues[slot]))
		case chunk.OpSetUpvalue:
			slot := frame.readByte()
			vm.writeUpvalue(frame.cl.Upvalues[slot], vm.peek(0))

		case chunk.OpGetProperty:
			if !vm.heap.IsKind(vm.peek(0), OKInstance) {
				panic(vm.errs.notInstance("properties"))
			}
			inst := vm.heap.Instance(vm.peek(0).AsObj())
			name := frame.readString()
			if v, ok := inst.Fields.Get(vm.heap.Key(name)); ok {
				vm.pop()
				vm.push(v)
				break
			}
			vm.bindMethod(inst.Class, name)
		case chunk.OpSetProperty:
			if !vm.heap.IsKind(vm.peek(1), OKInstance) {
				panic(vm.errs.notInstance("fields"))
			}
			inst := vm.heap.Instance(vm.peek(1).AsObj())
			inst.Fields.Set(vm.heap.Key(frame.readString()), vm.peek(0))
			v := vm.pop()
			vm.pop()
			vm.push(v)
		case chunk.OpGetSuper:
			name := frame.readString()
			superclass := vm.pop().AsObj()
			vm.bindMethod(superclass, name)

		case chunk.OpEqual:
			b := vm.pop()
			a := vm.pop()
			vm.push(value.Bool(value.Equal(a, b)))
		case chunk.OpGreater:
			a, b := vm.numberOperands()
			vm.push(value.Bool(a > b))
		case chunk.OpLess:
			a, b := vm.numberOperands()
			vm.push(value.Bool(a < b))
		case chunk.OpAdd:
			switch {
			case vm.heap.IsString(vm.peek(0)) && vm.heap.IsString(vm.peek(1)):
				vm.concatenate()
			case vm.peek(0).IsNumber() && vm.peek(1).IsNumber():
				b := vm.pop().AsNumber()
				a := vm.pop().AsNumber()
				vm.push(value.Number(a + b))
			default:
				panic(vm.errs.operandsAdd())
			}
		case chunk.OpSubtract:
			a, b := vm.numberOperands()
			vm.push(value.Number(a - b))
		case chunk.OpMultiply:
			a, b := vm.numberOperands()
			vm.push(value.Number(a * b))
		case chunk.OpDivide:
			a, b := vm.numberOperands()
			vm.push(value.Number(a / b))
		case chunk.OpNot:
			vm.push(value.Bool(vm.pop().Falsey()))
		case chunk.OpNegate:
			if !vm.peek(0).IsNumber() {
				panic(vm.errs.operandNumber())
			}
			vm.push(value.Number(-vm.pop().AsNumber()))

		case chunk.OpPrint:
			fmt.Fprintln(vm.stdout, vm.heap.FormatValue(vm.pop()))

		case chunk.OpJump:
			offset := frame.readShort()
			frame.ip += offset
		case chunk.OpJumpIfFalse:
			offset := frame.readShort()
			if vm.peek(0).Falsey() {
				frame.ip += offset
			}
		case chunk.OpLoop:
			offset := frame.readShort()
			frame.ip -= offset

		case chunk.OpCall:
			argc := int(frame.readByte())
			vm.callValue(vm.peek(argc), argc)
			frame = vm.currentFrame()
		case chunk.OpInvoke:
			method := frame.readString()
			argc := int(frame.readByte())
			vm.invoke(method, argc)
			frame = vm.currentFrame()
		case chunk.OpSuperInvoke:
			method := frame.readString()
			argc := int(frame.readByte())
			superclass := vm.pop().AsObj()
			vm.invokeFromClass(superclass, method, argc)
			frame = vm.currentFrame()

		case chunk.OpClosure:
			fn := frame.readConstant().AsObj()
			closure := vm.heap.NewClosure(fn)
			vm.push(value.Obj(closure))
			cl := vm.heap.Closure(closure)
			for i := range cl.Upvalues {
				isLocal := frame.readByte()
				index := int(frame.readByte())
				if isLocal == 1 {
					cl.Upvalues[i] = vm.captureUpvalue(frame.base + index)
				} else {
					cl.Upvalues[i] = frame.cl.Upvalues[index]
				}
			}
		case chunk.OpCloseUpvalue:
			vm.closeUpvalues(vm.sp - 1)
			vm.pop()

		case chunk.OpReturn:
			result := vm.pop()
			vm.closeUpvalues(frame.base)
			vm.frameCount--
			if vm.frameCount == 0 {
				vm.pop()
				return
			}
			vm.sp = frame.base
			vm.push(result)
			frame = vm.currentFrame()

		case chunk.OpClass:
			vm.push(value.Obj(vm.heap.NewClass(frame.readString())))
		case chunk.OpInherit:
			superclass := vm.peek(1)
			if !vm.heap.IsKind(superclass, OKClass) {
				panic(vm.errs.badSuperclass())
			}
			subclass := vm.heap.Class(vm.peek(0).AsObj())
			subclass.Methods.AddAll(&vm.heap.Class(superclass.AsObj()).Methods)
			vm.pop()
		case chunk.OpMethod:
			vm.defineMethod(frame.readString())

		default:
			panic(vm.errs.invalidOpcode(byte(op)))
		}
	}
}

// numberOperands pops two numeric operands, raising a type error otherwise.
func (vm *VM) numberOperands() (float64, float64) {
	if !vm.peek(0).IsNumber() || !vm.peek(1).IsNumber() {
		panic(vm.errs.operandsNumbers())
	}
	b := vm.pop().AsNumber()
	a := vm.pop().AsNumber()
	return a, b
}

// concatenate joins the two strings on top of the stack. They stay on the
// stack until the result is interned so a collection cannot free them.
func (vm *VM) concatenate() {
	b := vm.heap.Chars(vm.peek(0))
	a := vm.heap.Chars(vm.peek(1))
	result := vm.heap.StringValue(a + b)
	vm.pop()
	vm.pop()
	vm.push(result)
}
