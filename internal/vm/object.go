package vm

import (
	"fmt"

	"loxvm/internal/chunk"
	"loxvm/internal/table"
	"loxvm/internal/value"
)

// ObjectKind identifies the variant stored in a heap slot.
type ObjectKind uint8

const (
	OKString ObjectKind = iota + 1
	OKFunction
	OKNative
	OKClosure
	OKUpvalue
	OKClass
	OKInstance
	OKBoundMethod
)

func (k ObjectKind) String() string {
	switch k {
	case OKString:
		return "string"
	case OKFunction:
		return "function"
	case OKNative:
		return "native"
	case OKClosure:
		return "closure"
	case OKUpvalue:
		return "upvalue"
	case OKClass:
		return "class"
	case OKInstance:
		return "instance"
	case OKBoundMethod:
		return "bound method"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Object is the common header of every heap allocation. Data holds the
// variant payload, one of the pointer types below.
type Object struct {
	Kind   ObjectKind
	Marked bool
	size   int
	Data   any
}

// String is an interned, immutable byte string.
type String struct {
	Chars string
	Hash  uint32
}

// Function is one compiled function body. It is shared by every closure
// created from it.
type Function struct {
	Arity        int
	UpvalueCount int
	Chunk        *chunk.Chunk
	Name         value.Handle // 0 for the top-level script
}

// NativeFn is a host callback. It receives exactly the call's arguments.
type NativeFn func(args []value.Value) (value.Value, error)

// Native wraps a host callback.
type Native struct {
	Name string
	Fn   NativeFn
}

// Closure pairs a function with the upvalues captured when it was created.
type Closure struct {
	Function value.Handle
	Upvalues []value.Handle
}

// Upvalue is open while it aliases the stack slot Slot, closed once the slot
// has been popped and the value copied into Closed.
type Upvalue struct {
	Slot   int
	Closed value.Value
	Open   bool
}

// Class holds the method table; values are closures.
type Class struct {
	Name    value.Handle
	Methods table.Table
}

// Instance holds per-object fields.
type Instance struct {
	Class  value.Handle
	Fields table.Table
}

// BoundMethod remembers the receiver a method was read from.
type BoundMethod struct {
	Receiver value.Value
	Method   value.Handle
}

// Approximate sizes charged to the allocator per variant.
const (
	headerSize      = 32
	stringSize      = headerSize + 24
	functionSize    = headerSize + 48
	nativeSize      = headerSize + 24
	closureSize     = headerSize + 32
	upvalueSize     = headerSize + 24
	classSize       = headerSize + 40
	instanceSize    = headerSize + 40
	boundMethodSize = headerSize + 16
	handleSize      = 4
)
