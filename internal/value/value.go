// Package value defines the runtime Value word shared by the compiler, the
// bytecode chunk and the virtual machine.
//
// Values are NaN-boxed: a number is stored as its IEEE-754 bits, every other
// variant lives inside the payload of a quiet NaN that real arithmetic never
// produces.
package value

import (
	"fmt"
	"math"
)

// Handle identifies a heap object. The zero handle is never allocated.
type Handle uint32

// Kind enumerates the four value variants.
type Kind uint8

const (
	KindNil Kind = iota
	KindBool
	KindNumber
	KindObj
)

func (k Kind) String() string {
	switch k {
	case KindNil:
		return "nil"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindObj:
		return "object"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

const (
	signBit uint64 = 0x8000000000000000
	qnan    uint64 = 0x7ffc000000000000

	tagNil   uint64 = 1
	tagFalse uint64 = 2
	tagTrue  uint64 = 3

	handleMask uint64 = 0x00000000ffffffff
)

// Value is a single 64-bit word holding nil, a bool, a number or an object handle.
type Value uint64

var (
	// Nil is the nil value.
	Nil = Value(qnan | tagNil)
	// False is the boolean false.
	False = Value(qnan | tagFalse)
	// True is the boolean true.
	True = Value(qnan | tagTrue)
)

// Bool wraps a Go bool.
func Bool(b bool) Value {
	if b {
		return True
	}
	return False
}

// Number wraps a float64.
func Number(n float64) Value {
	return Value(math.Float64bits(n))
}

// Obj wraps a heap handle.
func Obj(h Handle) Value {
	return Value(signBit | qnan | uint64(h))
}

func (v Value) IsNil() bool    { return v == Nil }
func (v Value) IsBool() bool   { return v|1 == True }
func (v Value) IsNumber() bool { return uint64(v)&qnan != qnan }
func (v Value) IsObj() bool    { return uint64(v)&(qnan|signBit) == qnan|signBit }

// Kind reports the variant held by v.
func (v Value) Kind() Kind {
	switch {
	case v.IsNumber():
		return KindNumber
	case v.IsObj():
		return KindObj
	case v.IsBool():
		return KindBool
	default:
		return KindNil
	}
}

// AsBool returns the boolean payload. It panics if v is not a bool.
func (v Value) AsBool() bool {
	if !v.IsBool() {
		panic(mismatch(KindBool, v))
	}
	return v == True
}

// AsNumber returns the numeric payload. It panics if v is not a number.
func (v Value) AsNumber() float64 {
	if !v.IsNumber() {
		panic(mismatch(KindNumber, v))
	}
	return math.Float64frombits(uint64(v))
}

// AsObj returns the heap handle. It panics if v is not an object.
func (v Value) AsObj() Handle {
	if !v.IsObj() {
		panic(mismatch(KindObj, v))
	}
	return Handle(uint64(v) & handleMask)
}

// Falsey reports whether v is nil or false. Every other value, zero included, is truthy.
func (v Value) Falsey() bool {
	return v == Nil || v == False
}

// Equal compares two values. Numbers use IEEE equality, so NaN is never equal
// to itself; everything else compares by identity. Strings are interned, which
// makes identity equality coincide with content equality.
func Equal(a, b Value) bool {
	if a.IsNumber() && b.IsNumber() {
		return a.AsNumber() == b.AsNumber()
	}
	return a == b
}

// String renders non-object values; object values render as their handle.
// The VM owns the object-aware formatting.
func (v Value) String() string {
	switch v.Kind() {
	case KindNil:
		return "nil"
	case KindBool:
		if v == True {
			return "true"
		}
		return "false"
	case KindNumber:
		return FormatNumber(v.AsNumber())
	default:
		return fmt.Sprintf("<obj #%d>", v.AsObj())
	}
}

// InvariantError is the panic payload raised when an accessor is applied to
// the wrong variant. The engine checks tags before reading payloads, so this
// only fires on an internal bug.
type InvariantError struct {
	Want Kind
	Got  Kind
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("value: expected %s, got %s", e.Want, e.Got)
}

func mismatch(want Kind, v Value) *InvariantError {
	return &InvariantError{Want: want, Got: v.Kind()}
}
