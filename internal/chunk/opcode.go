package chunk

import "fmt"

// OpCode is a one-byte instruction tag. Operands follow inline.
type OpCode uint8

const (
	OpConstant     OpCode = iota // idx
	OpNil                        //
	OpTrue                       //
	OpFalse                      //
	OpPop                        //
	OpGetLocal                   // slot
	OpSetLocal                   // slot
	OpGetGlobal                  // name idx
	OpDefineGlobal               // name idx
	OpSetGlobal                  // name idx
	OpGetUpvalue                 // upvalue idx
	OpSetUpvalue                 // upvalue idx
	OpGetProperty                // name idx
	OpSetProperty                // name idx
	OpGetSuper                   // name idx
	OpEqual                      //
	OpGreater                    //
	OpLess                       //
	OpAdd                        //
	OpSubtract                   //
	OpMultiply                   //
	OpDivide                     //
	OpNot                        //
	OpNegate                     //
	OpPrint                      //
	OpJump                       // u16 forward offset
	OpJumpIfFalse                // u16 forward offset
	OpLoop                       // u16 backward offset
	OpCall                       // argc
	OpInvoke                     // name idx, argc
	OpSuperInvoke                // name idx, argc
	OpClosure                    // fn idx, then (isLocal, index) per upvalue
	OpCloseUpvalue               //
	OpReturn                     //
	OpClass                      // name idx
	OpInherit                    //
	OpMethod                     // name idx

	opCount
)

var opNames = [...]string{
	OpConstant:     "OP_CONSTANT",
	OpNil:          "OP_NIL",
	OpTrue:         "OP_TRUE",
	OpFalse:        "OP_FALSE",
	OpPop:          "OP_POP",
	OpGetLocal:     "OP_GET_LOCAL",
	OpSetLocal:     "OP_SET_LOCAL",
	OpGetGlobal:    "OP_GET_GLOBAL",
	OpDefineGlobal: "OP_DEFINE_GLOBAL",
	OpSetGlobal:    "OP_SET_GLOBAL",
	OpGetUpvalue:   "OP_GET_UPVALUE",
	OpSetUpvalue:   "OP_SET_UPVALUE",
	OpGetProperty:  "OP_GET_PROPERTY",
	OpSetProperty:  "OP_SET_PROPERTY",
	OpGetSuper:     "OP_GET_SUPER",
	OpEqual:        "OP_EQUAL",
	OpGreater:      "OP_GREATER",
	OpLess:         "OP_LESS",
	OpAdd:          "OP_ADD",
	OpSubtract:     "OP_SUBTRACT",
	OpMultiply:     "OP_MULTIPLY",
	OpDivide:       "OP_DIVIDE",
	OpNot:          "OP_NOT",
	OpNegate:       "OP_NEGATE",
	OpPrint:        "OP_PRINT",
	OpJump:         "OP_JUMP",
	OpJumpIfFalse:  "OP_JUMP_IF_FALSE",
	OpLoop:         "OP_LOOP",
	OpCall:         "OP_CALL",
	OpInvoke:       "OP_INVOKE",
	OpSuperInvoke:  "OP_SUPER_INVOKE",
	OpClosure:      "OP_CLOSURE",
	OpCloseUpvalue: "OP_CLOSE_UPVALUE",
	OpReturn:       "OP_RETURN",
	OpClass:        "OP_CLASS",
	OpInherit:      "OP_INHERIT",
	OpMethod:       "OP_METHOD",
}

func (op OpCode) String() string {
	if op < opCount {
		return opNames[op]
	}
	return fmt.Sprintf("OP_UNKNOWN(%d)", uint8(op))
}

// Valid reports whether op is a known instruction.
func (op OpCode) Valid() bool { return op < opCount }

// OperandBytes is the number of fixed operand bytes after op. OP_CLOSURE is
// additionally followed by two bytes per captured upvalue.
func (op OpCode) OperandBytes() int {
	switch op {
	case OpConstant, OpGetLocal, OpSetLocal, OpGetGlobal, OpDefineGlobal, OpSetGlobal,
		OpGetUpvalue, OpSetUpvalue, OpGetProperty, OpSetProperty, OpGetSuper,
		OpCall, OpClosure, OpClass, OpMethod:
		return 1
	case OpJump, OpJumpIfFalse, OpLoop, OpInvoke, OpSuperInvoke:
		return 2
	default:
		return 0
	}
}
