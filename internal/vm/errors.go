package vm

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// ErrorCode identifies the kind of runtime error.
type ErrorCode int

// Stable error codes - do not change values.
const (
	ErrTypeMismatch       ErrorCode = 1001 // RT1001: operand of the wrong kind
	ErrUndefined          ErrorCode = 1002 // RT1002: undefined variable or property
	ErrArity              ErrorCode = 1003 // RT1003: wrong argument count
	ErrNotCallable        ErrorCode = 1004 // RT1004: call target is not callable
	ErrNotInstance        ErrorCode = 1005 // RT1005: property access on a non-instance
	ErrStackOverflow      ErrorCode = 1006 // RT1006: frame or operand stack exhausted
	ErrBadInheritance     ErrorCode = 1007 // RT1007: superclass is not a class
	ErrNative             ErrorCode = 1008 // RT1008: native function failed
	ErrInvalidInstruction ErrorCode = 1999 // RT1999: unknown opcode
)

// String returns the code as "RT1001".
func (c ErrorCode) String() string {
	return fmt.Sprintf("RT%d", int(c))
}

// BacktraceFrame is one active call at the time of the error.
type BacktraceFrame struct {
	Function string
	Line     int
	TopLevel bool // the unnamed script function
}

func (f BacktraceFrame) String() string {
	if f.TopLevel {
		return fmt.Sprintf("[line %d] in script", f.Line)
	}
	return fmt.Sprintf("[line %d] in %s()", f.Line, f.Function)
}

// RuntimeError aborts the current Interpret call.
type RuntimeError struct {
	Code      ErrorCode
	Message   string
	Backtrace []BacktraceFrame // innermost first
}

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	return e.Message
}

// Line returns the line of the innermost frame.
func (e *RuntimeError) Line() int {
	if len(e.Backtrace) == 0 {
		return 0
	}
	return e.Backtrace[0].Line
}

var (
	errorHeaderColor = color.New(color.FgRed, color.Bold)
	errorFrameColor  = color.New(color.FgHiBlack)
)

// Format writes the message followed by one line per frame.
func (e *RuntimeError) Format(w io.Writer, colored bool) {
	var sb strings.Builder
	if colored {
		sb.WriteString(errorHeaderColor.Sprint(e.Message))
	} else {
		sb.WriteString(e.Message)
	}
	sb.WriteByte('\n')
	for _, frame := range e.Backtrace {
		if colored {
			sb.WriteString(errorFrameColor.Sprint(frame.String()))
		} else {
			sb.WriteString(frame.String())
		}
		sb.WriteByte('\n')
	}
	_, _ = io.WriteString(w, sb.String())
}

// errorBuilder creates runtime errors stamped with the current backtrace.
type errorBuilder struct {
	vm *VM
}

func (eb *errorBuilder) makeError(code ErrorCode, format string, args ...any) *RuntimeError {
	return &RuntimeError{
		Code:      code,
		Message:   fmt.Sprintf(format, args...),
		Backtrace: eb.vm.backtrace(),
	}
}

func (eb *errorBuilder) operandsNumbers() *RuntimeError {
	return eb.makeError(ErrTypeMismatch, "Operands must be numbers.")
}

func (eb *errorBuilder) operandsAdd() *RuntimeError {
	return eb.makeError(ErrTypeMismatch, "Operands must be two numbers or two strings.")
}

func (eb *errorBuilder) operandNumber() *RuntimeError {
	return eb.makeError(ErrTypeMismatch, "Operand must be a number.")
}

func (eb *errorBuilder) undefinedVariable(name string) *RuntimeError {
	return eb.makeError(ErrUndefined, "Undefined variable '%s'.", name)
}

func (eb *errorBuilder) undefinedProperty(name string) *RuntimeError {
	return eb.makeError(ErrUndefined, "Undefined property '%s'.", name)
}

func (eb *errorBuilder) arity(want, got int) *RuntimeError {
	return eb.makeError(ErrArity, "Expected %d arguments but got %d.", want, got)
}

func (eb *errorBuilder) notCallable() *RuntimeError {
	return eb.makeError(ErrNotCallable, "Can only call functions and classes.")
}

func (eb *errorBuilder) notInstance(what string) *RuntimeError {
	return eb.makeError(ErrNotInstance, "Only instances have %s.", what)
}

func (eb *errorBuilder) stackOverflow() *RuntimeError {
	return eb.makeError(ErrStackOverflow, "Stack overflow.")
}

func (eb *errorBuilder) badSuperclass() *RuntimeError {
	return eb.makeError(ErrBadInheritance, "Superclass must be a class.")
}

func (eb *errorBuilder) native(name string, err error) *RuntimeError {
	return eb.makeError(ErrNative, "%s: %v", name, err)
}

func (eb *errorBuilder) invalidOpcode(op byte) *RuntimeError {
	return eb.makeError(ErrInvalidInstruction, "Unknown opcode %d.", op)
}
