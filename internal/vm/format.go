package vm

import (
	"loxvm/internal/value"
)

// FormatValue renders v the way print shows it.
func (h *Heap) FormatValue(v value.Value) string {
	if !v.IsObj() {
		return v.String()
	}
	handle := v.AsObj()
	switch data := h.Get(handle).Data.(type) {
	case *String:
		return data.Chars
	case *Function:
		return h.formatFunction(data)
	case *Native:
		return "<native fn>"
	case *Closure:
		return h.formatFunction(h.Function(data.Function))
	case *Upvalue:
		return "upvalue"
	case *Class:
		return h.Str(data.Name).Chars
	case *Instance:
		return h.Str(h.Class(data.Class).Name).Chars + " instance"
	case *BoundMethod:
		return h.formatFunction(h.Function(h.Closure(data.Method).Function))
	default:
		return "<object>"
	}
}

func (h *Heap) formatFunction(fn *Function) string {
	if fn.Name == 0 {
		return "<script>"
	}
	return "<fn " + h.Str(fn.Name).Chars + ">"
}

// FunctionName returns the function's name, or "script" for the top level.
func (h *Heap) FunctionName(fn *Function) string {
	if fn.Name == 0 {
		return "script"
	}
	return h.Str(fn.Name).Chars
}

// UpvalueCount implements chunk.Inspector.
func (h *Heap) UpvalueCount(v value.Value) int {
	if !h.IsKind(v, OKFunction) {
		return 0
	}
	return h.Function(v.AsObj()).UpvalueCount
}
