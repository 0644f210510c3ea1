package vm

import (
	"fmt"
	"strconv"

	"loxvm/internal/trace"
	"loxvm/internal/value"
)

// Collect runs one full stop-the-world mark/sweep cycle.
//
// White objects are unmarked, gray objects are marked and sitting on the
// worklist, black objects are marked and already traced.
func (h *Heap) Collect() {
	if h.collecting {
		return
	}
	h.collecting = true
	defer func() { h.collecting = false }()

	before := h.bytesAllocated
	freedBefore := h.freed
	if h.log != nil {
		fmt.Fprintln(h.log, "-- gc begin")
	}

	h.markRoots()
	h.traceReferences()
	interned := h.strings.RemoveWhite(h.isMarked)
	h.sweep()
	// не ниже начального порога, иначе пустая куча собирается на каждой аллокации
	h.nextGC = max(int(float64(h.bytesAllocated)*h.growth), h.minNextGC)
	h.collections++

	if h.log != nil {
		fmt.Fprintln(h.log, "-- gc end")
		fmt.Fprintf(h.log, "   collected %d bytes (from %d to %d) next at %d\n",
			before-h.bytesAllocated, before, h.bytesAllocated, h.nextGC)
	}
	if h.tracer.Enabled() && h.tracer.Level().ShouldEmit(trace.ScopeGC) {
		trace.Point(h.tracer, trace.ScopeGC, "gc", "", map[string]string{
			"cycle":    strconv.Itoa(h.collections),
			"before":   strconv.Itoa(before),
			"after":    strconv.Itoa(h.bytesAllocated),
			"freed":    strconv.Itoa(h.freed - freedBefore),
			"interned": strconv.Itoa(interned),
			"next":     strconv.Itoa(h.nextGC),
		})
	}
}

func (h *Heap) markRoots() {
	for _, src := range h.roots {
		src.MarkRoots(h)
	}
}

// MarkValue grays v if it refers to an unmarked object.
func (h *Heap) MarkValue(v value.Value) {
	if v.IsObj() {
		h.MarkObject(v.AsObj())
	}
}

// MarkObject grays handle if it is unmarked. The zero handle is ignored so
// partially initialised objects can be marked safely.
func (h *Heap) MarkObject(handle value.Handle) {
	if handle == 0 {
		return
	}
	obj := h.Get(handle)
	if obj.Marked {
		return
	}
	if h.log != nil {
		fmt.Fprintf(h.log, "#%d mark %s\n", handle, h.FormatValue(value.Obj(handle)))
	}
	obj.Marked = true
	h.gray = append(h.gray, handle)
}

func (h *Heap) isMarked(handle value.Handle) bool {
	return h.Get(handle).Marked
}

func (h *Heap) traceReferences() {
	for len(h.gray) > 0 {
		n := len(h.gray) - 1
		handle := h.gray[n]
		h.gray = h.gray[:n]
		h.blacken(handle)
	}
}

func (h *Heap) blacken(handle value.Handle) {
	obj := h.Get(handle)
	if h.log != nil {
		fmt.Fprintf(h.log, "#%d blacken %s\n", handle, h.FormatValue(value.Obj(handle)))
	}
	switch data := obj.Data.(type) {
	case *BoundMethod:
		h.MarkValue(data.Receiver)
		h.MarkObject(data.Method)
	case *Class:
		h.MarkObject(data.Name)
		data.Methods.Mark(h.MarkObject, h.MarkValue)
	case *Closure:
		h.MarkObject(data.Function)
		for _, up := range data.Upvalues {
			h.MarkObject(up)
		}
	case *Function:
		h.MarkObject(data.Name)
		for _, c := range data.Chunk.Constants {
			h.MarkValue(c)
		}
	case *Instance:
		h.MarkObject(data.Class)
		data.Fields.Mark(h.MarkObject, h.MarkValue)
	case *Upvalue:
		h.MarkValue(data.Closed)
	case *String, *Native:
	}
}

func (h *Heap) sweep() {
	for i := 1; i < len(h.objects); i++ {
		obj := h.objects[i]
		if obj == nil {
			continue
		}
		if obj.Marked {
			obj.Marked = false
			continue
		}
		h.free1(value.Handle(i), obj)
	}
}

func (h *Heap) free1(handle value.Handle, obj *Object) {
	if h.log != nil {
		fmt.Fprintf(h.log, "#%d free type %s\n", handle, obj.Kind)
	}
	h.bytesAllocated -= obj.size
	switch data := obj.Data.(type) {
	case *Function:
		h.bytesAllocated -= data.Chunk.Bytes()
		data.Chunk = nil
	case *Closure:
		data.Upvalues = nil
	case *Class:
		h.bytesAllocated -= data.Methods.Bytes()
		data.Methods.Reset()
	case *Instance:
		h.bytesAllocated -= data.Fields.Bytes()
		data.Fields.Reset()
	}
	obj.Data = nil
	h.objects[handle] = nil
	h.free = append(h.free, handle)
	h.freed++
}
