package vm

import (
	"fmt"
	"hash/fnv"
	"io"

	"loxvm/internal/chunk"
	"loxvm/internal/table"
	"loxvm/internal/trace"
	"loxvm/internal/value"
)

const (
	// DefaultInitialThreshold is the byte count that triggers the first collection.
	DefaultInitialThreshold = 1024 * 1024
	// DefaultGrowthFactor scales the live byte count into the next threshold.
	DefaultGrowthFactor = 2.0
)

// RootSource is anything that holds heap references the collector cannot
// discover by tracing: the VM's stacks, a compiler mid-compilation, an image
// loader.
type RootSource interface {
	MarkRoots(h *Heap)
}

// HeapOptions configures allocation accounting and collection.
type HeapOptions struct {
	InitialThreshold int
	GrowthFactor     float64
	Stress           bool      // collect before every allocation
	Log              io.Writer // "-- gc begin" / "-- gc end" log, nil disables
	Tracer           trace.Tracer
}

// HeapStats is a snapshot of allocator state.
type HeapStats struct {
	BytesAllocated int
	NextGC         int
	Live           int
	Collections    int
	Freed          int
}

// Heap is an arena of objects addressed by handle. Slot 0 is never used.
// Freed slots are recycled. Every allocation passes through alloc, which is
// where collection is triggered.
type Heap struct {
	objects []*Object
	free    []value.Handle
	strings table.Table

	bytesAllocated int
	nextGC         int
	minNextGC      int
	growth         float64
	stress         bool
	log            io.Writer
	tracer         trace.Tracer

	gray        []value.Handle
	roots       []RootSource
	collecting  bool
	collections int
	freed       int
}

// NewHeap returns an empty heap.
func NewHeap(opts HeapOptions) *Heap {
	threshold := opts.InitialThreshold
	if threshold <= 0 {
		threshold = DefaultInitialThreshold
	}
	growth := opts.GrowthFactor
	if growth < 1 {
		growth = DefaultGrowthFactor
	}
	tr := opts.Tracer
	if tr == nil {
		tr = trace.Nop
	}
	h := &Heap{
		objects:   make([]*Object, 1, 256),
		nextGC:    threshold,
		minNextGC: threshold,
		growth:    growth,
		stress:    opts.Stress,
		log:       opts.Log,
		tracer:    tr,
	}
	h.strings.OnGrow = h.charge
	return h
}

// AddRoots registers a root source. Sources are marked in registration order.
func (h *Heap) AddRoots(src RootSource) {
	h.roots = append(h.roots, src)
}

// RemoveRoots unregisters a source added with AddRoots.
func (h *Heap) RemoveRoots(src RootSource) {
	for i, r := range h.roots {
		if r == src {
			h.roots = append(h.roots[:i], h.roots[i+1:]...)
			return
		}
	}
}

// Stats reports allocator counters.
func (h *Heap) Stats() HeapStats {
	return HeapStats{
		BytesAllocated: h.bytesAllocated,
		NextGC:         h.nextGC,
		Live:           h.Live(),
		Collections:    h.collections,
		Freed:          h.freed,
	}
}

// BytesAllocated is the running total charged by alloc and by table and
// chunk growth, minus what sweep freed.
func (h *Heap) BytesAllocated() int { return h.bytesAllocated }

// charge accounts for storage owned by an object growing after allocation.
// It never collects: the caller may hold unrooted handles mid-update, so the
// next alloc sees the raised count and collects there.
func (h *Heap) charge(delta int) {
	h.bytesAllocated += delta
}

// Live counts allocated objects.
func (h *Heap) Live() int {
	n := 0
	for _, o := range h.objects[1:] {
		if o != nil {
			n++
		}
	}
	return n
}

// Alive reports whether handle names an allocated object.
func (h *Heap) Alive(handle value.Handle) bool {
	return int(handle) > 0 && int(handle) < len(h.objects) && h.objects[handle] != nil
}

func (h *Heap) alloc(kind ObjectKind, data any, size int) value.Handle {
	h.bytesAllocated += size
	if h.stress || h.bytesAllocated > h.nextGC {
		h.Collect()
	}

	obj := &Object{Kind: kind, size: size, Data: data}
	var handle value.Handle
	if n := len(h.free); n > 0 {
		handle = h.free[n-1]
		h.free = h.free[:n-1]
		h.objects[handle] = obj
	} else {
		handle = value.Handle(len(h.objects))
		h.objects = append(h.objects, obj)
	}
	if h.log != nil {
		fmt.Fprintf(h.log, "#%d allocate %d for %s\n", handle, size, kind)
	}
	return handle
}

// Get returns the object header for handle.
func (h *Heap) Get(handle value.Handle) *Object {
	if handle == 0 || int(handle) >= len(h.objects) {
		panic(fmt.Errorf("vm: invalid handle #%d", handle))
	}
	obj := h.objects[handle]
	if obj == nil {
		panic(fmt.Errorf("vm: use after free of handle #%d", handle))
	}
	return obj
}

// KindOf reports the object kind of v, or 0 when v is not an object.
func (h *Heap) KindOf(v value.Value) ObjectKind {
	if !v.IsObj() {
		return 0
	}
	return h.Get(v.AsObj()).Kind
}

// IsKind reports whether v refers to an object of kind k.
func (h *Heap) IsKind(v value.Value, k ObjectKind) bool {
	return v.IsObj() && h.Get(v.AsObj()).Kind == k
}

func payload[T any](h *Heap, handle value.Handle, want ObjectKind) T {
	obj := h.Get(handle)
	data, ok := obj.Data.(T)
	if !ok || obj.Kind != want {
		panic(fmt.Errorf("vm: handle #%d is a %s, not a %s", handle, obj.Kind, want))
	}
	return data
}

func (h *Heap) Str(handle value.Handle) *String { return payload[*String](h, handle, OKString) }
func (h *Heap) Function(handle value.Handle) *Function {
	return payload[*Function](h, handle, OKFunction)
}
func (h *Heap) Native(handle value.Handle) *Native   { return payload[*Native](h, handle, OKNative) }
func (h *Heap) Closure(handle value.Handle) *Closure { return payload[*Closure](h, handle, OKClosure) }
func (h *Heap) Upvalue(handle value.Handle) *Upvalue { return payload[*Upvalue](h, handle, OKUpvalue) }
func (h *Heap) Class(handle value.Handle) *Class     { return payload[*Class](h, handle, OKClass) }
func (h *Heap) Instance(handle value.Handle) *Instance {
	return payload[*Instance](h, handle, OKInstance)
}
func (h *Heap) BoundMethod(handle value.Handle) *BoundMethod {
	return payload[*BoundMethod](h, handle, OKBoundMethod)
}

// Key returns the table key for an interned string.
func (h *Heap) Key(handle value.Handle) table.Key {
	return table.Key{Handle: handle, Hash: h.Str(handle).Hash}
}

func hashString(s string) uint32 {
	hasher := fnv.New32a()
	_, _ = io.WriteString(hasher, s)
	return hasher.Sum32()
}

// CopyString returns the interned string with content s, allocating it on
// first use.
func (h *Heap) CopyString(s string) value.Handle {
	hash := hashString(s)
	if existing, ok := h.findInterned(s, hash); ok {
		return existing
	}
	return h.allocString(s, hash)
}

// Intern looks up s without allocating.
func (h *Heap) Intern(s string) (value.Handle, bool) {
	return h.findInterned(s, hashString(s))
}

func (h *Heap) findInterned(s string, hash uint32) (value.Handle, bool) {
	return h.strings.FindString(hash, func(c value.Handle) bool {
		return h.Str(c).Chars == s
	})
}

func (h *Heap) allocString(s string, hash uint32) value.Handle {
	handle := h.alloc(OKString, &String{Chars: s, Hash: hash}, stringSize+len(s))
	h.strings.Set(table.Key{Handle: handle, Hash: hash}, value.Nil)
	return handle
}

// NewFunction allocates an empty function with a fresh chunk.
func (h *Heap) NewFunction() value.Handle {
	c := chunk.New()
	c.OnGrow = h.charge
	return h.alloc(OKFunction, &Function{Chunk: c}, functionSize)
}

// NewNative wraps fn.
func (h *Heap) NewNative(name string, fn NativeFn) value.Handle {
	return h.alloc(OKNative, &Native{Name: name, Fn: fn}, nativeSize)
}

// NewClosure allocates a closure over fn with room for its upvalues.
// fn must already be reachable.
func (h *Heap) NewClosure(fn value.Handle) value.Handle {
	n := h.Function(fn).UpvalueCount
	return h.alloc(OKClosure, &Closure{
		Function: fn,
		Upvalues: make([]value.Handle, n),
	}, closureSize+n*handleSize)
}

// NewUpvalue allocates an open upvalue aliasing stack slot.
func (h *Heap) NewUpvalue(slot int) value.Handle {
	return h.alloc(OKUpvalue, &Upvalue{Slot: slot, Closed: value.Nil, Open: true}, upvalueSize)
}

// NewClass allocates a class with an empty method table.
func (h *Heap) NewClass(name value.Handle) value.Handle {
	c := &Class{Name: name}
	c.Methods.OnGrow = h.charge
	return h.alloc(OKClass, c, classSize)
}

// NewInstance allocates an instance of class with no fields.
func (h *Heap) NewInstance(class value.Handle) value.Handle {
	inst := &Instance{Class: class}
	inst.Fields.OnGrow = h.charge
	return h.alloc(OKInstance, inst, instanceSize)
}

// NewBoundMethod pairs receiver with method.
func (h *Heap) NewBoundMethod(receiver value.Value, method value.Handle) value.Handle {
	return h.alloc(OKBoundMethod, &BoundMethod{Receiver: receiver, Method: method}, boundMethodSize)
}

// StringValue is CopyString wrapped as a Value.
func (h *Heap) StringValue(s string) value.Value {
	return value.Obj(h.CopyString(s))
}

// IsString reports whether v is a string object.
func (h *Heap) IsString(v value.Value) bool { return h.IsKind(v, OKString) }

// Chars returns the content of a string value.
func (h *Heap) Chars(v value.Value) string { return h.Str(v.AsObj()).Chars }
