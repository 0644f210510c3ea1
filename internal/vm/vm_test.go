package vm_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"loxvm/internal/compiler"
	"loxvm/internal/diag"
	"loxvm/internal/source"
	"loxvm/internal/value"
	"loxvm/internal/vm"
)

type harness struct {
	vm     *vm.VM
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

func newHarness(opts vm.Options) *harness {
	h := &harness{stdout: &bytes.Buffer{}, stderr: &bytes.Buffer{}}
	opts.Stdout = h.stdout
	opts.Stderr = h.stderr
	h.vm = vm.New(opts)
	return h
}

func (h *harness) run(t *testing.T, src string) vm.Result {
	t.Helper()
	fs := source.NewFileSet()
	id := fs.AddVirtual("test.lox", []byte(src))
	bag := diag.NewBag(16)
	fn, ok := compiler.Compile(h.vm.Heap(), fs.Get(id), diag.BagReporter{Bag: bag})
	if !ok {
		t.Fatalf("compile failed: %v", bag.Items())
	}
	return h.vm.Interpret(fn)
}

func runProgram(t *testing.T, src string) (string, string, vm.Result) {
	t.Helper()
	h := newHarness(vm.Options{})
	res := h.run(t, src)
	return h.stdout.String(), h.stderr.String(), res
}

func TestPrograms(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			"class-initializer-method",
			`class Greeter { init(msg) { this.msg = msg; } say() { print this.msg; } }
Greeter("hi").say();`,
			"hi\n",
		},
		{
			"counter-closure",
			`fun makeCounter() {
  var i = 1;
  fun count() { i = i + 1; print i; }
  return count;
}
var c = makeCounter();
c();
c();`,
			"2\n3\n",
		},
		{
			"loop-body-closures",
			`var first; var second;
for (var i = 1; i <= 2; i = i + 1) {
  var j = i;
  fun show() { print j; }
  if (i == 1) first = show; else second = show;
}
first();
second();`,
			"1\n2\n",
		},
		{
			"shared-upvalue-after-close",
			`var inc; var get;
fun make() {
  var v = 0;
  fun i() { v = v + 1; }
  fun g() { return v; }
  inc = i; get = g;
}
make();
inc(); inc();
print get();`,
			"2\n",
		},
		{
			"inheritance-override-super",
			`class A { m() { return "A"; } n() { return "n" + this.m(); } }
class B < A { m() { return "B" + super.m(); } }
print B().n();
print A().n();`,
			"nBA\nnA\n",
		},
		{
			"super-get-bound",
			`class A { m() { return "A.m"; } }
class B < A { get() { var f = super.m; return f; } }
print B().get()();`,
			"A.m\n",
		},
		{
			"inherited-initializer",
			`class A { init(v) { this.v = v; } }
class B < A {}
print B(7).v;`,
			"7\n",
		},
		{
			"field-shadows-method-on-invoke",
			`class A { m() { return "method"; } }
fun f() { return "field"; }
var a = A();
print a.m();
a.m = f;
print a.m();`,
			"method\nfield\n",
		},
		{
			"bound-method",
			`class A { init() { this.n = "x"; } get() { return this.n; } }
var m = A().get;
print m();
print m;`,
			"x\n<fn get>\n",
		},
		{
			"initializer-returns-receiver",
			`class A { init() { this.v = 1; return; } }
var a = A();
print a.v;
print a.init();`,
			"1\nA instance\n",
		},
		{
			"print-formats",
			`class K {} fun f() {}
print nil; print true; print false; print 1.5; print 3; print 1/3;
print K; print K(); print f; print clock;`,
			"nil\ntrue\nfalse\n1.5\n3\n0.333333\nK\nK instance\n<fn f>\n<native fn>\n",
		},
		{
			"interning-by-concatenation",
			`var a = "ab"; var b = "a" + "b"; print a == b; print "a" == "b";`,
			"true\nfalse\n",
		},
		{
			"nan-not-equal",
			`var n = 0/0; print n == n; print nil == false; print 1 == 1;`,
			"false\nfalse\ntrue\n",
		},
		{
			"control-flow",
			`var s = 0;
for (var i = 0; i < 5; i = i + 1) { if (i == 2) s = s + 10; else s = s + i; }
var w = 0; while (w < 3) w = w + 1;
print s; print w; print nil or "d"; print false and x;`,
			"18\n3\nd\nfalse\n",
		},
		{
			"recursion",
			`fun fib(n) { if (n < 2) return n; return fib(n - 1) + fib(n - 2); }
print fib(15);`,
			"610\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, errOut, res := runProgram(t, tt.src)
			if res != vm.InterpretOK {
				t.Fatalf("result %s, stderr:\n%s", res, errOut)
			}
			if out != tt.want {
				t.Fatalf("stdout:\n%s\nwant:\n%s", out, tt.want)
			}
		})
	}
}

func TestRuntimeErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		msg  string
		code vm.ErrorCode
	}{
		{"negate", `print -"a";`, "Operand must be a number.", vm.ErrTypeMismatch},
		{"add", `print 1 + "a";`, "Operands must be two numbers or two strings.", vm.ErrTypeMismatch},
		{"compare", `print 1 < "a";`, "Operands must be numbers.", vm.ErrTypeMismatch},
		{"get-global", `print y;`, "Undefined variable 'y'.", vm.ErrUndefined},
		{"set-global", `y = 1;`, "Undefined variable 'y'.", vm.ErrUndefined},
		{"property", `class A {} print A().nope;`, "Undefined property 'nope'.", vm.ErrUndefined},
		{"method", `class A {} A().nope();`, "Undefined property 'nope'.", vm.ErrUndefined},
		{"get-on-number", `var x = 1; print x.y;`, "Only instances have properties.", vm.ErrNotInstance},
		{"set-on-number", `var x = 1; x.y = 2;`, "Only instances have fields.", vm.ErrNotInstance},
		{"invoke-on-number", `var x = 1; x.m();`, "Only instances have methods.", vm.ErrNotInstance},
		{"call-string", `"s"();`, "Can only call functions and classes.", vm.ErrNotCallable},
		{"bad-superclass", `var B = 1; class A < B {}`, "Superclass must be a class.", vm.ErrBadInheritance},
		{"class-no-init-args", `class A {} A(1);`, "Expected 0 arguments but got 1.", vm.ErrArity},
		{"init-arity", `class A { init(a, b) {} } A(1);`, "Expected 2 arguments but got 1.", vm.ErrArity},
		{"stack-overflow", `fun f() { f(); } f();`, "Stack overflow.", vm.ErrStackOverflow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(vm.Options{})
			if res := h.run(t, tt.src); res != vm.InterpretRuntimeError {
				t.Fatalf("result = %s", res)
			}
			err := h.vm.LastError()
			if err == nil {
				t.Fatal("LastError is nil")
			}
			if err.Message != tt.msg || err.Code != tt.code {
				t.Fatalf("got %s %q, want %s %q", err.Code, err.Message, tt.code, tt.msg)
			}
			if !strings.HasPrefix(h.stderr.String(), tt.msg+"\n") {
				t.Fatalf("stderr = %q", h.stderr.String())
			}
		})
	}
}

func TestRuntimeError_Backtrace(t *testing.T) {
	_, errOut, res := runProgram(t, `fun a() { b(); }
fun b() { c(); }
fun c() {
  c("too", "many");
}
a();`)
	if res != vm.InterpretRuntimeError {
		t.Fatalf("result = %s", res)
	}
	want := "Expected 0 arguments but got 2.\n" +
		"[line 4] in c()\n" +
		"[line 2] in b()\n" +
		"[line 1] in a()\n" +
		"[line 6] in script\n"
	if errOut != want {
		t.Fatalf("stderr:\n%s\nwant:\n%s", errOut, want)
	}
}

func TestRuntimeError_FunctionNamedScript(t *testing.T) {
	_, errOut, res := runProgram(t, "fun script() { return -nil; }\nscript();")
	if res != vm.InterpretRuntimeError {
		t.Fatalf("result = %s", res)
	}
	want := "Operand must be a number.\n" +
		"[line 1] in script()\n" +
		"[line 2] in script\n"
	if errOut != want {
		t.Fatalf("stderr:\n%s\nwant:\n%s", errOut, want)
	}
}

func TestRuntimeError_ResetsVM(t *testing.T) {
	h := newHarness(vm.Options{})
	if res := h.run(t, "fun f(a) { var x = 1; fun g() { return x; } f(); }\nf(1);"); res != vm.InterpretRuntimeError {
		t.Fatalf("result = %s", res)
	}
	if d := h.vm.StackDepth(); d != 0 {
		t.Fatalf("stack depth after error = %d", d)
	}
	if d := h.vm.FrameDepth(); d != 0 {
		t.Fatalf("frame depth after error = %d", d)
	}
	if n := h.vm.OpenUpvalues(); n != 0 {
		t.Fatalf("open upvalues after error = %d", n)
	}

	h.stdout.Reset()
	if res := h.run(t, "print 1;"); res != vm.InterpretOK {
		t.Fatalf("VM unusable after error: %s", res)
	}
	if h.stdout.String() != "1\n" {
		t.Fatalf("stdout = %q", h.stdout.String())
	}
	if h.vm.LastError() != nil {
		t.Fatal("LastError should clear on success")
	}
}

func TestSetGlobal_UndefinedLeavesNoBinding(t *testing.T) {
	h := newHarness(vm.Options{})
	h.run(t, "x = 1;")
	if _, ok := h.vm.Global("x"); ok {
		t.Fatal("failed assignment must not define the global")
	}
}

func TestGlobalsPersistAcrossInterpret(t *testing.T) {
	h := newHarness(vm.Options{})
	h.run(t, `var greeting = "hello"; class P { hi() { return greeting; } }`)
	h.run(t, `print P().hi();`)
	if got := h.stdout.String(); got != "hello\n" {
		t.Fatalf("stdout = %q", got)
	}
	v, ok := h.vm.Global("greeting")
	if !ok || h.vm.Heap().FormatValue(v) != "hello" {
		t.Fatalf("Global(greeting) = %v, %v", v, ok)
	}
}

func TestStressGC(t *testing.T) {
	h := newHarness(vm.Options{StressGC: true})
	res := h.run(t, `
class Node { init(v, next) { this.v = v; this.next = next; } sum() { if (this.next == nil) return this.v; return this.v + this.next.sum(); } }
var list = nil;
for (var i = 0; i < 50; i = i + 1) { list = Node(i, list); }
print list.sum();
var str = "";
for (var i = 0; i < 20; i = i + 1) { str = str + "x"; }
print str;
fun adder(k) { fun add(x) { return x + k; } return add; }
var add5 = adder(5);
print add5(10);
`)
	if res != vm.InterpretOK {
		t.Fatalf("result %s:\n%s", res, h.stderr.String())
	}
	want := "1225\n" + strings.Repeat("x", 20) + "\n15\n"
	if got := h.stdout.String(); got != want {
		t.Fatalf("stdout = %q, want %q", got, want)
	}
	if h.vm.Heap().Stats().Collections == 0 {
		t.Fatal("stress mode should collect")
	}
}

func TestCollectKeepsGlobalsAndDropsGarbage(t *testing.T) {
	h := newHarness(vm.Options{})
	h.run(t, `var keep = "kept" + "!"; { var tmp = "tmp" + "!"; }`)
	heap := h.vm.Heap()
	heap.Collect()
	if _, ok := heap.Intern("kept!"); !ok {
		t.Fatal("string held by a global was collected")
	}
	if _, ok := heap.Intern("tmp!"); ok {
		t.Fatal("unreachable concatenation result survived")
	}
}

func TestGCLog(t *testing.T) {
	h := newHarness(vm.Options{StressGC: true, LogGC: true})
	if res := h.run(t, `print "a" + "b";`); res != vm.InterpretOK {
		t.Fatalf("result %s", res)
	}
	log := h.stderr.String()
	for _, want := range []string{"-- gc begin", "-- gc end", "allocate", "mark", "blacken"} {
		if !strings.Contains(log, want) {
			t.Fatalf("gc log missing %q", want)
		}
	}
	if h.stdout.String() != "ab\n" {
		t.Fatalf("stdout = %q", h.stdout.String())
	}
}

func TestTraceExec(t *testing.T) {
	h := newHarness(vm.Options{TraceExec: true})
	h.run(t, "print 1;")
	out := h.stderr.String()
	if !strings.Contains(out, "OP_CONSTANT") || !strings.Contains(out, "OP_PRINT") {
		t.Fatalf("trace output:\n%s", out)
	}
	if !strings.Contains(out, "[ <script> ]") {
		t.Fatalf("trace should show the stack:\n%s", out)
	}
}

func TestDefineNative(t *testing.T) {
	h := newHarness(vm.Options{})
	h.vm.DefineNative("add", func(args []value.Value) (value.Value, error) {
		if len(args) != 2 {
			return value.Nil, errors.New("want 2 args")
		}
		return value.Number(args[0].AsNumber() + args[1].AsNumber()), nil
	})
	h.vm.DefineNative("fail", func([]value.Value) (value.Value, error) {
		return value.Nil, errors.New("boom")
	})
	if res := h.run(t, "print add(2, 3);"); res != vm.InterpretOK {
		t.Fatalf("result %s", res)
	}
	if h.stdout.String() != "5\n" {
		t.Fatalf("stdout = %q", h.stdout.String())
	}
	if res := h.run(t, "fail();"); res != vm.InterpretRuntimeError {
		t.Fatalf("result %s", res)
	}
	if err := h.vm.LastError(); err.Code != vm.ErrNative || err.Message != "fail: boom" {
		t.Fatalf("error = %s %q", err.Code, err.Message)
	}
}

func TestClockIsMonotonic(t *testing.T) {
	out, _, res := runProgram(t, `var a = clock(); var b = clock(); print b >= a; print a >= 0;`)
	if res != vm.InterpretOK || out != "true\ntrue\n" {
		t.Fatalf("res=%s out=%q", res, out)
	}
}
