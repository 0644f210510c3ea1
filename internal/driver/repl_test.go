package driver_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"loxvm/internal/driver"
	"loxvm/internal/vm"
)

func TestREPLKeepsGlobalsAcrossErrors(t *testing.T) {
	h := newHarness(t, driver.Options{})
	in := strings.NewReader("var a = 1;\nprint a + 1;\nprint b;\nprint ;\nprint a;\n")
	if err := h.session.REPL(context.Background(), in, &h.out, false); err != nil {
		t.Fatal(err)
	}
	if got := h.out.String(); got != "2\n1\n" {
		t.Errorf("stdout = %q", got)
	}
	errs := h.errs.String()
	for _, want := range []string{
		"Undefined variable 'b'.\n[line 1] in script\n",
		"[line 1] Error at ';': Expect expression.\n",
	} {
		if !strings.Contains(errs, want) {
			t.Errorf("stderr %q lacks %q", errs, want)
		}
	}
}

func TestREPLInteractivePrompt(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"trailing newline", "print 1;\n", "> 1\n> \n"},
		{"no trailing newline", "print 1;", "> 1\n\n"},
		{"empty", "", "> \n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			s := driver.NewSession(vm.New(vm.Options{Stdout: &out}), driver.Options{})
			if err := s.REPL(context.Background(), strings.NewReader(tt.in), &out, true); err != nil {
				t.Fatal(err)
			}
			if out.String() != tt.want {
				t.Errorf("got %q, want %q", out.String(), tt.want)
			}
		})
	}
}

func TestREPLStopsOnCancel(t *testing.T) {
	h := newHarness(t, driver.Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := h.session.REPL(ctx, strings.NewReader("print 1;\n"), &h.out, false); err == nil {
		t.Fatal("expected context error")
	}
	if h.out.Len() != 0 {
		t.Errorf("ran a line after cancel: %q", h.out.String())
	}
}
