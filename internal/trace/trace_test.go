package trace_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"loxvm/internal/trace"
)

func TestLevelGatesScopes(t *testing.T) {
	tests := []struct {
		level trace.Level
		scope trace.Scope
		want  bool
	}{
		{trace.LevelOff, trace.ScopeDriver, false},
		{trace.LevelError, trace.ScopeDriver, true},
		{trace.LevelError, trace.ScopePass, false},
		{trace.LevelPhase, trace.ScopePass, true},
		{trace.LevelPhase, trace.ScopeGC, false},
		{trace.LevelDetail, trace.ScopeGC, true},
		{trace.LevelDetail, trace.ScopeExec, false},
		{trace.LevelDebug, trace.ScopeExec, true},
	}
	for _, tt := range tests {
		if got := tt.level.ShouldEmit(tt.scope); got != tt.want {
			t.Errorf("%s.ShouldEmit(%s) = %v, want %v", tt.level, tt.scope, got, tt.want)
		}
	}
}

func TestParseLevel(t *testing.T) {
	if lvl, err := trace.ParseLevel("DETAIL"); err != nil || lvl != trace.LevelDetail {
		t.Fatalf("ParseLevel = %v, %v", lvl, err)
	}
	if _, err := trace.ParseLevel("loud"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestStreamTracerSpans(t *testing.T) {
	var buf bytes.Buffer
	tr := trace.NewStreamTracer(&buf, trace.LevelPhase, trace.FormatText)
	ctx := trace.WithTracer(context.Background(), tr)

	root := trace.Begin(trace.FromContext(ctx), trace.ScopeDriver, "run", 0)
	child := trace.Begin(tr, trace.ScopePass, "compile", root.ID())
	child.WithExtra("bytes", "12").End("ok")
	trace.Point(tr, trace.ScopeGC, "gc", "", nil)
	root.End("")

	out := buf.String()
	for _, want := range []string{"driver:run", "pass:compile (ok) {bytes=12}"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "gc:gc") {
		t.Errorf("gc point should be filtered at phase level:\n%s", out)
	}
	if lines := strings.Count(out, "\n"); lines != 4 {
		t.Errorf("expected 4 lines, got %d:\n%s", lines, out)
	}
}

func TestRingTracerWraps(t *testing.T) {
	ring := trace.NewRingTracer(3, trace.LevelDebug)
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		trace.Point(ring, trace.ScopeExec, name, "", nil)
	}
	snap := ring.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("snapshot len = %d", len(snap))
	}
	for i, want := range []string{"c", "d", "e"} {
		if snap[i].Name != want {
			t.Errorf("snap[%d] = %s, want %s", i, snap[i].Name, want)
		}
	}
}

func TestNDJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	tr, err := trace.New(trace.Config{Level: trace.LevelDebug, Mode: trace.ModeBoth, Output: &buf, Format: trace.FormatNDJSON})
	if err != nil {
		t.Fatal(err)
	}
	trace.Point(tr, trace.ScopeGC, "gc", "cycle", map[string]string{"freed": "3"})
	if !strings.Contains(buf.String(), `"scope":"gc"`) || !strings.Contains(buf.String(), `"freed":"3"`) {
		t.Fatalf("unexpected ndjson: %s", buf.String())
	}
	multi, ok := tr.(*trace.MultiTracer)
	if !ok || multi.Ring() == nil || len(multi.Ring().Snapshot()) != 1 {
		t.Fatal("both mode should also keep the event in the ring")
	}
}

func TestNewOffIsNop(t *testing.T) {
	tr, err := trace.New(trace.Config{Level: trace.LevelOff})
	if err != nil || tr.Enabled() {
		t.Fatalf("expected disabled tracer, got %v %v", tr, err)
	}
}
