package observ

import (
	"strings"
	"testing"
	"time"
)

func TestTimerReport(t *testing.T) {
	tm := NewTimer()
	a := tm.Begin("compile")
	time.Sleep(time.Millisecond)
	tm.End(a, "")
	b := tm.Begin("execute")
	tm.End(b, "ok, gc=0")
	tm.End(99, "ignored")

	if tm.Len() != 2 {
		t.Fatalf("Len = %d", tm.Len())
	}
	r := tm.Report()
	if len(r.Phases) != 2 || r.Phases[0].Name != "compile" || r.Phases[1].Note != "ok, gc=0" {
		t.Fatalf("report = %+v", r)
	}
	if r.Phases[0].DurationMS < 1 || r.TotalMS < r.Phases[0].DurationMS {
		t.Errorf("durations: %+v", r)
	}

	sum := tm.Summary()
	for _, want := range []string{"timings:\n", "  compile ", "  // ok, gc=0\n", "  total "} {
		if !strings.Contains(sum, want) {
			t.Errorf("summary %q lacks %q", sum, want)
		}
	}
}

func TestEmptyTimer(t *testing.T) {
	r := NewTimer().Report()
	if r.TotalMS != 0 || len(r.Phases) != 0 {
		t.Errorf("report = %+v", r)
	}
}

func TestTimerFoldsRepeatedPhases(t *testing.T) {
	tm := NewTimer()
	for i := 0; i < 3; i++ {
		tm.End(tm.Begin("compile"), "")
		tm.End(tm.Begin("execute"), "ok")
	}
	r := tm.Report()
	if len(r.Phases) != 2 || r.Phases[0].Count != 3 || r.Phases[1].Count != 3 {
		t.Fatalf("report = %+v", r)
	}
	if !strings.Contains(tm.Summary(), "  compile x3 ") {
		t.Errorf("summary = %q", tm.Summary())
	}
}
