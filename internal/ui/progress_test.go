package ui

import (
	"errors"
	"strings"
	"testing"

	"loxvm/internal/buildpipeline"
)

func feed(m *progressModel, events ...buildpipeline.Event) {
	for _, ev := range events {
		m.Update(eventMsg(ev))
	}
}

func stageEvents(file string, cached bool) []buildpipeline.Event {
	var out []buildpipeline.Event
	for _, st := range buildpipeline.Stages {
		out = append(out,
			buildpipeline.Event{File: file, Stage: st, Status: buildpipeline.StatusWorking},
			buildpipeline.Event{File: file, Stage: st, Status: buildpipeline.StatusDone, Cached: cached && st == buildpipeline.StageCompile},
		)
	}
	return out
}

func TestProgressModelTracksFiles(t *testing.T) {
	m := NewProgressModel("build", []string{"a.lox", "b.lox", "c.lox"}, nil).(*progressModel)

	feed(m, buildpipeline.Event{File: "a.lox", Stage: buildpipeline.StageCompile, Status: buildpipeline.StatusWorking})
	if got := m.items[0].status; got != "compiling" {
		t.Errorf("a status = %q", got)
	}

	feed(m, stageEvents("a.lox", false)...)
	feed(m, stageEvents("b.lox", true)...)
	feed(m,
		buildpipeline.Event{File: "c.lox", Stage: buildpipeline.StageCompile, Status: buildpipeline.StatusError, Err: errors.New("boom")},
		buildpipeline.Event{File: "c.lox", Stage: buildpipeline.StageEncode, Status: buildpipeline.StatusWorking},
		buildpipeline.Event{File: "unknown.lox", Stage: buildpipeline.StageLoad, Status: buildpipeline.StatusDone},
	)

	want := []string{"done", "cached", "error"}
	for i, w := range want {
		if m.items[i].status != w {
			t.Errorf("item %d status = %q, want %q", i, m.items[i].status, w)
		}
	}
	if p := m.percent(); p != 1.0 {
		t.Errorf("percent = %v, want 1", p)
	}
	view := m.View()
	if !strings.Contains(view, "build (3/3)") {
		t.Errorf("header missing in view:\n%s", view)
	}
	for _, name := range []string{"a.lox", "b.lox", "c.lox"} {
		if !strings.Contains(view, name) {
			t.Errorf("view lacks %s", name)
		}
	}

	m.Update(doneMsg{})
	if !m.done || !strings.Contains(m.View(), "done: build") {
		t.Error("model did not finish on doneMsg")
	}
}

func TestProgressPercentPartial(t *testing.T) {
	m := NewProgressModel("build", []string{"a.lox", "b.lox"}, nil).(*progressModel)
	feed(m,
		buildpipeline.Event{File: "a.lox", Stage: buildpipeline.StageLoad, Status: buildpipeline.StatusDone},
		buildpipeline.Event{File: "a.lox", Stage: buildpipeline.StageCompile, Status: buildpipeline.StatusDone},
	)
	if p := m.percent(); p != 0.25 {
		t.Errorf("percent = %v, want 0.25", p)
	}
	if m.finished() != 0 {
		t.Errorf("finished = %d", m.finished())
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"short.lox", 20, "short.lox"},
		{"dir/long/path.lox", 10, "...ath.lox"},
		{"abcdef", 2, "ab"},
		{"каталог/файл.lox", 11, "...файл.lox"},
		{"x", 0, "x"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.width); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
		}
	}
}
