package buildpipeline_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"loxvm/internal/buildpipeline"
	"loxvm/internal/driver"
	"loxvm/internal/image"
	"loxvm/internal/vm"
)

func writeSources(t *testing.T, files map[string]string) (string, []string) {
	t.Helper()
	dir := t.TempDir()
	var paths []string
	for name, content := range files {
		p := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
		paths = append(paths, p)
	}
	return dir, paths
}

func runImage(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	machine := vm.New(vm.Options{Stdout: &out})
	fn, err := image.Decode(machine.Heap(), data)
	if err != nil {
		t.Fatalf("Decode %s: %v", path, err)
	}
	if res := machine.Interpret(fn); res != vm.InterpretOK {
		t.Fatalf("run %s: %v", path, res)
	}
	return out.String()
}

type recorder struct {
	mu     sync.Mutex
	events []buildpipeline.Event
}

func (r *recorder) OnEvent(ev buildpipeline.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) statuses(file string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, ev := range r.events {
		if ev.File == file {
			out = append(out, string(ev.Stage)+":"+string(ev.Status))
		}
	}
	return out
}

func TestBuildWritesRunnableImages(t *testing.T) {
	_, paths := writeSources(t, map[string]string{
		"a.lox": "print \"a\";",
		"b.lox": "fun f(x) { return x + 1; } print f(1);",
		"c.lox": "class C { init(v) { this.v = v; } } print C(3).v;",
	})
	rec := &recorder{}
	res, err := buildpipeline.Build(context.Background(), &buildpipeline.Request{
		Files:    paths,
		Jobs:     2,
		Heap:     vm.HeapOptions{Stress: true},
		Progress: rec,
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	want := map[string]string{"a": "a\n", "b": "2\n", "c": "3\n"}
	for _, fr := range res.Files {
		if fr.Err != nil {
			t.Fatalf("%s: %v", fr.Path, fr.Err)
		}
		name := strings.TrimSuffix(filepath.Base(fr.Path), ".lox")
		if filepath.Dir(fr.Output) != filepath.Dir(fr.Path) || filepath.Ext(fr.Output) != image.Ext {
			t.Errorf("output %s for %s", fr.Output, fr.Path)
		}
		if got := runImage(t, fr.Output); got != want[name] {
			t.Errorf("%s printed %q, want %q", name, got, want[name])
		}
		if fr.Bytes == 0 || fr.Functions == 0 {
			t.Errorf("%s: bytes=%d functions=%d", name, fr.Bytes, fr.Functions)
		}
	}

	wantSeq := "load:queued,load:working,load:done,compile:working,compile:done,encode:working,encode:done,write:working,write:done"
	for _, p := range paths {
		if got := strings.Join(rec.statuses(p), ","); got != wantSeq {
			t.Errorf("%s events:\n got %s\nwant %s", p, got, wantSeq)
		}
	}
	for _, stage := range buildpipeline.Stages {
		if !res.Timings.Has(stage) {
			t.Errorf("no timing for %s", stage)
		}
	}
}

func TestBuildReportsFailuresPerFile(t *testing.T) {
	dir, _ := writeSources(t, map[string]string{
		"good.lox": "print 1;",
		"bad.lox":  "print ;\nvar = 2;",
	})
	good := filepath.Join(dir, "good.lox")
	bad := filepath.Join(dir, "bad.lox")
	missing := filepath.Join(dir, "missing.lox")

	res, err := buildpipeline.Build(context.Background(), &buildpipeline.Request{
		Files: []string{good, bad, missing},
	})
	if err == nil || !strings.Contains(err.Error(), "2 of 3 files failed") {
		t.Fatalf("err = %v", err)
	}
	if res.Failed != 2 {
		t.Fatalf("Failed = %d", res.Failed)
	}
	if res.Files[0].Err != nil {
		t.Errorf("good file failed: %v", res.Files[0].Err)
	}
	if !errors.Is(res.Files[1].Err, buildpipeline.ErrCompile) {
		t.Errorf("bad file err = %v", res.Files[1].Err)
	}
	if n := res.Files[1].Bag.Len(); n != 2 {
		t.Errorf("bad file has %d diagnostics, want 2", n)
	}
	if !os.IsNotExist(res.Files[2].Err) {
		t.Errorf("missing file err = %v", res.Files[2].Err)
	}
	if _, err := os.Stat(filepath.Join(dir, "bad"+image.Ext)); !os.IsNotExist(err) {
		t.Errorf("image written for a file with errors")
	}
}

func TestBuildOutDirAndCollisions(t *testing.T) {
	_, paths := writeSources(t, map[string]string{
		"x/main.lox": "print 1;",
		"y/main.lox": "print 2;",
	})
	out := filepath.Join(t.TempDir(), "out")

	_, err := buildpipeline.Build(context.Background(), &buildpipeline.Request{Files: paths, OutDir: out})
	if err == nil || !strings.Contains(err.Error(), "both build to") {
		t.Fatalf("err = %v", err)
	}

	res, err := buildpipeline.Build(context.Background(), &buildpipeline.Request{Files: paths[:1], OutDir: out})
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(out, "main"+image.Ext); res.Files[0].Output != want {
		t.Errorf("output = %s, want %s", res.Files[0].Output, want)
	}
}

func TestBuildUsesCache(t *testing.T) {
	cache, err := driver.OpenCompileCacheAt(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	_, paths := writeSources(t, map[string]string{"m.lox": "var a = \"q\"; print a + a;"})
	req := &buildpipeline.Request{Files: paths, Cache: cache}

	first, err := buildpipeline.Build(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	rec := &recorder{}
	req.Progress = rec
	second, err := buildpipeline.Build(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if first.Files[0].Cached || !second.Files[0].Cached {
		t.Fatalf("cached: first=%v second=%v", first.Files[0].Cached, second.Files[0].Cached)
	}
	if got := runImage(t, second.Files[0].Output); got != "qq\n" {
		t.Errorf("cached image printed %q", got)
	}
	var sawCached bool
	for _, ev := range rec.events {
		if ev.Stage == buildpipeline.StageCompile && ev.Status == buildpipeline.StatusDone {
			sawCached = ev.Cached
		}
	}
	if !sawCached {
		t.Error("compile event not marked cached")
	}
}

func TestBuildRejectsEmptyRequest(t *testing.T) {
	if _, err := buildpipeline.Build(context.Background(), nil); err == nil {
		t.Error("nil request accepted")
	}
	if _, err := buildpipeline.Build(context.Background(), &buildpipeline.Request{}); err == nil {
		t.Error("empty file list accepted")
	}
}

func TestBuildCancelled(t *testing.T) {
	_, paths := writeSources(t, map[string]string{"a.lox": "print 1;"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := buildpipeline.Build(ctx, &buildpipeline.Request{Files: paths})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestChannelSink(t *testing.T) {
	ch := make(chan buildpipeline.Event, 1)
	buildpipeline.ChannelSink{Ch: ch}.OnEvent(buildpipeline.Event{File: "f", Status: buildpipeline.StatusDone})
	if ev := <-ch; ev.File != "f" {
		t.Errorf("got %+v", ev)
	}
	buildpipeline.ChannelSink{}.OnEvent(buildpipeline.Event{})
}

func TestChannelSinkDoneDoesNotBlock(t *testing.T) {
	done := make(chan struct{})
	close(done)
	// никто не читает ch; без Done вызов повис бы
	buildpipeline.ChannelSink{Ch: make(chan buildpipeline.Event), Done: done}.OnEvent(buildpipeline.Event{File: "f"})
}
