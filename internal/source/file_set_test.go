package source

import "testing"

func TestNormalize(t *testing.T) {
	// "e" + combining acute accent composes to a single "é" under NFC.
	raw := []byte("\xEF\xBB\xBFprint \"cafe\u0301\";\r\nprint 1;\r\n")
	got, flags := Normalize(raw)
	want := "print \"caf\u00e9\";\nprint 1;\n"
	if string(got) != want {
		t.Fatalf("Normalize = %q, want %q", got, want)
	}
	for _, f := range []FileFlags{FileHadBOM, FileNormalizedCRLF, FileNormalizedNFC} {
		if flags&f == 0 {
			t.Errorf("flag %d not set", f)
		}
	}

	_, flags = Normalize([]byte("var a = 1;\n"))
	if flags != 0 {
		t.Errorf("clean input reported flags %d", flags)
	}
}

func TestResolveAndLines(t *testing.T) {
	fs := NewFileSet()
	id := fs.AddVirtual("t.lox", []byte("var a;\nvar bb;\n\nprint a;"))
	f := fs.Get(id)

	tests := []struct {
		off  uint32
		want LineCol
	}{
		{0, LineCol{1, 1}},
		{6, LineCol{1, 7}}, // the newline itself
		{7, LineCol{2, 1}},
		{15, LineCol{3, 1}},
		{16, LineCol{4, 1}},
	}
	for _, tt := range tests {
		start, _ := fs.Resolve(Span{File: id, Start: tt.off, End: tt.off})
		if start != tt.want {
			t.Errorf("Resolve(%d) = %+v, want %+v", tt.off, start, tt.want)
		}
	}
	if got := f.GetLine(2); got != "var bb;" {
		t.Errorf("GetLine(2) = %q", got)
	}
	if got := f.GetLine(3); got != "" {
		t.Errorf("GetLine(3) = %q", got)
	}
	if got := f.GetLine(4); got != "print a;" {
		t.Errorf("GetLine(4) = %q", got)
	}
	if f.Flags&FileVirtual == 0 {
		t.Error("virtual flag missing")
	}
	if got, ok := fs.GetByPath("./t.lox"); !ok || got.ID != id {
		t.Errorf("GetByPath = %v, %v", got, ok)
	}
}

func TestSpanCover(t *testing.T) {
	a := Span{File: 1, Start: 4, End: 6}
	b := Span{File: 1, Start: 2, End: 5}
	if got := a.Cover(b); got != (Span{File: 1, Start: 2, End: 6}) {
		t.Fatalf("Cover = %v", got)
	}
	if got := a.Cover(Span{File: 2, Start: 0, End: 99}); got != a {
		t.Fatalf("cross-file Cover changed span: %v", got)
	}
}
