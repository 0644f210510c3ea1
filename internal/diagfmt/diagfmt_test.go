package diagfmt

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"loxvm/internal/diag"
	"loxvm/internal/lexer"
	"loxvm/internal/source"
)

func sampleBag(fs *source.FileSet) *diag.Bag {
	id := fs.AddVirtual("t.lox", []byte("print 1 +;\nvar"))
	bag := diag.NewBag(8)
	d := diag.NewError(diag.SynExpectExpression, source.Span{File: id, Start: 9, End: 10}, "Expect expression.")
	d.Line, d.At = 1, " at ';'"
	bag.Add(d)
	d = diag.NewError(diag.SynExpectToken, source.Span{File: id, Start: 14, End: 14}, "Expect variable name.")
	d.Line, d.At = 2, " at end"
	bag.Add(d)
	return bag
}

func TestPretty(t *testing.T) {
	fs := source.NewFileSet()
	var buf bytes.Buffer
	Pretty(&buf, sampleBag(fs), PrettyOpts{})
	want := "[line 1] Error at ';': Expect expression.\n" +
		"[line 2] Error at end: Expect variable name.\n"
	if buf.String() != want {
		t.Fatalf("got:\n%s\nwant:\n%s", buf.String(), want)
	}
}

func TestLine_NoLocation(t *testing.T) {
	d := diag.NewError(diag.LexUnknownChar, source.Span{}, lexer.MsgUnexpectedChar)
	d.Line = 3
	if got := Line(d); got != "[line 3] Error: Unexpected character." {
		t.Fatalf("got %q", got)
	}
}

func TestShort(t *testing.T) {
	fs := source.NewFileSet()
	var buf bytes.Buffer
	Short(&buf, sampleBag(fs), fs)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines", len(lines))
	}
	if lines[0] != "t.lox:1:10: ERROR SYN2002: Expect expression." {
		t.Fatalf("got %q", lines[0])
	}
}

func TestJSON(t *testing.T) {
	fs := source.NewFileSet()
	var buf bytes.Buffer
	if err := JSON(&buf, sampleBag(fs), fs, JSONOpts{IncludePositions: true, Max: 1}); err != nil {
		t.Fatal(err)
	}
	var out DiagnosticsOutput
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if out.Count != 2 || len(out.Diagnostics) != 1 {
		t.Fatalf("count=%d len=%d", out.Count, len(out.Diagnostics))
	}
	if d := out.Diagnostics[0]; d.Code != "SYN2002" || d.Location.StartLine != 1 || d.Location.StartCol != 10 {
		t.Fatalf("unexpected %+v", d)
	}
}

func TestDroppedSummary(t *testing.T) {
	fs := source.NewFileSet()
	id := fs.AddVirtual("d.lox", []byte("@ @ @"))
	bag := diag.NewBag(1)
	for i := 0; i < 3; i++ {
		d := diag.NewError(diag.LexUnknownChar, source.Span{File: id, Start: uint32(2 * i), End: uint32(2*i + 1)}, lexer.MsgUnexpectedChar)
		d.Line = 1
		bag.Add(d)
	}
	if bag.Len() != 1 || bag.Dropped() != 2 {
		t.Fatalf("Len=%d Dropped=%d", bag.Len(), bag.Dropped())
	}
	var buf bytes.Buffer
	Pretty(&buf, bag, PrettyOpts{})
	want := "[line 1] Error: Unexpected character.\n... and 2 more errors\n"
	if buf.String() != want {
		t.Fatalf("got %q", buf.String())
	}
}
