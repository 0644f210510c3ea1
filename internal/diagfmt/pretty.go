package diagfmt

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"loxvm/internal/diag"
	"loxvm/internal/source"
)

// Line renders d as "[line N] Error at 'x': message".
func Line(d diag.Diagnostic) string {
	return fmt.Sprintf("[line %d] Error%s: %s", d.Line, d.At, d.Message)
}

// Pretty пишет каждую диагностику из bag в формате Line, по одной на строку.
// Порядок сохраняется: компилятор сообщает ошибки в порядке исходника.
func Pretty(w io.Writer, bag *diag.Bag, opts PrettyOpts) {
	label := color.New(color.FgRed, color.Bold)
	if !opts.Color {
		label.DisableColor()
	}
	for _, d := range bag.Items() {
		fmt.Fprintf(w, "[line %d] %s%s: %s\n", d.Line, label.Sprint("Error"), d.At, d.Message)
	}
	writeDropped(w, bag)
}

func writeDropped(w io.Writer, bag *diag.Bag) {
	if n := bag.Dropped(); n > 0 {
		fmt.Fprintf(w, "... and %d more errors\n", n)
	}
}

// Short renders "<path>:<line>:<col>: <SEV> <CODE>: <message>" per diagnostic.
func Short(w io.Writer, bag *diag.Bag, fs *source.FileSet) {
	for _, d := range bag.Items() {
		path := "<unknown>"
		var pos source.LineCol
		if f := fs.Get(d.Primary.File); f != nil {
			path = f.Path
			pos, _ = fs.Resolve(d.Primary)
		}
		fmt.Fprintf(w, "%s:%d:%d: %s %s: %s\n", path, pos.Line, pos.Col, d.Severity, d.Code.ID(), d.Message)
	}
	writeDropped(w, bag)
}
