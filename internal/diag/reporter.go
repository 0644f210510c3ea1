package diag

// Reporter receives diagnostics from the lexer and the compiler.
type Reporter interface {
	Report(d Diagnostic)
}

// BagReporter пишет в *Bag; nil Bag молча отбрасывает.
type BagReporter struct{ Bag *Bag }

func (r BagReporter) Report(d Diagnostic) {
	if r.Bag == nil {
		return
	}
	r.Bag.Add(d)
}
