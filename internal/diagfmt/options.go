package diagfmt

// PrettyOpts configures the one-line diagnostic format.
type PrettyOpts struct {
	Color bool
}

// JSONOpts configures JSON output of diagnostics.
type JSONOpts struct {
	IncludePositions bool // добавить line/col
	Max              int  // обрезка вывода, не Bag
}
