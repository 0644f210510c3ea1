package diag

import (
	"loxvm/internal/source"
)

// Diagnostic is one compile-time finding. Line and At carry the location the
// way it is shown to the user: At is "" for lexical errors, " at end" at
// EOF, and " at 'lexeme'" otherwise.
type Diagnostic struct {
	Severity Severity
	Code     Code
	Message  string
	Primary  source.Span
	Line     int
	At       string
}

func New(sev Severity, code Code, primary source.Span, msg string) Diagnostic {
	return Diagnostic{
		Severity: sev,
		Code:     code,
		Primary:  primary,
		Message:  msg,
	}
}

func NewError(code Code, primary source.Span, msg string) Diagnostic {
	return New(SevError, code, primary, msg)
}
