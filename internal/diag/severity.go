package diag

// Severity ranks a diagnostic. Lox only ever reports errors; notes attach
// context to them in the JSON output.
type Severity uint8

const (
	SevNote Severity = iota
	SevError
)

func (s Severity) String() string {
	switch s {
	case SevNote:
		return "NOTE"
	case SevError:
		return "ERROR"
	}
	return "UNKNOWN"
}
