package token

import "testing"

func TestLookupKeyword(t *testing.T) {
	for text, want := range keywords {
		got, ok := LookupKeyword(text)
		if !ok || got != want {
			t.Errorf("LookupKeyword(%q) = %v, %v", text, got, ok)
		}
		if !(Token{Kind: got}).IsKeyword() {
			t.Errorf("%s not reported as keyword", got)
		}
	}
	for _, ident := range []string{"fn", "let", "Class", "init", "this_"} {
		if _, ok := LookupKeyword(ident); ok {
			t.Errorf("%q should not be a keyword", ident)
		}
	}
}

func TestKindNamesComplete(t *testing.T) {
	for k := Invalid; k <= KwWhile; k++ {
		if kindNames[k] == "" {
			t.Errorf("kind %d has no name", k)
		}
	}
}
