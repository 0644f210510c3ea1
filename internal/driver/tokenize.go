package driver

import (
	"loxvm/internal/diag"
	"loxvm/internal/lexer"
	"loxvm/internal/source"
	"loxvm/internal/token"
)

type TokenizeResult struct {
	FileSet *source.FileSet
	File    *source.File
	Tokens  []token.Token
	Bag     *diag.Bag
}

// Tokenize scans path and collects every token up to and including EOF.
// Invalid tokens stay in the stream and are also reported in Bag.
func Tokenize(path string, maxDiagnostics uint16) (*TokenizeResult, error) {
	fs := source.NewFileSet()
	fileID, err := fs.Load(path)
	if err != nil {
		return nil, err
	}
	file := fs.Get(fileID)
	bag := diag.NewBag(maxDiagnostics)

	tokens := lexer.New(file).All()
	for _, tok := range tokens {
		if tok.Kind != token.Invalid {
			continue
		}
		code := diag.LexUnknownChar
		if tok.Text == lexer.MsgUnterminatedString {
			code = diag.LexUnterminatedString
		}
		d := diag.NewError(code, tok.Span, tok.Text)
		d.Line = tok.Line
		bag.Add(d)
	}

	return &TokenizeResult{
		FileSet: fs,
		File:    file,
		Tokens:  tokens,
		Bag:     bag,
	}, nil
}
