package token

// Kind represents the category of a source token.
type Kind uint8

const (
	// Invalid marks a lexical error; the token text holds the message.
	Invalid Kind = iota
	// EOF marks the end of the source input.
	EOF

	// Single-character punctuation.
	LParen    // (
	RParen    // )
	LBrace    // {
	RBrace    // }
	Comma     // ,
	Dot       // .
	Minus     // -
	Plus      // +
	Semicolon // ;
	Slash     // /
	Star      // *

	// One- or two-character operators.
	Bang    // !
	BangEq  // !=
	Assign  // =
	EqEq    // ==
	Gt      // >
	GtEq    // >=
	Lt      // <
	LtEq    // <=

	// Literals.
	Ident
	StringLit
	NumberLit

	// Keywords.
	KwAnd
	KwClass
	KwElse
	KwFalse
	KwFor
	KwFun
	KwIf
	KwNil
	KwOr
	KwPrint
	KwReturn
	KwSuper
	KwThis
	KwTrue
	KwVar
	KwWhile
)

var kindNames = [...]string{
	Invalid:   "Invalid",
	EOF:       "EOF",
	LParen:    "LParen",
	RParen:    "RParen",
	LBrace:    "LBrace",
	RBrace:    "RBrace",
	Comma:     "Comma",
	Dot:       "Dot",
	Minus:     "Minus",
	Plus:      "Plus",
	Semicolon: "Semicolon",
	Slash:     "Slash",
	Star:      "Star",
	Bang:      "Bang",
	BangEq:    "BangEq",
	Assign:    "Assign",
	EqEq:      "EqEq",
	Gt:        "Gt",
	GtEq:      "GtEq",
	Lt:        "Lt",
	LtEq:      "LtEq",
	Ident:     "Ident",
	StringLit: "StringLit",
	NumberLit: "NumberLit",
	KwAnd:     "KwAnd",
	KwClass:   "KwClass",
	KwElse:    "KwElse",
	KwFalse:   "KwFalse",
	KwFor:     "KwFor",
	KwFun:     "KwFun",
	KwIf:      "KwIf",
	KwNil:     "KwNil",
	KwOr:      "KwOr",
	KwPrint:   "KwPrint",
	KwReturn:  "KwReturn",
	KwSuper:   "KwSuper",
	KwThis:    "KwThis",
	KwTrue:    "KwTrue",
	KwVar:     "KwVar",
	KwWhile:   "KwWhile",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Kind(?)"
}
