package diag

import (
	"fmt"
)

type Code uint16

const (
	// Неизвестная ошибка
	UnknownCode Code = 0

	// Лексические
	LexUnknownChar        Code = 1001
	LexUnterminatedString Code = 1002

	// Компилятор
	SynExpectToken         Code = 2001
	SynExpectExpression    Code = 2002
	SynInvalidAssignTarget Code = 2003
	SynTooManyConstants    Code = 2004
	SynTooManyLocals       Code = 2005
	SynDuplicateLocal      Code = 2006
	SynLocalInOwnInit      Code = 2007
	SynTooManyUpvalues     Code = 2008
	SynTooManyParams       Code = 2009
	SynTooManyArgs         Code = 2010
	SynJumpTooLarge        Code = 2011
	SynLoopTooLarge        Code = 2012
	SynReturnTopLevel      Code = 2013
	SynReturnFromInit      Code = 2014
	SynInheritSelf         Code = 2015
	SynThisOutsideClass    Code = 2016
	SynSuperOutsideClass   Code = 2017
	SynSuperNoSuperclass   Code = 2018

	// Ошибки I/O
	IOLoadFileError Code = 4001
	IOImageDecode   Code = 4002
	IOImageWrite    Code = 4003
)

var codeDescription = map[Code]string{
	UnknownCode:            "Unknown error",
	LexUnknownChar:         "Unknown character",
	LexUnterminatedString:  "Unterminated string",
	SynExpectToken:         "Expected token",
	SynExpectExpression:    "Expected expression",
	SynInvalidAssignTarget: "Invalid assignment target",
	SynTooManyConstants:    "Too many constants in one chunk",
	SynTooManyLocals:       "Too many local variables",
	SynDuplicateLocal:      "Duplicate local variable",
	SynLocalInOwnInit:      "Local read in its own initializer",
	SynTooManyUpvalues:     "Too many closure variables",
	SynTooManyParams:       "Too many parameters",
	SynTooManyArgs:         "Too many arguments",
	SynJumpTooLarge:        "Jump offset too large",
	SynLoopTooLarge:        "Loop body too large",
	SynReturnTopLevel:      "Return from top-level code",
	SynReturnFromInit:      "Return value from initializer",
	SynInheritSelf:         "Class inherits from itself",
	SynThisOutsideClass:    "'this' outside of a class",
	SynSuperOutsideClass:   "'super' outside of a class",
	SynSuperNoSuperclass:   "'super' without superclass",
	IOLoadFileError:        "I/O load file error",
	IOImageDecode:          "Malformed bytecode image",
	IOImageWrite:           "Bytecode image write error",
}

func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 1000 && ic < 2000:
		return fmt.Sprintf("LEX%04d", ic)
	case ic >= 2000 && ic < 3000:
		return fmt.Sprintf("SYN%04d", ic)
	case ic >= 4000 && ic < 5000:
		return fmt.Sprintf("IO%04d", ic)
	}
	return "E0000"
}

func (c Code) Title() string {
	desc, ok := codeDescription[c]
	if !ok {
		return codeDescription[UnknownCode]
	}
	return desc
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}
