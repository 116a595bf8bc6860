package token

import (
	"fmt"
	"strings"
)

// Kind identifies the category of a token.
type Kind uint8

const (
	Ident Kind = iota
	Keyword
	Delimiter
	Constant
	EOF
	Illegal
)

var kindNames = [...]string{
	Ident:     "IDENT",
	Keyword:   "KEYWORD",
	Delimiter: "DELIMITER",
	Constant:  "CONSTANT",
	EOF:       "EOF",
	Illegal:   "ILLEGAL",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("KIND(%d)", k)
}

// Word enumerates reserved words.
type Word uint8

const (
	NoWord Word = iota
	If
	Then
	ElseIf
	Else
	EndIf
	While
	For
	Each
	In
	To
	Do
	EndDo
	Procedure
	EndProcedure
	Function
	EndFunction
	Var
	Val
	Export
	Return
	Try
	Except
	EndTry
	Raise
	Continue
	Break
	Goto
	New
	And
	Or
	Not
)

var words = map[string]Word{
	"IF":           If,
	"THEN":         Then,
	"ELSEIF":       ElseIf,
	"ELSE":         Else,
	"ENDIF":        EndIf,
	"WHILE":        While,
	"FOR":          For,
	"EACH":         Each,
	"IN":           In,
	"TO":           To,
	"DO":           Do,
	"ENDDO":        EndDo,
	"PROCEDURE":    Procedure,
	"ENDPROCEDURE": EndProcedure,
	"FUNCTION":     Function,
	"ENDFUNCTION":  EndFunction,
	"VAR":          Var,
	"VAL":          Val,
	"EXPORT":       Export,
	"RETURN":       Return,
	"TRY":          Try,
	"EXCEPT":       Except,
	"ENDTRY":       EndTry,
	"RAISE":        Raise,
	"CONTINUE":     Continue,
	"BREAK":        Break,
	"GOTO":         Goto,
	"NEW":          New,
	"AND":          And,
	"OR":           Or,
	"NOT":          Not,
}

var wordNames = func() map[Word]string {
	m := make(map[Word]string, len(words))
	for name, w := range words {
		m[w] = name
	}
	return m
}()

func (w Word) String() string {
	if name, ok := wordNames[w]; ok {
		return name
	}
	return fmt.Sprintf("WORD(%d)", w)
}

// Sym enumerates delimiters and operators.
type Sym uint8

const (
	NoSym        Sym = iota
	Plus             // +
	Minus            // -
	Star             // *
	Slash            // /
	Percent          // %
	Assign           // = (also equality inside expressions)
	NotEqual         // <>
	Less             // <
	LessEqual        // <=
	Greater          // >
	GreaterEqual     // >=
	Bang             // !
	Question         // ?
	LParen           // (
	RParen           // )
	LBracket         // [
	RBracket         // ]
	Comma            // ,
	Dot              // .
	Colon            // :
	Semicolon        // ;
)

var symNames = [...]string{
	NoSym:        "",
	Plus:         "+",
	Minus:        "-",
	Star:         "*",
	Slash:        "/",
	Percent:      "%",
	Assign:       "=",
	NotEqual:     "<>",
	Less:         "<",
	LessEqual:    "<=",
	Greater:      ">",
	GreaterEqual: ">=",
	Bang:         "!",
	Question:     "?",
	LParen:       "(",
	RParen:       ")",
	LBracket:     "[",
	RBracket:     "]",
	Comma:        ",",
	Dot:          ".",
	Colon:        ":",
	Semicolon:    ";",
}

func (s Sym) String() string {
	if int(s) < len(symNames) {
		return symNames[s]
	}
	return fmt.Sprintf("SYM(%d)", s)
}

// ConstType is the literal type of a Constant token.
type ConstType uint8

const (
	NoConst ConstType = iota
	Number
	String
	Date
	Boolean
	Undefined
	Null
)

var constNames = [...]string{
	NoConst:   "",
	Number:    "Number",
	String:    "String",
	Date:      "Date",
	Boolean:   "Boolean",
	Undefined: "Undefined",
	Null:      "Null",
}

func (c ConstType) String() string {
	if int(c) < len(constNames) {
		return constNames[c]
	}
	return fmt.Sprintf("CONST(%d)", c)
}

// Token carries the lexical item along with its source position.
type Token struct {
	Kind    Kind
	Word    Word
	Sym     Sym
	Const   ConstType
	Literal string
	Pos     Position
}

// Position describes a byte offset and 1-based line/column inside a file.
type Position struct {
	File   string
	Offset int
	Line   int
	Column int
}

func (p Position) String() string {
	if p.File == "" {
		return fmt.Sprintf("%d:%d", p.Line, p.Column)
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
}

// Is reports whether the token is the given keyword.
func (t Token) Is(w Word) bool {
	return t.Kind == Keyword && t.Word == w
}

// IsSym reports whether the token is the given delimiter.
func (t Token) IsSym(s Sym) bool {
	return t.Kind == Delimiter && t.Sym == s
}

func (t Token) String() string {
	switch t.Kind {
	case Keyword:
		return t.Word.String()
	case Delimiter:
		return t.Sym.String()
	case Constant:
		return fmt.Sprintf("%s(%s)", t.Const, t.Literal)
	case EOF:
		return "end of program"
	default:
		return t.Literal
	}
}

// LookupWord returns the reserved word matching ident, ignoring case.
func LookupWord(ident string) (Word, bool) {
	w, ok := words[strings.ToUpper(ident)]
	return w, ok
}

// LookupConst reports whether ident spells a named constant (True, False, Undefined, Null).
func LookupConst(ident string) (ConstType, string, bool) {
	switch strings.ToUpper(ident) {
	case "TRUE":
		return Boolean, "true", true
	case "FALSE":
		return Boolean, "false", true
	case "UNDEFINED":
		return Undefined, "", true
	case "NULL":
		return Null, "", true
	}
	return NoConst, "", false
}
