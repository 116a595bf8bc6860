package lexer

import (
	"strings"

	"github.com/xirelogy/go-bscript/internal/token"
)

// Lexer converts module source text into a stream of tokens.
type Lexer struct {
	input   string
	file    string
	pos     int  // current position in bytes
	readPos int  // next read position
	ch      byte // current char
	line    int
	column  int
}

// New creates a lexer for the provided source text. file is stamped on every
// token position.
func New(input, file string) *Lexer {
	l := &Lexer{
		input: input,
		file:  file,
		line:  1,
	}
	l.readChar()
	return l
}

// Tokenize lexes the whole input. Illegal tokens are kept in the stream; the
// consumer decides how to report them.
func Tokenize(input, file string) []token.Token {
	l := New(input, file)
	var toks []token.Token
	for {
		tok := l.NextToken()
		toks = append(toks, tok)
		if tok.Kind == token.EOF {
			return toks
		}
	}
}

// NextToken returns the next token from the input.
func (l *Lexer) NextToken() token.Token {
	for {
		l.skipWhitespace()

		if l.ch == 0 {
			return l.makeToken(token.EOF, "")
		}
		if l.ch == '/' && l.peekChar() == '/' {
			l.skipLineComment()
			continue
		}
		break
	}

	switch l.ch {
	case '<':
		switch l.peekChar() {
		case '=':
			return l.twoCharSym(token.LessEqual)
		case '>':
			return l.twoCharSym(token.NotEqual)
		}
		return l.oneCharSym(token.Less)
	case '>':
		if l.peekChar() == '=' {
			return l.twoCharSym(token.GreaterEqual)
		}
		return l.oneCharSym(token.Greater)
	case '"':
		return l.readString()
	case '\'':
		return l.readDate()
	}

	if sym, ok := singleSyms[l.ch]; ok {
		return l.oneCharSym(sym)
	}
	if isLetter(l.ch) {
		return l.readIdentifier()
	}
	if isDigit(l.ch) {
		return l.readNumber()
	}

	tok := l.makeToken(token.Illegal, string(l.ch))
	l.readChar()
	return tok
}

var singleSyms = map[byte]token.Sym{
	'+': token.Plus,
	'-': token.Minus,
	'*': token.Star,
	'/': token.Slash,
	'%': token.Percent,
	'=': token.Assign,
	'!': token.Bang,
	'?': token.Question,
	'(': token.LParen,
	')': token.RParen,
	'[': token.LBracket,
	']': token.RBracket,
	',': token.Comma,
	'.': token.Dot,
	':': token.Colon,
	';': token.Semicolon,
}

func (l *Lexer) makeToken(k token.Kind, lit string) token.Token {
	return token.Token{
		Kind:    k,
		Literal: lit,
		Pos: token.Position{
			File:   l.file,
			Offset: l.pos,
			Line:   l.line,
			Column: l.column,
		},
	}
}

func (l *Lexer) oneCharSym(sym token.Sym) token.Token {
	tok := l.makeToken(token.Delimiter, string(l.ch))
	tok.Sym = sym
	l.readChar()
	return tok
}

func (l *Lexer) twoCharSym(sym token.Sym) token.Token {
	tok := l.makeToken(token.Delimiter, l.input[l.pos:l.pos+2])
	tok.Sym = sym
	l.readChar()
	l.readChar()
	return tok
}

func (l *Lexer) skipWhitespace() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\r' || l.ch == '\n' {
		l.readChar()
	}
}

func (l *Lexer) skipLineComment() {
	for l.ch != 0 && l.ch != '\n' {
		l.readChar()
	}
}

func (l *Lexer) readIdentifier() token.Token {
	tok := l.makeToken(token.Ident, "")
	start := l.pos
	for isLetter(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	tok.Literal = l.input[start:l.pos]
	if w, ok := token.LookupWord(tok.Literal); ok {
		tok.Kind = token.Keyword
		tok.Word = w
		return tok
	}
	if c, text, ok := token.LookupConst(tok.Literal); ok {
		tok.Kind = token.Constant
		tok.Const = c
		tok.Literal = text
	}
	return tok
}

func (l *Lexer) readNumber() token.Token {
	tok := l.makeToken(token.Constant, "")
	tok.Const = token.Number
	start := l.pos
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	tok.Literal = l.input[start:l.pos]
	return tok
}

// readString reads a double-quoted literal; a doubled quote stands for one quote.
func (l *Lexer) readString() token.Token {
	tok := l.makeToken(token.Constant, "")
	tok.Const = token.String
	var sb strings.Builder
	for {
		l.readChar()
		if l.ch == 0 {
			illegal := l.makeToken(token.Illegal, "unterminated string")
			return illegal
		}
		if l.ch == '"' {
			if l.peekChar() == '"' {
				sb.WriteByte('"')
				l.readChar()
				continue
			}
			l.readChar()
			break
		}
		sb.WriteByte(l.ch)
	}
	tok.Literal = sb.String()
	return tok
}

// readDate reads a quoted date literal such as '20240131' or '2024-01-31 10:15:00'.
// Separators are dropped; the literal keeps the digits only (8 or 14 of them).
func (l *Lexer) readDate() token.Token {
	tok := l.makeToken(token.Constant, "")
	tok.Const = token.Date
	var sb strings.Builder
	for {
		l.readChar()
		if l.ch == 0 || l.ch == '\n' {
			return l.makeToken(token.Illegal, "unterminated date")
		}
		if l.ch == '\'' {
			l.readChar()
			break
		}
		if isDigit(l.ch) {
			sb.WriteByte(l.ch)
		}
	}
	digits := sb.String()
	switch len(digits) {
	case 8:
		digits += "000000"
	case 14:
	default:
		tok.Kind = token.Illegal
		tok.Const = token.NoConst
		tok.Literal = "malformed date"
		return tok
	}
	tok.Literal = digits
	return tok
}

func isLetter(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_' || ch >= 0x80
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.pos = l.readPos
		l.ch = 0
		return
	}

	l.ch = l.input[l.readPos]
	l.pos = l.readPos
	l.readPos++

	if l.ch == '\n' {
		l.line++
		l.column = 0
	} else {
		l.column++
	}
}
