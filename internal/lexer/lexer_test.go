package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xirelogy/go-bscript/internal/token"
)

func TestLexerBasicTokens(t *testing.T) {
	input := `
Procedure Add(Val a, b = 5) Export
  c = a + b; // sum
  If c >= 10 And a <> b Then
    Return;
  EndIf;
EndProcedure
`

	type want struct {
		kind token.Kind
		lit  string
	}
	tests := []want{
		{token.Keyword, "Procedure"},
		{token.Ident, "Add"},
		{token.Delimiter, "("},
		{token.Keyword, "Val"},
		{token.Ident, "a"},
		{token.Delimiter, ","},
		{token.Ident, "b"},
		{token.Delimiter, "="},
		{token.Constant, "5"},
		{token.Delimiter, ")"},
		{token.Keyword, "Export"},
		{token.Ident, "c"},
		{token.Delimiter, "="},
		{token.Ident, "a"},
		{token.Delimiter, "+"},
		{token.Ident, "b"},
		{token.Delimiter, ";"},
		{token.Keyword, "If"},
		{token.Ident, "c"},
		{token.Delimiter, ">="},
		{token.Constant, "10"},
		{token.Keyword, "And"},
		{token.Ident, "a"},
		{token.Delimiter, "<>"},
		{token.Ident, "b"},
		{token.Keyword, "Then"},
		{token.Keyword, "Return"},
		{token.Delimiter, ";"},
		{token.Keyword, "EndIf"},
		{token.Delimiter, ";"},
		{token.Keyword, "EndProcedure"},
		{token.EOF, ""},
	}

	l := New(input, "test.bsl")
	for i, expected := range tests {
		tok := l.NextToken()
		require.Equalf(t, expected.kind, tok.Kind, "token %d (%q)", i, tok.Literal)
		require.Equalf(t, expected.lit, tok.Literal, "token %d", i)
	}
}

func TestLexerKeywordsIgnoreCase(t *testing.T) {
	toks := Tokenize("endif ENDIF EndIf", "")
	require.Len(t, toks, 4)
	for _, tok := range toks[:3] {
		assert.True(t, tok.Is(token.EndIf))
	}
}

func TestLexerConstants(t *testing.T) {
	toks := Tokenize(`12.5 "say ""hi""" '20240131' '2024-01-31 10:15:00' True undefined NULL`, "")
	require.Len(t, toks, 8)

	assert.Equal(t, token.Number, toks[0].Const)
	assert.Equal(t, "12.5", toks[0].Literal)

	assert.Equal(t, token.String, toks[1].Const)
	assert.Equal(t, `say "hi"`, toks[1].Literal)

	assert.Equal(t, token.Date, toks[2].Const)
	assert.Equal(t, "20240131000000", toks[2].Literal)
	assert.Equal(t, "20240131101500", toks[3].Literal)

	assert.Equal(t, token.Boolean, toks[4].Const)
	assert.Equal(t, "true", toks[4].Literal)
	assert.Equal(t, token.Undefined, toks[5].Const)
	assert.Equal(t, token.Null, toks[6].Const)
}

func TestLexerIllegal(t *testing.T) {
	toks := Tokenize(`x = "open`, "")
	assert.Equal(t, token.Illegal, toks[2].Kind)

	toks = Tokenize(`'2024'`, "")
	assert.Equal(t, token.Illegal, toks[0].Kind)
	assert.Equal(t, "malformed date", toks[0].Literal)

	toks = Tokenize(`a # b`, "")
	assert.Equal(t, token.Illegal, toks[1].Kind)
}

func TestLexerPositions(t *testing.T) {
	toks := Tokenize("a\n  b", "m.bsl")
	require.Len(t, toks, 3)
	assert.Equal(t, token.Position{File: "m.bsl", Offset: 0, Line: 1, Column: 1}, toks[0].Pos)
	assert.Equal(t, token.Position{File: "m.bsl", Offset: 4, Line: 2, Column: 3}, toks[1].Pos)
}
