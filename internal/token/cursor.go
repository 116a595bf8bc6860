package token

// Cursor walks a pre-lexed token sequence. The sequence always ends with an EOF
// token, so peeking past the end keeps returning it.
type Cursor struct {
	toks []Token
	pos  int
}

// NewCursor wraps toks, appending an EOF token when the slice lacks one.
func NewCursor(toks []Token) *Cursor {
	if len(toks) == 0 || toks[len(toks)-1].Kind != EOF {
		var pos Position
		if len(toks) > 0 {
			pos = toks[len(toks)-1].Pos
		}
		toks = append(toks, Token{Kind: EOF, Pos: pos})
	}
	return &Cursor{toks: toks}
}

// Peek returns the current token without consuming it.
func (c *Cursor) Peek() Token {
	return c.at(c.pos)
}

// PeekNext returns the token after the current one.
func (c *Cursor) PeekNext() Token {
	return c.at(c.pos + 1)
}

// Next consumes and returns the current token.
func (c *Cursor) Next() Token {
	tok := c.at(c.pos)
	if c.pos < len(c.toks)-1 {
		c.pos++
	}
	return tok
}

// SkipSeparators consumes any run of statement separators.
func (c *Cursor) SkipSeparators() {
	for c.Peek().IsSym(Semicolon) {
		c.Next()
	}
}

// AtEOF reports whether every token has been consumed.
func (c *Cursor) AtEOF() bool {
	return c.Peek().Kind == EOF
}

func (c *Cursor) at(i int) Token {
	if i >= len(c.toks) {
		return c.toks[len(c.toks)-1]
	}
	return c.toks[i]
}
