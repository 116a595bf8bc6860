package compiler

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/xirelogy/go-bscript/internal/bytecode"
	"github.com/xirelogy/go-bscript/internal/config"
	"github.com/xirelogy/go-bscript/internal/token"
)

// compiler holds the state of one build of a module: the token cursor, the
// code being emitted, the scope stack and the fix-ups still outstanding.
type compiler struct {
	module string
	file   string
	cfg    config.Compiler
	log    zerolog.Logger

	cur   *token.Cursor
	code  *bytecode.ByteCode
	root  *Scope
	scope *Scope
	guard *Guard

	deferred []*deferredCall
	warnings []Warning

	scopes  int
	depth   int
	excepts int
	pos     token.Position
}

func newCompiler(m *Module, log zerolog.Logger) *compiler {
	c := &compiler{
		module: m.Name(),
		file:   m.src.FileName(),
		cfg:    m.opts.Config,
		log:    log,
	}
	c.guard = &Guard{Soft: c.cfg.SoftDepth, OnSoft: func(depth int) {
		c.warn(RecursiveModuleChain, fmt.Sprintf("scope chain depth %d", depth))
	}}
	return c
}

func (c *compiler) warn(code ErrorCode, context string) {
	w := Warning{Code: code, Pos: c.pos, Context: context}
	c.warnings = append(c.warnings, w)
	c.log.Warn().Str("code", code.String()).Str("pos", c.pos.String()).Msg(context)
}

// compileModule compiles the module body, closes it with OpEnd and runs the
// fix-up passes.
func (c *compiler) compileModule() error {
	for {
		c.cur.SkipSeparators()
		if c.cur.AtEOF() {
			break
		}
		if err := c.compileStatement(); err != nil {
			return err
		}
	}
	c.pos = c.cur.Peek().Pos
	c.emit(bytecode.OpEnd)
	if err := c.root.ResolveLabels(c.code); err != nil {
		return err
	}
	return c.resolveDeferred()
}

// compileBlock compiles statements up to one of terms and consumes it.
func (c *compiler) compileBlock(terms ...token.Word) (token.Token, error) {
	c.depth++
	defer func() { c.depth-- }()
	for {
		c.cur.SkipSeparators()
		tok := c.cur.Peek()
		if tok.Kind == token.EOF {
			return tok, c.errorAt(ExpectedKeyword, tok, terms[0].String())
		}
		if tok.Kind == token.Keyword {
			for _, w := range terms {
				if tok.Word == w {
					c.cur.Next()
					return tok, nil
				}
			}
		}
		if err := c.compileStatement(); err != nil {
			return tok, err
		}
	}
}

func (c *compiler) emit(op bytecode.Opcode, operands ...bytecode.Operand) int {
	ins := bytecode.Instruction{
		Op:  op,
		Pos: bytecode.SourcePos{Module: c.module, File: c.file, Line: c.pos.Line},
	}
	for i, o := range operands {
		switch i {
		case 0:
			ins.A = o
		case 1:
			ins.B = o
		case 2:
			ins.C = o
		case 3:
			ins.D = o
		}
	}
	return c.code.Emit(ins)
}

// patchHere points the operand at site to the next address.
func (c *compiler) patchHere(addr int, field bytecode.Field) {
	c.code.Patch(bytecode.PatchSite{Addr: addr, Field: field}, bytecode.Addr(c.code.Len()))
}

func (c *compiler) constant(typ, text string) bytecode.Operand {
	return bytecode.Const(c.code.AddConst(typ, text), operandType(typ))
}

// operandType is the inferred type of a constant of pool type typ.
func operandType(typ string) string {
	switch typ {
	case token.Undefined.String(), token.Null.String():
		return ""
	}
	return typ
}

func (c *compiler) errorAt(code ErrorCode, tok token.Token, context string) error {
	return &Error{Code: code, Pos: tok.Pos, Context: context}
}

// typeError turns a TypeMismatch into a positioned compile error.
func typeError(err error, pos token.Position) error {
	var tm *TypeMismatch
	if errors.As(err, &tm) {
		return &Error{Code: tm.Code, Pos: pos, Context: fmt.Sprintf("expected %s, got %s", tm.Expected, tm.Got)}
	}
	return at(err, pos)
}

func (c *compiler) expectSym(s token.Sym) (token.Token, error) {
	tok := c.cur.Peek()
	if !tok.IsSym(s) {
		return tok, c.errorAt(ExpectedDelimiter, tok, s.String())
	}
	return c.cur.Next(), nil
}

func (c *compiler) expectWord(w token.Word) (token.Token, error) {
	tok := c.cur.Peek()
	if !tok.Is(w) {
		return tok, c.errorAt(ExpectedKeyword, tok, w.String())
	}
	return c.cur.Next(), nil
}

func (c *compiler) expectIdent() (token.Token, error) {
	tok := c.cur.Peek()
	if tok.Kind != token.Ident {
		return tok, c.errorAt(ExpectedIdentifier, tok, tok.String())
	}
	return c.cur.Next(), nil
}

// blockEnd reports whether tok closes a block or a block section.
func blockEnd(tok token.Token) bool {
	if tok.Kind != token.Keyword {
		return false
	}
	switch tok.Word {
	case token.EndIf, token.Else, token.ElseIf, token.EndDo,
		token.EndProcedure, token.EndFunction, token.Except, token.EndTry:
		return true
	}
	return false
}

// endStatement consumes the separator after a statement. It may be omitted
// before the end of the input or of a block.
func (c *compiler) endStatement() error {
	tok := c.cur.Peek()
	switch {
	case tok.IsSym(token.Semicolon):
		c.cur.Next()
		return nil
	case tok.Kind == token.EOF, blockEnd(tok):
		return nil
	}
	return c.errorAt(ExpectedDelimiter, tok, token.Semicolon.String())
}

// atStatementEnd reports whether no expression follows.
func (c *compiler) atStatementEnd() bool {
	tok := c.cur.Peek()
	return tok.IsSym(token.Semicolon) || tok.Kind == token.EOF || blockEnd(tok)
}
