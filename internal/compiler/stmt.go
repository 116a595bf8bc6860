package compiler

import (
	"strconv"

	"github.com/xirelogy/go-bscript/internal/bytecode"
	"github.com/xirelogy/go-bscript/internal/token"
)

func (c *compiler) compileStatement() error {
	tok := c.cur.Peek()
	c.pos = tok.Pos

	switch tok.Kind {
	case token.Ident:
		next := c.cur.PeekNext()
		switch {
		case next.IsSym(token.Colon):
			c.cur.Next()
			c.cur.Next()
			return at(c.scope.DefineLabel(tok.Literal, c.code.Len()-1), tok.Pos)
		case next.Kind == token.Ident:
			if err := c.compileDeclaration(); err != nil {
				return err
			}
		default:
			if err := c.compileChainStatement(); err != nil {
				return err
			}
		}
		return c.endStatement()
	case token.Keyword:
	default:
		return c.errorAt(UnexpectedToken, tok, tok.String())
	}

	var err error
	switch tok.Word {
	case token.Procedure, token.Function:
		return c.compileFunction()
	case token.Var:
		c.cur.Next()
		err = c.compileDeclaration()
	case token.If:
		err = c.compileIf()
	case token.While:
		err = c.compileWhile()
	case token.For:
		if c.cur.PeekNext().Is(token.Each) {
			err = c.compileForEach()
		} else {
			err = c.compileFor()
		}
	case token.Try:
		err = c.compileTry()
	case token.Raise:
		err = c.compileRaise()
	case token.Return:
		err = c.compileReturn()
	case token.Continue, token.Break:
		err = c.compileLoopJump()
	case token.Goto:
		err = c.compileGoto()
	case token.New:
		_, err = c.compileExpression()
	default:
		return c.errorAt(UnexpectedToken, tok, tok.String())
	}
	if err != nil {
		return err
	}
	return c.endStatement()
}

// condition compiles a Boolean expression.
func (c *compiler) condition() (bytecode.Operand, error) {
	pos := c.cur.Peek().Pos
	cond, err := c.compileExpression()
	if err != nil {
		return cond, err
	}
	if _, err := CheckTypeDef(cond.Type, "Boolean"); err != nil {
		return cond, typeError(err, pos)
	}
	return cond, nil
}

func (c *compiler) compileIf() error {
	c.cur.Next()
	var ends []int
	for {
		cond, err := c.condition()
		if err != nil {
			return err
		}
		if _, err := c.expectWord(token.Then); err != nil {
			return err
		}
		skip := c.emit(bytecode.OpJumpIfFalse, cond, bytecode.Operand{})
		term, err := c.compileBlock(token.ElseIf, token.Else, token.EndIf)
		if err != nil {
			return err
		}
		if !term.Is(token.EndIf) {
			ends = append(ends, c.emit(bytecode.OpJump, bytecode.Operand{}))
		}
		c.patchHere(skip, bytecode.FieldB)

		if term.Is(token.ElseIf) {
			c.pos = term.Pos
			continue
		}
		if term.Is(token.Else) {
			if _, err := c.compileBlock(token.EndIf); err != nil {
				return err
			}
		}
		break
	}
	for _, addr := range ends {
		c.patchHere(addr, bytecode.FieldA)
	}
	return nil
}

func (c *compiler) compileWhile() error {
	c.cur.Next()
	top := c.code.Len()
	cond, err := c.condition()
	if err != nil {
		return err
	}
	if _, err := c.expectWord(token.Do); err != nil {
		return err
	}
	exit := c.emit(bytecode.OpJumpIfFalse, cond, bytecode.Operand{})
	c.scope.PushLoop()
	if _, err := c.compileBlock(token.EndDo); err != nil {
		return err
	}
	c.emit(bytecode.OpJump, bytecode.Addr(top))
	c.patchHere(exit, bytecode.FieldB)
	c.scope.PopLoop(c.code, top, c.code.Len())
	return nil
}

// loopVariable resolves the control variable of a For loop for writing.
func (c *compiler) loopVariable() (bytecode.Operand, token.Token, error) {
	tok, err := c.expectIdent()
	if err != nil {
		return bytecode.Operand{}, tok, err
	}
	r, err := c.scope.FindVariable(tok.Literal, ResolveOptions{SearchParents: true})
	if err != nil {
		return bytecode.Operand{}, tok, at(err, tok.Pos)
	}
	if r.Var.Context {
		return bytecode.Operand{}, tok, c.errorAt(NotAssignable, tok, tok.Literal)
	}
	return r.Operand(), tok, nil
}

func (c *compiler) numeric() (bytecode.Operand, error) {
	pos := c.cur.Peek().Pos
	v, err := c.compileExpression()
	if err != nil {
		return v, err
	}
	if _, err := CheckTypeDef(v.Type, "Number"); err != nil {
		return v, typeError(err, pos)
	}
	return v, nil
}

// loopTemp names a hidden loop temporary after the loop variable and the
// nesting depth, so nested loops over one variable keep separate state.
func (c *compiler) loopTemp(prefix string, v token.Token) string {
	return prefix + Key(v.Literal) + "." + strconv.Itoa(c.scope.LoopDepth())
}

// compileFor compiles For v = a To b Do ... EndDo. The bound is kept in a
// hidden temporary named after the loop variable and Continue jumps to the
// increment.
func (c *compiler) compileFor() error {
	c.cur.Next()
	v, vtok, err := c.loopVariable()
	if err != nil {
		return err
	}
	if _, err := c.expectSym(token.Assign); err != nil {
		return err
	}
	if _, err := CheckTypeDef("Number", v.Type); err != nil {
		return typeError(err, vtok.Pos)
	}
	start, err := c.numeric()
	if err != nil {
		return err
	}
	c.store(v, start)
	if _, err := c.expectWord(token.To); err != nil {
		return err
	}
	limit, err := c.numeric()
	if err != nil {
		return err
	}
	bound := c.scope.NamedTemp(c.loopTemp("@bound.", vtok), "Number")
	c.emit(bytecode.OpLet, bound, limit)
	if _, err := c.expectWord(token.Do); err != nil {
		return err
	}

	test := c.emit(bytecode.OpForTest, v, bound, bytecode.Operand{})
	c.scope.PushLoop()
	if _, err := c.compileBlock(token.EndDo); err != nil {
		return err
	}
	inc := c.emit(bytecode.OpInc, v)
	c.emit(bytecode.OpJump, bytecode.Addr(test))
	c.patchHere(test, bytecode.FieldC)
	c.scope.PopLoop(c.code, inc, c.code.Len())
	return nil
}

func (c *compiler) compileForEach() error {
	c.cur.Next()
	c.cur.Next()
	v, vtok, err := c.loopVariable()
	if err != nil {
		return err
	}
	if _, err := c.expectWord(token.In); err != nil {
		return err
	}
	coll, err := c.compileExpression()
	if err != nil {
		return err
	}
	if _, err := c.expectWord(token.Do); err != nil {
		return err
	}
	iter := c.scope.NamedTemp(c.loopTemp("@iter.", vtok), "")
	c.emit(bytecode.OpIterInit, iter, coll)
	next := c.emit(bytecode.OpIterNext, v, iter, bytecode.Operand{})
	c.scope.PushLoop()
	if _, err := c.compileBlock(token.EndDo); err != nil {
		return err
	}
	c.emit(bytecode.OpJump, bytecode.Addr(next))
	c.patchHere(next, bytecode.FieldC)
	c.scope.PopLoop(c.code, next, c.code.Len())
	return nil
}

// compileTry emits OpTry pointing at the handler and OpEndTry pointing past it.
func (c *compiler) compileTry() error {
	c.cur.Next()
	try := c.emit(bytecode.OpTry, bytecode.Operand{})
	if _, err := c.compileBlock(token.Except); err != nil {
		return err
	}
	endTry := c.emit(bytecode.OpEndTry, bytecode.Operand{})
	c.patchHere(try, bytecode.FieldA)

	c.excepts++
	_, err := c.compileBlock(token.EndTry)
	c.excepts--
	if err != nil {
		return err
	}
	c.patchHere(endTry, bytecode.FieldA)
	return nil
}

// compileRaise compiles Raise [expr]. A bare Raise re-raises and is only
// valid inside an Except handler.
func (c *compiler) compileRaise() error {
	tok := c.cur.Next()
	if c.atStatementEnd() {
		if c.excepts == 0 {
			return c.errorAt(RaiseOutsideExcept, tok, "")
		}
		c.emit(bytecode.OpRaise)
		return nil
	}
	msg, err := c.compileExpression()
	if err != nil {
		return err
	}
	c.emit(bytecode.OpRaise, msg)
	return nil
}

func (c *compiler) compileReturn() error {
	tok := c.cur.Next()
	kind := c.scope.Return
	if kind == ReturnNone {
		return c.errorAt(ReturnOutsideFunction, tok, "")
	}
	if c.atStatementEnd() {
		if kind == ReturnFunction {
			return c.errorAt(ReturnWithoutValue, tok, "")
		}
		c.emit(bytecode.OpReturn)
		return nil
	}
	if kind == ReturnProcedure {
		return c.errorAt(ReturnValueInProcedure, tok, "")
	}
	v, err := c.compileExpression()
	if err != nil {
		return err
	}
	c.emit(bytecode.OpReturn, v)
	return nil
}

func (c *compiler) compileLoopJump() error {
	tok := c.cur.Next()
	site := bytecode.PatchSite{Addr: c.emit(bytecode.OpJump, bytecode.Operand{}), Field: bytecode.FieldA}
	var err error
	if tok.Is(token.Continue) {
		err = c.scope.AddContinue(site)
	} else {
		err = c.scope.AddBreak(site)
	}
	return at(err, tok.Pos)
}

func (c *compiler) compileGoto() error {
	c.cur.Next()
	label, err := c.expectIdent()
	if err != nil {
		return err
	}
	addr := c.emit(bytecode.OpJump, bytecode.Operand{})
	c.scope.ReferenceLabel(label.Literal, bytecode.PatchSite{Addr: addr, Field: bytecode.FieldA}, label.Pos)
	return nil
}
