package compiler

import (
	"github.com/xirelogy/go-bscript/internal/bytecode"
	"github.com/xirelogy/go-bscript/internal/token"
)

// Operator priorities; unary not binds tighter than all of them.
const (
	prioOr = iota + 1
	prioAnd
	prioRelational
	prioAdditive
	prioMultiplicative
)

type binaryOp struct {
	prio  int
	op    bytecode.Opcode
	class opClass
}

var (
	symOperators = map[token.Sym]binaryOp{
		token.Assign:       {prioRelational, bytecode.OpEq, classEquality},
		token.NotEqual:     {prioRelational, bytecode.OpNe, classEquality},
		token.Less:         {prioRelational, bytecode.OpLt, classOrdering},
		token.LessEqual:    {prioRelational, bytecode.OpLe, classOrdering},
		token.Greater:      {prioRelational, bytecode.OpGt, classOrdering},
		token.GreaterEqual: {prioRelational, bytecode.OpGe, classOrdering},
		token.Plus:         {prioAdditive, bytecode.OpAdd, classArith},
		token.Minus:        {prioAdditive, bytecode.OpSub, classArith},
		token.Star:         {prioMultiplicative, bytecode.OpMul, classArith},
		token.Slash:        {prioMultiplicative, bytecode.OpDiv, classArith},
		token.Percent:      {prioMultiplicative, bytecode.OpMod, classArith},
	}
	wordOperators = map[token.Word]binaryOp{
		token.Or:  {prioOr, bytecode.OpOr, classLogical},
		token.And: {prioAnd, bytecode.OpAnd, classLogical},
	}
)

func binaryAt(tok token.Token) (binaryOp, bool) {
	switch tok.Kind {
	case token.Delimiter:
		op, ok := symOperators[tok.Sym]
		return op, ok
	case token.Keyword:
		op, ok := wordOperators[tok.Word]
		return op, ok
	}
	return binaryOp{}, false
}

// compileExpression compiles an expression and returns the operand holding
// its value.
func (c *compiler) compileExpression() (bytecode.Operand, error) {
	return c.compileBinary(prioOr)
}

// compileBinary is a precedence-climbing loop; operators of equal priority
// associate to the left.
func (c *compiler) compileBinary(minPrio int) (bytecode.Operand, error) {
	left, err := c.compileUnary()
	if err != nil {
		return left, err
	}
	for {
		bop, ok := binaryAt(c.cur.Peek())
		if !ok || bop.prio < minPrio {
			return left, nil
		}
		tok := c.cur.Next()
		right, err := c.compileBinary(bop.prio + 1)
		if err != nil {
			return right, err
		}
		delta, typ, err := binaryType(bop.op, bop.class, left.Type, right.Type)
		if err != nil {
			return left, typeError(err, tok.Pos)
		}
		dst := c.scope.NewTemp(typ)
		c.emit(bop.op.WithDelta(delta), dst, left, right)
		left = dst
	}
}

func (c *compiler) compileUnary() (bytecode.Operand, error) {
	tok := c.cur.Peek()
	switch {
	case tok.IsSym(token.Minus):
		c.cur.Next()
		if lit := c.cur.Peek(); lit.Kind == token.Constant && lit.Const == token.Number {
			c.cur.Next()
			return c.constant(token.Number.String(), "-"+lit.Literal), nil
		}
		v, err := c.compileUnary()
		if err != nil {
			return v, err
		}
		if _, err := CheckTypeDef(v.Type, "Number"); err != nil {
			return v, typeError(err, tok.Pos)
		}
		dst := c.scope.NewTemp("Number")
		c.emit(bytecode.OpNeg, dst, v)
		return dst, nil
	case tok.IsSym(token.Plus):
		c.cur.Next()
		v, err := c.compileUnary()
		if err != nil {
			return v, err
		}
		if _, err := CheckTypeDef(v.Type, "Number"); err != nil {
			return v, typeError(err, tok.Pos)
		}
		return v, nil
	case tok.Is(token.Not), tok.IsSym(token.Bang):
		c.cur.Next()
		v, err := c.compileUnary()
		if err != nil {
			return v, err
		}
		if _, err := CheckTypeDef(v.Type, "Boolean"); err != nil {
			return v, typeError(err, tok.Pos)
		}
		dst := c.scope.NewTemp("Boolean")
		c.emit(bytecode.OpNot, dst, v)
		return dst, nil
	}
	return c.compilePrimary()
}

func (c *compiler) compilePrimary() (bytecode.Operand, error) {
	tok := c.cur.Peek()
	switch {
	case tok.IsSym(token.LParen):
		c.cur.Next()
		v, err := c.compileExpression()
		if err != nil {
			return v, err
		}
		_, err = c.expectSym(token.RParen)
		return v, err
	case tok.IsSym(token.Question):
		return c.compileTernary()
	case tok.Is(token.New):
		return c.compileNew()
	case tok.Kind == token.Constant:
		c.cur.Next()
		return c.constant(tok.Const.String(), tok.Literal), nil
	case tok.Kind == token.Ident:
		r, err := c.compileChain(false)
		if err != nil {
			return bytecode.Operand{}, err
		}
		return c.load(r), nil
	}
	return bytecode.Operand{}, c.errorAt(UnexpectedToken, tok, tok.String())
}

// compileTernary compiles ?(cond, a, b) into a temporary written on either
// branch.
func (c *compiler) compileTernary() (bytecode.Operand, error) {
	c.cur.Next()
	if _, err := c.expectSym(token.LParen); err != nil {
		return bytecode.Operand{}, err
	}
	cond, err := c.condition()
	if err != nil {
		return cond, err
	}
	if _, err := c.expectSym(token.Comma); err != nil {
		return bytecode.Operand{}, err
	}
	dst := c.scope.NewTemp("")
	skip := c.emit(bytecode.OpJumpIfFalse, cond, bytecode.Operand{})
	a, err := c.compileExpression()
	if err != nil {
		return a, err
	}
	c.emit(bytecode.OpLet, dst, a)
	done := c.emit(bytecode.OpJump, bytecode.Operand{})
	c.patchHere(skip, bytecode.FieldB)
	if _, err := c.expectSym(token.Comma); err != nil {
		return bytecode.Operand{}, err
	}
	b, err := c.compileExpression()
	if err != nil {
		return b, err
	}
	c.emit(bytecode.OpLet, dst, b)
	c.patchHere(done, bytecode.FieldA)
	if _, err := c.expectSym(token.RParen); err != nil {
		return bytecode.Operand{}, err
	}
	if a.Type == b.Type {
		dst = dst.WithType(a.Type)
	}
	return dst, nil
}

// compileNew compiles New Type[(args)].
func (c *compiler) compileNew() (bytecode.Operand, error) {
	c.cur.Next()
	name, err := c.expectIdent()
	if err != nil {
		return bytecode.Operand{}, err
	}
	var args []bytecode.Operand
	if c.cur.Peek().IsSym(token.LParen) {
		if args, err = c.compileArgs(); err != nil {
			return bytecode.Operand{}, err
		}
	}
	typ := CanonicalType(name.Literal)
	dst := c.scope.NewTemp(typ)
	c.emit(bytecode.OpNew, dst, c.constant("String", typ), bytecode.Count(len(args)))
	c.emitArgs(args)
	return dst, nil
}

// compileArgs parses a parenthesised argument list. An empty position yields
// a Skip operand.
func (c *compiler) compileArgs() ([]bytecode.Operand, error) {
	if _, err := c.expectSym(token.LParen); err != nil {
		return nil, err
	}
	var args []bytecode.Operand
	if c.cur.Peek().IsSym(token.RParen) {
		c.cur.Next()
		return args, nil
	}
	for {
		tok := c.cur.Peek()
		if tok.IsSym(token.Comma) || tok.IsSym(token.RParen) {
			args = append(args, bytecode.Skip())
		} else {
			v, err := c.compileExpression()
			if err != nil {
				return nil, err
			}
			args = append(args, v)
		}
		tok = c.cur.Next()
		if tok.IsSym(token.RParen) {
			return args, nil
		}
		if !tok.IsSym(token.Comma) {
			return nil, c.errorAt(ExpectedDelimiter, tok, token.RParen.String())
		}
	}
}

func (c *compiler) emitArgs(args []bytecode.Operand) {
	for _, a := range args {
		c.emit(bytecode.OpArg, a)
	}
}

// foldable lists the instructions whose destination an assignment may take over.
func foldable(op bytecode.Opcode) bool {
	if base, _ := op.Split(); base.Typed() {
		return true
	}
	switch op {
	case bytecode.OpNeg, bytecode.OpNot, bytecode.OpGetIndex, bytecode.OpGetMember:
		return true
	}
	return false
}

// store assigns value to the variable dst. When value is a temporary just
// written by the last instruction, that instruction is retargeted instead.
func (c *compiler) store(dst, value bytecode.Operand) {
	if c.cfg.Peephole && value.Kind == bytecode.KindTemp && dst.IsVar() {
		if last := c.code.Last(); last != nil && foldable(last.Op) &&
			last.A.Kind == bytecode.KindTemp && last.A.Index == value.Index {
			last.A = dst
			return
		}
	}
	c.emit(bytecode.OpLet, dst, value)
}
