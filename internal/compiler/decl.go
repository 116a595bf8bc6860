package compiler

import (
	"strconv"

	"github.com/xirelogy/go-bscript/internal/bytecode"
	"github.com/xirelogy/go-bscript/internal/token"
)

// optionalType consumes a type name when two identifiers follow each other.
func (c *compiler) optionalType() string {
	if c.cur.Peek().Kind == token.Ident && c.cur.PeekNext().Kind == token.Ident {
		return CanonicalType(c.cur.Next().Literal)
	}
	return ""
}

// compileDeclaration compiles a comma separated list of
// [Type] name[[size]] [Export] [= expr] clauses.
func (c *compiler) compileDeclaration() error {
	for {
		if err := c.compileDeclarator(); err != nil {
			return err
		}
		if !c.cur.Peek().IsSym(token.Comma) {
			return nil
		}
		c.cur.Next()
	}
}

func (c *compiler) compileDeclarator() error {
	typ := c.optionalType()
	name, err := c.expectIdent()
	if err != nil {
		return err
	}
	c.pos = name.Pos
	if c.scope.visibleVariable(name.Literal) {
		return c.errorAt(DuplicateIdentifier, name, name.Literal)
	}

	size := -1
	if c.cur.Peek().IsSym(token.LBracket) {
		c.cur.Next()
		if size, err = c.arraySize(); err != nil {
			return err
		}
		if _, err := c.expectSym(token.RBracket); err != nil {
			return err
		}
	}

	export := false
	if tok := c.cur.Peek(); tok.Is(token.Export) {
		if c.depth != 0 || c.scope != c.root {
			return c.errorAt(ExportNotAllowed, tok, name.Literal)
		}
		c.cur.Next()
		export = true
	}

	v, err := c.scope.Declare(name.Literal, typ, export, false, false)
	if err != nil {
		return at(err, name.Pos)
	}
	if size >= 0 {
		c.emit(bytecode.OpSetArraySize, v, bytecode.Count(size))
	}
	if c.cur.Peek().IsSym(token.Assign) {
		c.cur.Next()
		pos := c.cur.Peek().Pos
		init, err := c.compileExpression()
		if err != nil {
			return err
		}
		if _, err := CheckTypeDef(init.Type, typ); err != nil {
			return typeError(err, pos)
		}
		c.store(v, init)
	}
	if typ != "" {
		c.emit(bytecode.OpCheckType, v, c.constant("String", typ))
	}
	return nil
}

func (c *compiler) arraySize() (int, error) {
	tok := c.cur.Next()
	if tok.Kind != token.Constant || tok.Const != token.Number {
		return 0, c.errorAt(ExpectedConstant, tok, tok.String())
	}
	n, err := strconv.Atoi(tok.Literal)
	if err != nil || n < 0 {
		return 0, c.errorAt(MalformedConstant, tok, tok.Literal)
	}
	return n, nil
}

// compileFunction compiles a Procedure or Function declaration. The body is
// framed by OpFunc and OpEndFunc; OpFunc is patched with the local count and
// the address after the body once the body is known. The function becomes
// callable by name only after its body, so calls to itself are deferred.
func (c *compiler) compileFunction() error {
	head := c.cur.Next()
	if c.depth != 0 {
		return c.errorAt(FunctionNotAllowed, head, head.String())
	}
	procedure := head.Is(token.Procedure)
	name, err := c.expectIdent()
	if err != nil {
		return err
	}
	c.pos = name.Pos
	if _, _, err := c.scope.FindFunction(name.Literal); err == nil {
		return c.errorAt(DuplicateIdentifier, name, name.Literal)
	} else if CodeOf(err) != UnknownFunction {
		return at(err, name.Pos)
	}

	ret, closer := ReturnFunction, token.EndFunction
	if procedure {
		ret, closer = ReturnProcedure, token.EndProcedure
	}
	c.scopes++
	fs := NewScope(c.scopes, c.root, ret, c.cfg.FunctionLocalsVisible)
	fn := &Function{Display: name.Literal, Procedure: procedure, ScopeID: fs.ID}

	outer := c.scope
	c.scope = fs
	defer func() { c.scope = outer }()

	params, err := c.compileParams(fs)
	if err != nil {
		return err
	}
	fn.Params = params
	if tok := c.cur.Peek(); tok.Is(token.Export) {
		c.cur.Next()
		fn.Export = true
	}

	c.pos = name.Pos
	entry := c.emit(bytecode.OpFunc, bytecode.Operand{}, bytecode.Count(fs.ID), bytecode.Operand{}, bytecode.Count(len(params)))
	for i, p := range params {
		slot := bytecode.Slot(p.Slot).WithType(p.Type)
		byVal := bytecode.Count(0)
		if p.Val {
			byVal = bytecode.Count(1)
		}
		if p.Default != nil {
			c.emit(bytecode.OpParamDefault, slot, bytecode.Count(i), c.constant(p.Default.Type, p.Default.Text), byVal)
		} else {
			c.emit(bytecode.OpParam, slot, bytecode.Count(i), byVal)
		}
		if p.Type != "" {
			c.emit(bytecode.OpCheckType, slot, c.constant("String", p.Type))
		}
	}

	if _, err := c.compileBlock(closer); err != nil {
		return err
	}
	c.pos = c.cur.Peek().Pos
	exit := c.emit(bytecode.OpEndFunc)
	if err := fs.ResolveLabels(c.code); err != nil {
		return err
	}
	c.code.Patch(bytecode.PatchSite{Addr: entry, Field: bytecode.FieldA}, bytecode.Count(fs.Locals()))
	c.code.Patch(bytecode.PatchSite{Addr: entry, Field: bytecode.FieldC}, bytecode.Addr(exit+1))

	fn.Entry = entry
	fn.Exit = exit
	fn.Locals = fs.Locals()
	c.log.Debug().Str("function", fn.Display).Int("entry", entry).Int("locals", fn.Locals).Msg("compiled function")
	return at(c.root.AddFunction(fn), name.Pos)
}

// compileParams parses ( [Val] [Type] name [= constant], ... ) and declares
// each parameter in fs.
func (c *compiler) compileParams(fs *Scope) ([]Param, error) {
	if _, err := c.expectSym(token.LParen); err != nil {
		return nil, err
	}
	var params []Param
	if c.cur.Peek().IsSym(token.RParen) {
		c.cur.Next()
		return params, nil
	}
	for {
		var p Param
		if c.cur.Peek().Is(token.Val) {
			c.cur.Next()
			p.Val = true
		}
		p.Type = c.optionalType()
		name, err := c.expectIdent()
		if err != nil {
			return nil, err
		}
		p.Display = name.Literal
		p.Name = Key(name.Literal)
		if c.cur.Peek().IsSym(token.Assign) {
			c.cur.Next()
			def, err := c.defaultValue()
			if err != nil {
				return nil, err
			}
			if _, err := CheckTypeDef(operandType(def.Type), p.Type); err != nil {
				return nil, typeError(err, name.Pos)
			}
			p.Default = def
		}
		op, err := fs.Declare(name.Literal, p.Type, false, false, false)
		if err != nil {
			return nil, at(err, name.Pos)
		}
		p.Slot = op.Index
		params = append(params, p)

		tok := c.cur.Next()
		if tok.IsSym(token.RParen) {
			return params, nil
		}
		if !tok.IsSym(token.Comma) {
			return nil, c.errorAt(ExpectedDelimiter, tok, token.RParen.String())
		}
	}
}

// defaultValue parses a literal parameter default, allowing a leading minus
// on numbers.
func (c *compiler) defaultValue() (*bytecode.Constant, error) {
	neg := false
	if c.cur.Peek().IsSym(token.Minus) {
		c.cur.Next()
		neg = true
	}
	tok := c.cur.Next()
	if tok.Kind != token.Constant || (neg && tok.Const != token.Number) {
		return nil, c.errorAt(ExpectedConstant, tok, tok.String())
	}
	text := tok.Literal
	if neg {
		text = "-" + text
	}
	return &bytecode.Constant{Type: tok.Const.String(), Text: text}, nil
}
