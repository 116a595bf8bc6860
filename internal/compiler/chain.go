package compiler

import (
	"fmt"

	"github.com/xirelogy/go-bscript/internal/bytecode"
	"github.com/xirelogy/go-bscript/internal/token"
)

type refKind uint8

const (
	refVar     refKind = iota // op is a variable
	refContext                // attribute key of the owner object obj
	refIndex                  // obj[key]
	refMember                 // obj.key
	refValue                  // op holds a computed value
)

// ref is the last link of an identifier chain, not yet read or written.
type ref struct {
	kind refKind
	op   bytecode.Operand
	obj  bytecode.Operand
	key  bytecode.Operand
	name string
	call bool
	pos  token.Position
}

// chainContinues reports whether another link follows.
func (c *compiler) chainContinues() bool {
	tok := c.cur.Peek()
	return tok.IsSym(token.Dot) || tok.IsSym(token.LBracket)
}

// compileChain compiles name { .member | [index] | (args) }. Every link but
// the last is read; the caller decides whether the last is read or written.
// In a statement the first name is written, not read, when '=' follows it.
func (c *compiler) compileChain(statement bool) (ref, error) {
	name := c.cur.Next()
	var (
		r   ref
		err error
	)
	if c.cur.Peek().IsSym(token.LParen) {
		r, err = c.compileCall(name, statement)
	} else {
		write := statement && c.cur.Peek().IsSym(token.Assign)
		r, err = c.variableRef(name, write)
	}
	if err != nil {
		return r, err
	}

	for {
		tok := c.cur.Peek()
		switch {
		case tok.IsSym(token.Dot):
			c.cur.Next()
			obj := c.load(r)
			member, err := c.expectIdent()
			if err != nil {
				return r, err
			}
			key := c.constant("String", member.Literal)
			if !c.cur.Peek().IsSym(token.LParen) {
				r = ref{kind: refMember, obj: obj, key: key, name: member.Literal, pos: member.Pos}
				continue
			}
			args, err := c.compileArgs()
			if err != nil {
				return r, err
			}
			result := bytecode.Operand{}
			if !statement || c.chainContinues() {
				result = c.scope.NewTemp("")
			}
			c.emit(bytecode.OpCallMethod, result, obj, key, bytecode.Count(len(args)))
			c.emitArgs(args)
			r = ref{kind: refValue, op: result, call: true, name: member.Literal, pos: member.Pos}
		case tok.IsSym(token.LBracket):
			c.cur.Next()
			obj := c.load(r)
			idx, err := c.compileExpression()
			if err != nil {
				return r, err
			}
			if _, err := c.expectSym(token.RBracket); err != nil {
				return r, err
			}
			r = ref{kind: refIndex, obj: obj, key: idx, pos: tok.Pos}
		default:
			return r, nil
		}
	}
}

// variableRef resolves a plain name. Reading an undeclared name declares it
// unless reads are strict.
func (c *compiler) variableRef(name token.Token, write bool) (ref, error) {
	opts := ResolveOptions{SearchParents: true, MustExist: !write && c.cfg.StrictReads}
	res, err := c.scope.FindVariable(name.Literal, opts)
	if err != nil {
		return ref{}, at(err, name.Pos)
	}
	if res.Implicit && !write {
		c.warn(VariableNotFound, fmt.Sprintf("%s read before declaration, declared implicitly", name.Literal))
	}
	if res.Var.Context {
		owner, err := c.contextOwner(res.Var.ContextOwner, name.Pos)
		if err != nil {
			return ref{}, err
		}
		return ref{
			kind: refContext,
			obj:  owner,
			key:  c.constant("String", res.Var.Display),
			name: name.Literal,
			pos:  name.Pos,
		}, nil
	}
	return ref{kind: refVar, op: res.Operand(), name: name.Literal, pos: name.Pos}, nil
}

// contextOwner resolves the host object behind a context name.
func (c *compiler) contextOwner(owner string, pos token.Position) (bytecode.Operand, error) {
	op, err := c.scope.Resolve(owner, ResolveOptions{SearchParents: true, MustExist: true})
	if err != nil {
		return op, at(err, pos)
	}
	return op, nil
}

// load makes the value of r available as an operand.
func (c *compiler) load(r ref) bytecode.Operand {
	switch r.kind {
	case refContext, refMember:
		dst := c.scope.NewTemp("")
		c.emit(bytecode.OpGetMember, dst, r.obj, r.key)
		return dst
	case refIndex:
		dst := c.scope.NewTemp("")
		c.emit(bytecode.OpGetIndex, dst, r.obj, r.key)
		return dst
	}
	return r.op
}

// assign writes value through r.
func (c *compiler) assign(r ref, value bytecode.Operand, pos token.Position) error {
	switch r.kind {
	case refVar:
		if _, err := CheckTypeDef(value.Type, r.op.Type); err != nil {
			return typeError(err, pos)
		}
		c.store(r.op, value)
	case refContext, refMember:
		c.emit(bytecode.OpSetMember, r.obj, r.key, value)
	case refIndex:
		c.emit(bytecode.OpSetIndex, r.obj, r.key, value)
	default:
		return &Error{Code: NotAssignable, Pos: r.pos, Context: r.name}
	}
	return nil
}

// compileChainStatement compiles an assignment or a call statement.
func (c *compiler) compileChainStatement() error {
	first := c.cur.Peek()
	r, err := c.compileChain(true)
	if err != nil {
		return err
	}
	tok := c.cur.Peek()
	if tok.IsSym(token.Assign) {
		c.cur.Next()
		pos := c.cur.Peek().Pos
		value, err := c.compileExpression()
		if err != nil {
			return err
		}
		return c.assign(r, value, pos)
	}
	if r.call {
		return nil
	}
	return c.errorAt(NotAStatement, first, first.Literal)
}
