package compiler

import (
	"github.com/xirelogy/go-bscript/internal/bytecode"
	"github.com/xirelogy/go-bscript/internal/token"
)

// deferredCall is a call to a function not yet declared where it was
// compiled. The call site holds a placeholder OpJump; the call itself is
// appended after OpEnd once every function is known.
type deferredCall struct {
	name      string
	scope     *Scope
	args      []bytecode.Operand
	result    bytecode.Operand
	site      int
	pos       token.Position
	needValue bool
}

// compileCall compiles name(args). In a statement whose chain ends with this
// call the result is discarded and procedures are allowed.
func (c *compiler) compileCall(name token.Token, statement bool) (ref, error) {
	args, err := c.compileArgs()
	if err != nil {
		return ref{}, err
	}
	needValue := !statement || c.chainContinues()
	var result bytecode.Operand
	if needValue {
		result = c.scope.NewTemp("")
	}
	r := ref{kind: refValue, op: result, call: true, name: name.Literal, pos: name.Pos}

	fn, hops, err := c.scope.FindFunction(name.Literal)
	if err != nil {
		if CodeOf(err) != UnknownFunction {
			return r, at(err, name.Pos)
		}
		c.deferred = append(c.deferred, &deferredCall{
			name:      name.Literal,
			scope:     c.scope,
			args:      args,
			result:    result,
			site:      c.emit(bytecode.OpJump, bytecode.Operand{}),
			pos:       name.Pos,
			needValue: needValue,
		})
		return r, nil
	}
	return r, c.emitCall(fn, hops, args, result, needValue, name.Pos)
}

// emitCall checks the arguments against fn and emits the call followed by one
// OpArg per parameter. Omitted trailing parameters are passed as their
// default constants.
func (c *compiler) emitCall(fn *Function, hops int, args []bytecode.Operand, result bytecode.Operand, needValue bool, pos token.Position) error {
	if needValue && fn.Procedure {
		return &Error{Code: ProcedureAsFunction, Pos: pos, Context: fn.Display}
	}
	if !fn.Variadic {
		if len(args) > len(fn.Params) {
			return &Error{Code: TooManyArguments, Pos: pos, Context: fn.Display}
		}
		for i := len(args); i < len(fn.Params); i++ {
			def := fn.Params[i].Default
			if def == nil {
				return &Error{Code: TooFewArguments, Pos: pos, Context: fn.Display}
			}
			args = append(args, c.constant(def.Type, def.Text))
		}
		for i, a := range args {
			if a.Kind == bytecode.KindSkip {
				continue
			}
			if _, err := CheckTypeDef(a.Type, fn.Params[i].Type); err != nil {
				return typeError(err, pos)
			}
		}
	}

	if fn.Context {
		owner, err := c.contextOwner(fn.ContextOwner, pos)
		if err != nil {
			return err
		}
		c.emit(bytecode.OpCallContext, result, owner, c.constant("String", fn.Display), bytecode.Count(len(args)))
	} else {
		c.emit(bytecode.OpCall, result, bytecode.Addr(fn.Entry), bytecode.Count(len(args)), bytecode.Count(hops))
	}
	c.emitArgs(args)
	return nil
}

// resolveDeferred appends the postponed calls after the module body. Each
// placeholder jumps to its call sequence, which jumps back past the
// placeholder.
func (c *compiler) resolveDeferred() error {
	defer func(s *Scope) { c.scope = s }(c.scope)
	for _, d := range c.deferred {
		c.scope = d.scope
		c.pos = d.pos
		fn, hops, err := d.scope.FindFunction(d.name)
		if err != nil {
			return at(err, d.pos)
		}
		start := c.code.Len()
		if err := c.emitCall(fn, hops, d.args, d.result, d.needValue, d.pos); err != nil {
			return err
		}
		c.emit(bytecode.OpJump, bytecode.Addr(d.site+1))
		c.code.Patch(bytecode.PatchSite{Addr: d.site, Field: bytecode.FieldA}, bytecode.Addr(start))
	}
	c.deferred = nil
	return nil
}
