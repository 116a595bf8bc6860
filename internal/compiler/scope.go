package compiler

import (
	"fmt"
	"strings"

	"github.com/xirelogy/go-bscript/internal/bytecode"
	"github.com/xirelogy/go-bscript/internal/token"
)

// ReturnKind tells what a Return statement may do inside a scope.
type ReturnKind uint8

const (
	ReturnNone ReturnKind = iota
	ReturnFunction
	ReturnProcedure
)

// DefaultSoftDepth is used by scopes without a Guard.
const DefaultSoftDepth = 64

// Variable is a named slot in a scope.
type Variable struct {
	Name    string
	Display string
	Type    string
	Export  bool
	Temp    bool
	// Extern marks a slot the host fills before execution.
	Extern bool
	// Context marks a name backed by an attribute of the ContextOwner object;
	// it has no slot of its own.
	Context      bool
	ContextOwner string
	Slot         int
}

// Param is a declared function parameter.
type Param struct {
	Name    string
	Display string
	Type    string
	Val     bool
	Default *bytecode.Constant
	Slot    int
}

// Function is a procedure or function visible by name.
type Function struct {
	Name      string
	Display   string
	Params    []Param
	Export    bool
	Procedure bool
	// Context marks a method of the ContextOwner host object.
	Context      bool
	ContextOwner string
	Variadic     bool
	Entry        int
	Exit         int
	Locals       int
	ScopeID      int
}

// Guard bounds parent-chain walks. Crossing Soft records one warning through
// OnSoft; reaching twice Soft is fatal.
type Guard struct {
	Soft   int
	OnSoft func(depth int)
	warned bool
}

func (g *Guard) check(depth int) error {
	soft := DefaultSoftDepth
	if g != nil && g.Soft > 0 {
		soft = g.Soft
	}
	if depth >= 2*soft {
		return newError(RecursiveModuleChain, fmt.Sprintf("depth %d", depth))
	}
	if depth >= soft && g != nil && !g.warned {
		g.warned = true
		if g.OnSoft != nil {
			g.OnSoft(depth)
		}
	}
	return nil
}

type labelRef struct {
	name string
	site bytecode.PatchSite
	pos  token.Position
}

type loopFrame struct {
	continues []bytecode.PatchSite
	breaks    []bytecode.PatchSite
}

// Scope is one compile context: the module body or one function body.
type Scope struct {
	ID     int
	Parent *Scope
	Return ReturnKind
	// LocalsVisible is how many parent hops may see non-exported variables.
	LocalsVisible int
	Guard         *Guard

	module    *Scope
	vars      map[string]*Variable
	varOrder  []*Variable
	funcs     map[string]*Function
	funcOrder []*Function
	labels    map[string]int
	pending   []labelRef
	loops     []*loopFrame
	nextSlot  int
	nextTemp  int
}

// NewScope creates a scope. A scope with ReturnNone starts a new module;
// others belong to the module of their parent.
func NewScope(id int, parent *Scope, ret ReturnKind, localsVisible int) *Scope {
	s := &Scope{
		ID:            id,
		Parent:        parent,
		Return:        ret,
		LocalsVisible: localsVisible,
		vars:          map[string]*Variable{},
		funcs:         map[string]*Function{},
		labels:        map[string]int{},
	}
	s.module = s
	if ret != ReturnNone && parent != nil {
		s.module = parent.module
		s.Guard = parent.Guard
	}
	return s
}

// Key normalises an identifier for table lookups.
func Key(name string) string {
	return strings.ToUpper(name)
}

// ResolveOptions configures Resolve and FindVariable.
type ResolveOptions struct {
	SearchParents bool
	// MaxHops bounds the parent walk; 0 means no bound besides the Guard.
	MaxHops   int
	MustExist bool
	// Context and Temp flag the variable declared when the name is unresolved
	// and MustExist is false.
	Context bool
	Temp    bool
}

// Resolved is the outcome of a variable lookup.
type Resolved struct {
	Var  *Variable
	Hops int
	// Implicit is set when the lookup declared the variable.
	Implicit bool
}

// Operand addresses r.Var from the scope the lookup started in.
func (r Resolved) Operand() bytecode.Operand {
	if r.Var.Temp {
		return bytecode.Temp(r.Var.Slot).WithType(r.Var.Type)
	}
	return bytecode.ParentSlot(r.Hops, r.Var.Slot).WithType(r.Var.Type)
}

// Locals is the number of slots allocated so far.
func (s *Scope) Locals() int {
	return s.nextSlot
}

// IsModule reports whether s is a module body scope.
func (s *Scope) IsModule() bool {
	return s.module == s
}

// Declare adds a variable to s.
func (s *Scope) Declare(name, typ string, export, context, temp bool) (bytecode.Operand, error) {
	v, err := s.declare(&Variable{Display: name, Type: typ, Export: export, Context: context, Temp: temp})
	if err != nil {
		return bytecode.Operand{}, err
	}
	if temp {
		return bytecode.Temp(v.Slot).WithType(v.Type), nil
	}
	return bytecode.Slot(v.Slot).WithType(v.Type), nil
}

func (s *Scope) declare(v *Variable) (*Variable, error) {
	v.Name = Key(v.Display)
	if _, exists := s.vars[v.Name]; exists {
		return nil, newError(DuplicateIdentifier, v.Display)
	}
	v.Type = CanonicalType(v.Type)
	if v.Context && v.ContextOwner != "" {
		v.Slot = -1
	} else {
		v.Slot = s.nextSlot
		s.nextSlot++
	}
	s.vars[v.Name] = v
	s.varOrder = append(s.varOrder, v)
	return v, nil
}

// NewTemp allocates an anonymous temporary.
func (s *Scope) NewTemp(typ string) bytecode.Operand {
	for {
		name := fmt.Sprintf("@%d", s.nextTemp)
		s.nextTemp++
		if _, taken := s.vars[name]; taken {
			continue
		}
		op, _ := s.Declare(name, typ, false, false, true)
		return op
	}
}

// NamedTemp returns the temporary called name, declaring it on first use.
func (s *Scope) NamedTemp(name, typ string) bytecode.Operand {
	if v, ok := s.vars[Key(name)]; ok {
		return bytecode.Temp(v.Slot).WithType(v.Type)
	}
	op, _ := s.Declare(name, typ, false, false, true)
	return op
}

// Resolve returns the operand addressing name. For a context-backed name the
// operand is unusable as storage; use FindVariable to reach the owner.
func (s *Scope) Resolve(name string, opts ResolveOptions) (bytecode.Operand, error) {
	r, err := s.FindVariable(name, opts)
	if err != nil {
		return bytecode.Operand{}, err
	}
	return r.Operand(), nil
}

// FindVariable looks name up in s and, if allowed, its parents. A parent's
// non-exported variable is seen only within the first LocalsVisible hops.
func (s *Scope) FindVariable(name string, opts ResolveOptions) (Resolved, error) {
	key := Key(name)
	if v, ok := s.vars[key]; ok {
		return Resolved{Var: v}, nil
	}
	if opts.SearchParents {
		hops := 0
		for p := s.Parent; p != nil; p = p.Parent {
			hops++
			if opts.MaxHops > 0 && hops > opts.MaxHops {
				break
			}
			if err := s.Guard.check(hops); err != nil {
				return Resolved{}, err
			}
			v, ok := p.vars[key]
			if !ok || v.Temp {
				continue
			}
			if v.Export || v.Extern || hops <= s.LocalsVisible {
				return Resolved{Var: v, Hops: hops}, nil
			}
		}
	}
	if opts.MustExist {
		return Resolved{}, newError(VariableNotFound, name)
	}
	v, err := s.declare(&Variable{Display: name, Context: opts.Context, Temp: opts.Temp})
	if err != nil {
		return Resolved{}, err
	}
	return Resolved{Var: v, Implicit: true}, nil
}

// visibleVariable reports whether declaring name in s would clash with a
// variable already visible from s.
func (s *Scope) visibleVariable(name string) bool {
	r, err := s.FindVariable(name, ResolveOptions{SearchParents: true, MustExist: true})
	return err == nil && r.Var != nil
}

// FindFunction looks a function up through s and its parents. Functions of the
// same module are always visible; those of parent modules only when exported.
// The returned hop count is the number of module boundaries crossed.
func (s *Scope) FindFunction(name string) (*Function, int, error) {
	key := Key(name)
	depth := 0
	moduleHops := 0
	for p := s; p != nil; p = p.Parent {
		if p != s {
			depth++
			if err := s.Guard.check(depth); err != nil {
				return nil, 0, err
			}
			if p.IsModule() && p != s.module {
				moduleHops++
			}
		}
		fn, ok := p.funcs[key]
		if !ok {
			continue
		}
		if p.module == s.module || fn.Export {
			return fn, moduleHops, nil
		}
	}
	return nil, 0, newError(UnknownFunction, name)
}

// AddFunction registers fn in s.
func (s *Scope) AddFunction(fn *Function) error {
	fn.Name = Key(fn.Display)
	if _, exists := s.funcs[fn.Name]; exists {
		return newError(DuplicateIdentifier, fn.Display)
	}
	s.funcs[fn.Name] = fn
	s.funcOrder = append(s.funcOrder, fn)
	return nil
}

// Functions returns the functions of s in registration order.
func (s *Scope) Functions() []*Function {
	return s.funcOrder
}

// Variables returns the variables of s in declaration order.
func (s *Scope) Variables() []*Variable {
	return s.varOrder
}

// DefineLabel records that name labels the code following addr.
func (s *Scope) DefineLabel(name string, addr int) error {
	key := Key(name)
	if _, exists := s.labels[key]; exists {
		return newError(DuplicateLabel, name)
	}
	s.labels[key] = addr
	return nil
}

// ReferenceLabel records a jump operand to patch once name is known.
func (s *Scope) ReferenceLabel(name string, site bytecode.PatchSite, pos token.Position) {
	s.pending = append(s.pending, labelRef{name: name, site: site, pos: pos})
}

// ResolveLabels patches every pending label reference to one past its label.
func (s *Scope) ResolveLabels(code *bytecode.ByteCode) error {
	for _, ref := range s.pending {
		addr, ok := s.labels[Key(ref.name)]
		if !ok {
			return at(newError(UndefinedLabel, ref.name), ref.pos)
		}
		code.Patch(ref.site, bytecode.Addr(addr+1))
	}
	s.pending = nil
	return nil
}

// LoopDepth returns the number of open fix-up frames.
func (s *Scope) LoopDepth() int {
	return len(s.loops)
}

// PushLoop opens a continue/break fix-up frame.
func (s *Scope) PushLoop() {
	s.loops = append(s.loops, &loopFrame{})
}

// InLoop reports whether a fix-up frame is open.
func (s *Scope) InLoop() bool {
	return len(s.loops) > 0
}

// AddContinue records a continue jump in the innermost frame.
func (s *Scope) AddContinue(site bytecode.PatchSite) error {
	if !s.InLoop() {
		return newError(ContinueOutsideLoop, "")
	}
	top := s.loops[len(s.loops)-1]
	top.continues = append(top.continues, site)
	return nil
}

// AddBreak records a break jump in the innermost frame.
func (s *Scope) AddBreak(site bytecode.PatchSite) error {
	if !s.InLoop() {
		return newError(BreakOutsideLoop, "")
	}
	top := s.loops[len(s.loops)-1]
	top.breaks = append(top.breaks, site)
	return nil
}

// PopLoop closes the innermost frame, patching its jumps.
func (s *Scope) PopLoop(code *bytecode.ByteCode, continueAddr, breakAddr int) {
	top := s.loops[len(s.loops)-1]
	s.loops = s.loops[:len(s.loops)-1]
	for _, site := range top.continues {
		code.Patch(site, bytecode.Addr(continueAddr))
	}
	for _, site := range top.breaks {
		code.Patch(site, bytecode.Addr(breakAddr))
	}
}
