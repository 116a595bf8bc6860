package compiler

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/xirelogy/go-bscript/internal/bytecode"
	"github.com/xirelogy/go-bscript/internal/config"
	"github.com/xirelogy/go-bscript/internal/host"
	"github.com/xirelogy/go-bscript/internal/lexer"
	"github.com/xirelogy/go-bscript/internal/token"
)

// Source provides the text of a module and the names used to stamp its code.
type Source interface {
	FullName() string
	DocPath() string
	FileName() string
	Text() string
}

// StaticSource is a Source over fixed strings.
type StaticSource struct {
	Name string
	Path string
	File string
	Body string
}

func (s StaticSource) FullName() string { return s.Name }
func (s StaticSource) DocPath() string  { return s.Path }
func (s StaticSource) FileName() string { return s.File }
func (s StaticSource) Text() string     { return s.Body }

// Options configures a Module.
type Options struct {
	Logger zerolog.Logger
	Sink   ErrorSink
	Host   *host.Registry
	Config config.Compiler
}

// generations hands out build stamps shared by all modules, so a child can
// tell that its parent was rebuilt since the child's own build.
var generations atomic.Uint64

// Module compiles one source into ByteCode, chained to an optional parent
// module whose exported symbols it can see.
type Module struct {
	src    Source
	parent *Module
	opts   Options
	log    zerolog.Logger

	result   *bytecode.ByteCode
	root     *Scope
	warnings []Warning

	dirty      bool
	generation uint64
	parentGen  uint64
}

// NewModule creates an uncompiled module.
func NewModule(src Source, parent *Module, opts Options) *Module {
	if opts.Config.SoftDepth <= 0 {
		opts.Config.SoftDepth = config.Default().Compiler.SoftDepth
	}
	return &Module{
		src:    src,
		parent: parent,
		opts:   opts,
		log:    opts.Logger.With().Str("module", src.FullName()).Logger(),
		dirty:  true,
	}
}

// Name is the module's full name.
func (m *Module) Name() string {
	return m.src.FullName()
}

// Parent returns the parent module or nil.
func (m *Module) Parent() *Module {
	return m.parent
}

// SetParent rewires the module and marks it for recompilation.
func (m *Module) SetParent(parent *Module) {
	m.parent = parent
	m.dirty = true
}

// SetSource replaces the module text and marks it for recompilation.
func (m *Module) SetSource(src Source) {
	m.src = src
	m.log = m.opts.Logger.With().Str("module", src.FullName()).Logger()
	m.dirty = true
}

// ByteCode returns the last successful result, or nil.
func (m *Module) ByteCode() *bytecode.ByteCode {
	return m.result
}

// Scope returns the root scope of the last successful build, or nil.
func (m *Module) Scope() *Scope {
	return m.root
}

// Warnings returns the diagnostics of the last build.
func (m *Module) Warnings() []Warning {
	return m.warnings
}

// Stale reports whether the module or any ancestor needs a rebuild.
func (m *Module) Stale() bool {
	depth := 0
	for cur := m; cur != nil; cur = cur.parent {
		if cur.staleSelf() {
			return true
		}
		depth++
		if depth >= 2*m.opts.Config.SoftDepth {
			return true
		}
	}
	return false
}

func (m *Module) staleSelf() bool {
	if m.dirty || m.result == nil {
		return true
	}
	if m.parent == nil {
		return false
	}
	return m.parent.generation != m.parentGen
}

// Reset drops the compiled result.
func (m *Module) Reset() {
	m.result = nil
	m.root = nil
	m.warnings = nil
	m.dirty = true
}

// Compile builds the module if it or an ancestor changed since the last
// build. Stale ancestors are rebuilt first, oldest first.
func (m *Module) Compile() error {
	chain, chainWarnings, err := m.ancestry()
	if err != nil {
		return m.fail(err, chainWarnings)
	}
	rebuilt := 0
	for i := len(chain) - 1; i >= 0; i-- {
		mod := chain[i]
		if !mod.staleSelf() {
			continue
		}
		if mod != m {
			rebuilt++
			m.log.Info().Str("ancestor", mod.Name()).Msg("recompiling stale ancestor")
		}
		if err := mod.build(); err != nil {
			if mod != m {
				m.Reset()
				return fmt.Errorf("compile %s: parent %s: %w", m.Name(), mod.Name(), err)
			}
			m.warnings = append(chainWarnings, m.warnings...)
			return err
		}
		if mod == m {
			m.warnings = append(chainWarnings, m.warnings...)
		}
	}
	if rebuilt > 0 {
		m.log.Info().Int("ancestors", rebuilt).Msg("recompiled module chain")
	}
	return nil
}

// Recompile rebuilds the module unconditionally, after any stale ancestors.
func (m *Module) Recompile() error {
	m.dirty = true
	return m.Compile()
}

// ancestry returns m followed by its ancestors, nearest first.
func (m *Module) ancestry() ([]*Module, []Warning, error) {
	var warnings []Warning
	guard := &Guard{Soft: m.opts.Config.SoftDepth, OnSoft: func(depth int) {
		w := Warning{Code: RecursiveModuleChain, Context: fmt.Sprintf("module chain depth %d", depth)}
		warnings = append(warnings, w)
		m.logWarning(w)
	}}
	chain := []*Module{m}
	for cur := m.parent; cur != nil; cur = cur.parent {
		if err := guard.check(len(chain)); err != nil {
			return nil, warnings, err
		}
		chain = append(chain, cur)
	}
	return chain, warnings, nil
}

func (m *Module) logWarning(w Warning) {
	m.log.Warn().Str("code", w.Code.String()).Str("pos", w.Pos.String()).Msg(w.Context)
}

// fail stamps err with the module name, reports it and clears the result.
func (m *Module) fail(err error, warnings []Warning) error {
	var ce *Error
	if errors.As(err, &ce) {
		if ce.Module == "" {
			ce.Module = m.Name()
		}
		if m.opts.Sink != nil {
			m.opts.Sink.ReportError(ce.Code, ce.Pos, ce.Context)
		}
	}
	m.result = nil
	m.root = nil
	m.warnings = warnings
	m.log.Error().Err(err).Msg("compile failed")
	return err
}

func (m *Module) build() error {
	run := ulid.Make()
	log := m.log.With().Str("run", run.String()).Logger()
	log.Debug().Str("file", m.src.FileName()).Msg("compile start")

	var (
		parentCode  *bytecode.ByteCode
		parentScope *Scope
	)
	if m.parent != nil {
		if m.parent.result == nil {
			return m.fail(newError(ParentNotCompiled, m.parent.Name()), nil)
		}
		parentCode = m.parent.result
		parentScope = m.parent.root
	}

	c := newCompiler(m, log)
	c.code = bytecode.New(m.Name(), parentCode)
	c.root = NewScope(0, parentScope, ReturnNone, 0)
	c.root.Guard = c.guard
	c.scope = c.root

	if err := c.importHost(m.opts.Host); err != nil {
		return m.fail(err, c.warnings)
	}
	toks := lexer.Tokenize(m.src.Text(), m.src.FileName())
	if err := checkIllegal(toks); err != nil {
		return m.fail(err, c.warnings)
	}
	c.cur = token.NewCursor(toks)
	if err := c.compileModule(); err != nil {
		return m.fail(err, c.warnings)
	}
	c.fillTables()

	m.result = c.code
	m.root = c.root
	m.warnings = c.warnings
	m.dirty = false
	m.generation = generations.Add(1)
	m.parentGen = 0
	if m.parent != nil {
		m.parentGen = m.parent.generation
	}
	log.Debug().
		Int("code", c.code.Len()).
		Int("consts", len(c.code.Consts)).
		Int("funcs", len(c.code.Funcs)).
		Msg("compile finished")
	return nil
}

func checkIllegal(toks []token.Token) error {
	for _, tok := range toks {
		if tok.Kind != token.Illegal {
			continue
		}
		code := UnexpectedToken
		if strings.HasPrefix(tok.Literal, "unterminated") || strings.HasPrefix(tok.Literal, "malformed") {
			code = MalformedConstant
		}
		return &Error{Code: code, Pos: tok.Pos, Context: tok.Literal}
	}
	return nil
}

// importHost declares host symbols in the root scope: externs and context
// owners as variables, context attributes as owner-backed names and context
// methods as owner-backed functions.
func (c *compiler) importHost(reg *host.Registry) error {
	for _, ext := range reg.Externs() {
		if _, err := c.root.declare(&Variable{Display: ext.Name, Type: ext.Type, Extern: true}); err != nil {
			return err
		}
	}
	for _, ctx := range reg.Contexts() {
		if _, err := c.root.declare(&Variable{Display: ctx.Name, Type: ctx.Type, Extern: true}); err != nil {
			return err
		}
		for _, attr := range ctx.Attributes {
			if _, err := c.root.declare(&Variable{Display: attr, Context: true, ContextOwner: ctx.Name}); err != nil {
				return err
			}
		}
		for _, meth := range ctx.Methods {
			fn := &Function{
				Display:      meth.Name,
				Params:       make([]Param, meth.Params),
				Context:      true,
				ContextOwner: ctx.Name,
				Variadic:     meth.Variadic,
			}
			if err := c.root.AddFunction(fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// fillTables copies the root scope's symbols into the ByteCode side tables
// in declaration order.
func (c *compiler) fillTables() {
	b := c.code
	for _, v := range c.root.Variables() {
		if v.Temp || v.Context {
			continue
		}
		sym := bytecode.Symbol{Name: v.Display, Slot: v.Slot, Type: v.Type}
		switch {
		case v.Extern:
			b.Externs = append(b.Externs, sym)
		case v.Export:
			b.Vars = append(b.Vars, sym)
			b.ExportVars = append(b.ExportVars, sym)
		default:
			b.Vars = append(b.Vars, sym)
		}
	}
	for _, fn := range c.root.Functions() {
		if fn.Context {
			continue
		}
		info := bytecode.FuncInfo{
			Name:      fn.Display,
			Entry:     fn.Entry,
			Exit:      fn.Exit,
			Params:    len(fn.Params),
			Locals:    fn.Locals,
			Procedure: fn.Procedure,
		}
		b.Funcs = append(b.Funcs, info)
		if fn.Export {
			b.ExportFuncs = append(b.ExportFuncs, info)
		}
	}
	b.Locals = c.root.Locals()
}
