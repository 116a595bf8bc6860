// Package bscript compiles business script modules into bytecode. An Engine
// holds the configuration, the host symbols injected into every module and
// the registry of modules with their parent chains.
package bscript

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/xirelogy/go-bscript/internal/bytecode"
	"github.com/xirelogy/go-bscript/internal/compiler"
	"github.com/xirelogy/go-bscript/internal/config"
	"github.com/xirelogy/go-bscript/internal/host"
	"github.com/xirelogy/go-bscript/internal/modules"
)

type (
	// ByteCode is the compiled form of a module.
	ByteCode = bytecode.ByteCode
	// Error is a fatal compile error.
	Error = compiler.Error
	// ErrorCode classifies compile errors.
	ErrorCode = compiler.ErrorCode
	// ErrorSink receives every compile error as it is raised.
	ErrorSink = compiler.ErrorSink
	// Warning is a non-fatal compile diagnostic.
	Warning = compiler.Warning
	// Config is the engine configuration.
	Config = config.Config
	// Context describes a host object whose members scripts use unqualified.
	Context = host.Context
	// Method is a callable member of a Context.
	Method = host.Method
)

// Option configures an Engine.
type Option func(*Engine)

// WithConfig replaces the default configuration.
func WithConfig(cfg Config) Option {
	return func(e *Engine) { e.cfg = cfg }
}

// WithLogger sets the logger used by the engine and its compilers.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithSink routes compile errors to s.
func WithSink(s ErrorSink) Option {
	return func(e *Engine) { e.sink = s }
}

// Engine compiles named modules against a shared set of host symbols.
type Engine struct {
	cfg     Config
	log     zerolog.Logger
	sink    ErrorSink
	host    *host.Registry
	modules *modules.Manager
}

// New creates an Engine. The logger defaults to a no-op logger.
func New(opts ...Option) *Engine {
	e := &Engine{
		cfg:  config.Default(),
		log:  zerolog.Nop(),
		host: host.NewRegistry(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.modules = modules.New(compiler.Options{
		Logger: e.log,
		Sink:   e.sink,
		Host:   e.host,
		Config: e.cfg.Compiler,
	})
	return e
}

// Config returns the active configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// RegisterExtern exposes a host value as a variable of every module compiled
// afterwards.
func (e *Engine) RegisterExtern(name, typ string) error {
	return e.host.RegisterExtern(host.Extern{Name: name, Type: typ})
}

// RegisterContext exposes the attributes and methods of a host object to
// every module compiled afterwards.
func (e *Engine) RegisterContext(ctx Context) error {
	return e.host.RegisterContext(ctx)
}

// LoadSource registers a module built from src under name, chained to the
// module named parent (empty for none), and compiles it. Loading a name again
// replaces its source and parent.
func (e *Engine) LoadSource(name, parent, src string) (*ByteCode, error) {
	if name == "" {
		return nil, errors.New("module name is empty")
	}
	return e.load(compiler.StaticSource{Name: name, File: name, Body: src}, parent)
}

// LoadFile loads a module from path. The module is named after the file
// without its extension.
func (e *Engine) LoadFile(path, parent string) (*ByteCode, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return e.load(compiler.StaticSource{Name: name, Path: path, File: base, Body: string(data)}, parent)
}

// load registers src, or replaces the source and parent of the module
// already registered under its name, and compiles it.
func (e *Engine) load(src compiler.Source, parent string) (*ByteCode, error) {
	if _, err := e.modules.Add(src, parent); err != nil {
		if !errors.Is(err, modules.ErrExists) {
			return nil, err
		}
		if err := e.modules.Update(src, parent); err != nil {
			return nil, err
		}
	}
	b, err := e.modules.Compile(src.FullName())
	if err != nil {
		return nil, fmt.Errorf("compile error: %w", err)
	}
	return b, nil
}

// Remove unregisters a module that no other module derives from.
func (e *Engine) Remove(name string) error {
	return e.modules.Remove(name)
}

// Names lists the registered modules in natural order.
func (e *Engine) Names() []string {
	return e.modules.Names()
}

// ByteCode returns the last compiled result of a module.
func (e *Engine) ByteCode(name string) (*ByteCode, bool) {
	entry, ok := e.modules.Find(name)
	if !ok || entry.Module.ByteCode() == nil {
		return nil, false
	}
	return entry.Module.ByteCode(), true
}

// Warnings returns the diagnostics of a module's last compile.
func (e *Engine) Warnings(name string) []Warning {
	entry, ok := e.modules.Find(name)
	if !ok {
		return nil
	}
	return entry.Module.Warnings()
}

// CompileAll compiles every registered module, parents first.
func (e *Engine) CompileAll() error {
	return e.modules.CompileAll()
}

// Disassemble writes a readable listing of a compiled module and, when
// withParents is set, of its parent chain.
func (e *Engine) Disassemble(w io.Writer, name string, withParents bool) error {
	b, ok := e.ByteCode(name)
	if !ok {
		return fmt.Errorf("module %s is not compiled", name)
	}
	return bytecode.NewDisassembler(w).Disassemble(b, withParents)
}

// WriteJSON writes a compiled module as JSON.
func (e *Engine) WriteJSON(w io.Writer, name string) error {
	b, ok := e.ByteCode(name)
	if !ok {
		return fmt.Errorf("module %s is not compiled", name)
	}
	return b.WriteJSON(w)
}

// CodeOf extracts the ErrorCode carried by err.
func CodeOf(err error) ErrorCode {
	return compiler.CodeOf(err)
}
