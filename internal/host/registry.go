// Package host holds the symbols a host application injects into compiled
// modules: extern values exposed as module variables, and context values whose
// attributes and methods become importable names.
package host

import (
	"fmt"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Extern is a plain host object exposed as a module-level variable.
type Extern struct {
	Name string
	Type string
}

// Method is a callable member of a context value.
type Method struct {
	Name     string
	Params   int
	Variadic bool
}

// Context is a host object whose public attributes and methods are visible
// to scripts without qualification.
type Context struct {
	Name       string
	Type       string
	Attributes []string
	Methods    []Method
}

// Registry collects extern and context values for one module.
type Registry struct {
	externs  map[string]Extern
	contexts map[string]Context
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		externs:  map[string]Extern{},
		contexts: map[string]Context{},
	}
}

// Key normalises a script-visible name.
func Key(name string) string {
	return strings.ToUpper(name)
}

// RegisterExtern adds an extern value.
func (r *Registry) RegisterExtern(e Extern) error {
	if e.Name == "" {
		return fmt.Errorf("extern value has no name")
	}
	key := Key(e.Name)
	if r.taken(key) {
		return fmt.Errorf("host symbol %s already registered", e.Name)
	}
	r.externs[key] = e
	return nil
}

// RegisterContext adds a context value.
func (r *Registry) RegisterContext(c Context) error {
	if c.Name == "" {
		return fmt.Errorf("context value has no name")
	}
	key := Key(c.Name)
	if r.taken(key) {
		return fmt.Errorf("host symbol %s already registered", c.Name)
	}
	r.contexts[key] = c
	return nil
}

func (r *Registry) taken(key string) bool {
	_, isExtern := r.externs[key]
	_, isContext := r.contexts[key]
	return isExtern || isContext
}

// Externs returns the extern values ordered by normalised name.
func (r *Registry) Externs() []Extern {
	if r == nil {
		return nil
	}
	keys := maps.Keys(r.externs)
	slices.Sort(keys)
	out := make([]Extern, 0, len(keys))
	for _, k := range keys {
		out = append(out, r.externs[k])
	}
	return out
}

// Contexts returns the context values ordered by normalised name.
func (r *Registry) Contexts() []Context {
	if r == nil {
		return nil
	}
	keys := maps.Keys(r.contexts)
	slices.Sort(keys)
	out := make([]Context, 0, len(keys))
	for _, k := range keys {
		out = append(out, r.contexts[k])
	}
	return out
}
