// Package modules keeps the compile modules of an application by name and
// wires each to its parent module.
package modules

import (
	"errors"
	"fmt"
	"sync"

	"github.com/maruel/natural"
	"github.com/oklog/ulid/v2"
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/rs/zerolog"
	"golang.org/x/exp/slices"

	"github.com/xirelogy/go-bscript/internal/bytecode"
	"github.com/xirelogy/go-bscript/internal/compiler"
)

var (
	ErrExists         = errors.New("module already registered")
	ErrNotFound       = errors.New("module not found")
	ErrParentNotFound = errors.New("parent module not found")
	ErrHasChildren    = errors.New("module has child modules")
)

// Entry is a registered module.
type Entry struct {
	ID     ulid.ULID
	Name   string
	Parent string
	Module *compiler.Module
}

// Manager is a registry of compile modules. Registration and lookup are safe
// for concurrent use; compilation is serialised.
type Manager struct {
	entries cmap.ConcurrentMap[string, *Entry]
	opts    compiler.Options
	log     zerolog.Logger

	mu sync.Mutex
}

// New creates an empty manager whose modules share opts.
func New(opts compiler.Options) *Manager {
	return &Manager{
		entries: cmap.New[*Entry](),
		opts:    opts,
		log:     opts.Logger.With().Str("component", "modules").Logger(),
	}
}

// Add registers a module built from src, chained to the module named parent
// (empty for a root module).
func (m *Manager) Add(src compiler.Source, parent string) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := src.FullName()
	var parentMod *compiler.Module
	if parent != "" {
		p, ok := m.entries.Get(compiler.Key(parent))
		if !ok {
			return nil, fmt.Errorf("add %s: %w: %s", name, ErrParentNotFound, parent)
		}
		parentMod = p.Module
	}
	e := &Entry{
		ID:     ulid.Make(),
		Name:   name,
		Parent: parent,
		Module: compiler.NewModule(src, parentMod, m.opts),
	}
	if !m.entries.SetIfAbsent(compiler.Key(name), e) {
		return nil, fmt.Errorf("add %s: %w", name, ErrExists)
	}
	m.log.Debug().Str("module", name).Str("parent", parent).Str("id", e.ID.String()).Msg("module added")
	return e, nil
}

// Find looks a module up by name, ignoring case.
func (m *Manager) Find(name string) (*Entry, bool) {
	return m.entries.Get(compiler.Key(name))
}

// Update replaces the source of a registered module and chains it to
// parent (empty for none).
func (m *Manager) Update(src compiler.Source, parent string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	name := src.FullName()
	e, ok := m.entries.Get(compiler.Key(name))
	if !ok {
		return fmt.Errorf("update %s: %w", name, ErrNotFound)
	}
	if compiler.Key(parent) != compiler.Key(e.Parent) {
		var parentMod *compiler.Module
		if parent != "" {
			p, ok := m.entries.Get(compiler.Key(parent))
			if !ok {
				return fmt.Errorf("update %s: %w: %s", name, ErrParentNotFound, parent)
			}
			parentMod = p.Module
		}
		e.Parent = parent
		e.Module.SetParent(parentMod)
		m.log.Debug().Str("module", name).Str("parent", parent).Msg("module parent changed")
	}
	e.Module.SetSource(src)
	return nil
}

// Remove unregisters a module. A module other modules derive from cannot be
// removed.
func (m *Manager) Remove(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := compiler.Key(name)
	if !m.entries.Has(key) {
		return fmt.Errorf("remove %s: %w", name, ErrNotFound)
	}
	for item := range m.entries.IterBuffered() {
		if item.Val.Parent != "" && compiler.Key(item.Val.Parent) == key {
			return fmt.Errorf("remove %s: %w: %s", name, ErrHasChildren, item.Val.Name)
		}
	}
	m.entries.Remove(key)
	m.log.Debug().Str("module", name).Msg("module removed")
	return nil
}

// Names lists the registered module names in natural order.
func (m *Manager) Names() []string {
	names := make([]string, 0, m.entries.Count())
	for item := range m.entries.IterBuffered() {
		names = append(names, item.Val.Name)
	}
	slices.SortFunc(names, naturalCompare)
	return names
}

func naturalCompare(a, b string) int {
	switch {
	case natural.Less(a, b):
		return -1
	case natural.Less(b, a):
		return 1
	}
	return 0
}

// Compile compiles the named module and any stale ancestors.
func (m *Manager) Compile(name string) (*bytecode.ByteCode, error) {
	e, ok := m.Find(name)
	if !ok {
		return nil, fmt.Errorf("compile %s: %w", name, ErrNotFound)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := e.Module.Compile(); err != nil {
		return nil, err
	}
	return e.Module.ByteCode(), nil
}

// CompileAll compiles every registered module, parents before children.
// Every module is attempted; the failures are joined.
func (m *Manager) CompileAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	order := m.order()
	var errs []error
	for _, e := range order {
		if err := e.Module.Compile(); err != nil {
			errs = append(errs, err)
		}
	}
	m.log.Info().Int("modules", len(order)).Int("failed", len(errs)).Msg("compiled all modules")
	return errors.Join(errs...)
}

// order sorts the entries by depth in the hierarchy, then naturally by name.
func (m *Manager) order() []*Entry {
	depth := map[string]int{}
	var depthOf func(e *Entry, seen int) int
	depthOf = func(e *Entry, seen int) int {
		key := compiler.Key(e.Name)
		if d, ok := depth[key]; ok {
			return d
		}
		d := 0
		if p, ok := m.entries.Get(compiler.Key(e.Parent)); ok && e.Parent != "" && seen < m.entries.Count() {
			d = depthOf(p, seen+1) + 1
		}
		depth[key] = d
		return d
	}

	entries := make([]*Entry, 0, m.entries.Count())
	for item := range m.entries.IterBuffered() {
		entries = append(entries, item.Val)
		depthOf(item.Val, 0)
	}
	slices.SortFunc(entries, func(a, b *Entry) int {
		da, db := depth[compiler.Key(a.Name)], depth[compiler.Key(b.Name)]
		if da != db {
			return da - db
		}
		return naturalCompare(a.Name, b.Name)
	})
	return entries
}
