package kernel

import (
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"sync"

	"github.com/sarchlab/osim/idgen"
	"github.com/sarchlab/osim/instrumentation/hooking"
	"github.com/sarchlab/osim/mem/backingstore"
	"github.com/sarchlab/osim/mem/vm"
)

// Registry tracks each distinct script by name. Loading a name that is
// already registered shares the existing script instead of copying it again.
type Registry struct {
	*hooking.HookableBase

	mu       sync.Mutex
	name     string
	store    backingstore.Store
	pageSize int
	ids      idgen.Generator
	scripts  map[string]*Script
	pager    *Pager
}

// NewRegistry creates a registry that keeps scripts in the store.
func NewRegistry(name string, store backingstore.Store, pageSize int) *Registry {
	if pageSize <= 0 {
		panic(fmt.Sprintf("kernel: page size must be positive, got %d", pageSize))
	}

	return &Registry{
		HookableBase: hooking.NewHookableBase(),
		name:         name,
		store:        store,
		pageSize:     pageSize,
		ids:          idgen.New(),
		scripts:      make(map[string]*Script),
	}
}

// Name returns the name of the registry.
func (r *Registry) Name() string {
	return r.name
}

// Load returns a new share of the script called name, loading it into the
// backing store if it is not registered yet.
func (r *Registry) Load(name string) (*ScriptRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, found := r.scripts[name]; found {
		s.refs.Add(1)
		r.InvokeHook(hooking.HookCtx{Domain: r, Pos: HookPosScriptShare, Item: s})

		return &ScriptRef{script: s, registry: r}, nil
	}

	lines, err := backingstore.ReadLines(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrScriptNotFound, name)
		}

		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	location, err := r.store.Write(name, lines)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	s := &Script{
		id:       r.ids.Generate(),
		name:     name,
		location: location,
		numLines: len(lines),
		pageSize: r.pageSize,
	}
	s.table = vm.NewPageTable(s.NumPages())
	s.refs.Store(1)
	r.scripts[name] = s

	r.InvokeHook(hooking.HookCtx{Domain: r, Pos: HookPosScriptLoad, Item: s})

	return &ScriptRef{script: s, registry: r}, nil
}

// Lookup returns the registered script called name.
func (r *Registry) Lookup(name string) (*Script, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, found := r.scripts[name]

	return s, found
}

// Scripts returns the registered scripts in load order.
func (r *Registry) Scripts() []*Script {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Script, 0, len(r.scripts))
	for _, s := range r.scripts {
		out = append(out, s)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })

	return out
}

// release drops one share of the script. The last share tears it down. A
// script that is no longer registered is ignored.
func (r *Registry) release(s *Script) error {
	r.mu.Lock()

	if current, found := r.scripts[s.name]; !found || current != s {
		r.mu.Unlock()
		return nil
	}

	if s.refs.Add(-1) > 0 {
		r.mu.Unlock()
		return nil
	}

	delete(r.scripts, s.name)
	r.mu.Unlock()

	if r.pager != nil {
		r.pager.Discard(s)
	}

	s.table.Reset()

	r.InvokeHook(hooking.HookCtx{Domain: r, Pos: HookPosScriptTeardown, Item: s})

	if err := r.store.Remove(s.location); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}

	return nil
}
