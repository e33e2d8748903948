package kernel

import (
	"io"

	"github.com/sarchlab/osim/idgen"
	"github.com/sarchlab/osim/instrumentation/hooking"
	"github.com/sarchlab/osim/mem/backingstore"
	"github.com/sarchlab/osim/mem/framestore"
)

// PagerBuilder can build pagers.
type PagerBuilder struct {
	frames   *framestore.FrameStore
	store    backingstore.Store
	registry *Registry
	victims  framestore.VictimFinder
	out      io.Writer
}

// MakePagerBuilder creates a PagerBuilder using LRU eviction.
func MakePagerBuilder() PagerBuilder {
	return PagerBuilder{
		victims: framestore.NewLRUVictimFinder(),
	}
}

// WithFrameStore sets the frame store the pager manages.
func (b PagerBuilder) WithFrameStore(frames *framestore.FrameStore) PagerBuilder {
	b.frames = frames
	return b
}

// WithBackingStore sets where pages are loaded from.
func (b PagerBuilder) WithBackingStore(store backingstore.Store) PagerBuilder {
	b.store = store
	return b
}

// WithRegistry attaches the pager to a registry so that scripts torn down by
// the registry give their frames back.
func (b PagerBuilder) WithRegistry(registry *Registry) PagerBuilder {
	b.registry = registry
	return b
}

// WithVictimFinder sets the eviction policy.
func (b PagerBuilder) WithVictimFinder(victims framestore.VictimFinder) PagerBuilder {
	b.victims = victims
	return b
}

// WithOutput sets where page fault reports are printed. Reports are dropped
// if no output is set.
func (b PagerBuilder) WithOutput(out io.Writer) PagerBuilder {
	b.out = out
	return b
}

func (b PagerBuilder) parametersMustBeValid() {
	if b.frames == nil {
		panic("kernel: pager requires a frame store")
	}

	if b.store == nil {
		panic("kernel: pager requires a backing store")
	}

	if b.victims == nil {
		panic("kernel: pager requires a victim finder")
	}

	if b.registry != nil && b.registry.pageSize != b.frames.PageSize() {
		panic("kernel: registry and frame store disagree on the page size")
	}
}

// Build creates the pager.
func (b PagerBuilder) Build(name string) *Pager {
	b.parametersMustBeValid()

	p := &Pager{
		HookableBase: hooking.NewHookableBase(),
		name:         name,
		frames:       b.frames,
		store:        b.store,
		victims:      b.victims,
		out:          b.out,
		resident:     make(map[idgen.ID]*Script),
		faultIDs:     idgen.New(),
	}

	if b.registry != nil {
		b.registry.pager = p
	}

	return p
}
