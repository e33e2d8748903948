package threading

import (
	"github.com/sarchlab/osim/idgen"
	"github.com/sarchlab/osim/instrumentation/hooking"
	"github.com/sarchlab/osim/kernel"
)

// DefaultThreadsPerProcess is how many threads a process is split into.
const DefaultThreadsPerProcess = 4

// Builder can build runners.
type Builder struct {
	pager   *kernel.Pager
	perProc int
}

// MakeBuilder creates a builder with the default thread count.
func MakeBuilder() Builder {
	return Builder{perProc: DefaultThreadsPerProcess}
}

// WithPager sets the pager that serves instructions to threads.
func (b Builder) WithPager(pager *kernel.Pager) Builder {
	b.pager = pager
	return b
}

// WithThreadsPerProcess sets how many threads a process is split into.
func (b Builder) WithThreadsPerProcess(n int) Builder {
	b.perProc = n
	return b
}

// Build creates the runner.
func (b Builder) Build(name string) *Runner {
	if b.pager == nil {
		panic("threading: pager is not set")
	}

	if b.perProc <= 0 {
		panic("threading: threads per process must be positive")
	}

	return &Runner{
		HookableBase: hooking.NewHookableBase(),
		name:         name,
		pager:        b.pager,
		perProc:      b.perProc,
		ids:          idgen.New(),
		schedules:    make(map[idgen.ID]*Scheduler),
	}
}
