package scheduling

import (
	"io"

	"github.com/sarchlab/osim/instrumentation/hooking"
	"github.com/sarchlab/osim/kernel"
	"github.com/sarchlab/osim/timing"
)

// DefaultQuantum is the number of instructions in one round-robin slice.
const DefaultQuantum = 2

// Builder can build schedulers.
type Builder struct {
	engine   timing.Engine
	pager    *kernel.Pager
	executor Executor
	threads  ThreadRunner
	out      io.Writer
	quantum  int
}

// MakeBuilder creates a builder with the default quantum.
func MakeBuilder() Builder {
	return Builder{
		quantum: DefaultQuantum,
		out:     io.Discard,
	}
}

// WithEngine sets the engine that paces the scheduler.
func (b Builder) WithEngine(engine timing.Engine) Builder {
	b.engine = engine
	return b
}

// WithPager sets the pager that serves instructions.
func (b Builder) WithPager(pager *kernel.Pager) Builder {
	b.pager = pager
	return b
}

// WithExecutor sets what runs each instruction. It may also be set later
// with RegisterExecutor.
func (b Builder) WithExecutor(executor Executor) Builder {
	b.executor = executor
	return b
}

// WithThreadRunner sets the runner used by the MT policy.
func (b Builder) WithThreadRunner(threads ThreadRunner) Builder {
	b.threads = threads
	return b
}

// WithOutput sets where process errors are reported.
func (b Builder) WithOutput(out io.Writer) Builder {
	b.out = out
	return b
}

// WithQuantum sets the round-robin quantum.
func (b Builder) WithQuantum(quantum int) Builder {
	b.quantum = quantum
	return b
}

func (b Builder) parametersMustBeValid() {
	if b.engine == nil {
		panic("scheduling: engine is not set")
	}

	if b.pager == nil {
		panic("scheduling: pager is not set")
	}

	if b.quantum <= 0 {
		panic("scheduling: quantum must be positive")
	}
}

// Build creates the scheduler.
func (b Builder) Build(name string) *Scheduler {
	b.parametersMustBeValid()

	return &Scheduler{
		HookableBase: hooking.NewHookableBase(),
		name:         name,
		engine:       b.engine,
		pager:        b.pager,
		executor:     b.executor,
		threads:      b.threads,
		out:          b.out,
		quantum:      b.quantum,
		ready:        NewReadyQueue(name + ".ReadyQueue"),
	}
}
