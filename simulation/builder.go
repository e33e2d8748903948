package simulation

import (
	"fmt"
	"io"
	"log"

	"github.com/rs/xid"
	"github.com/sarchlab/osim/datarecording"
	"github.com/sarchlab/osim/idgen"
	"github.com/sarchlab/osim/instrumentation/tracing"
	"github.com/sarchlab/osim/kernel"
	"github.com/sarchlab/osim/mem/backingstore"
	"github.com/sarchlab/osim/mem/framestore"
	"github.com/sarchlab/osim/monitoring"
	"github.com/sarchlab/osim/scheduling"
	"github.com/sarchlab/osim/threading"
	"github.com/sarchlab/osim/timing"
)

// Eviction policies understood by WithEviction.
const (
	EvictionLRU    = "lru"
	EvictionRandom = "random"
)

// Defaults of a simulation.
const (
	DefaultFrameStoreSize  = 30
	DefaultBackingStoreDir = "backing_store"
	DefaultPreloadPages    = 2
)

// Builder can be used to build a simulation.
type Builder struct {
	frameStoreSize  int
	pageSize        int
	quantum         int
	threads         int
	preloadPages    int
	eviction        string
	seed            int64
	backingStoreDir string
	runPolicy       scheduling.Policy
	output          io.Writer
	logger          *log.Logger
	traceDB         string
	monitorOn       bool
	monitorPort     int
}

// MakeBuilder creates a new builder.
func MakeBuilder() Builder {
	return Builder{
		frameStoreSize:  DefaultFrameStoreSize,
		pageSize:        framestore.DefaultPageSize,
		quantum:         scheduling.DefaultQuantum,
		threads:         threading.DefaultThreadsPerProcess,
		preloadPages:    DefaultPreloadPages,
		eviction:        EvictionLRU,
		backingStoreDir: DefaultBackingStoreDir,
		runPolicy:       scheduling.FCFS,
		output:          io.Discard,
	}
}

// WithFrameStoreSize sets the capacity of the frame store in lines.
func (b Builder) WithFrameStoreSize(lines int) Builder {
	b.frameStoreSize = lines
	return b
}

// WithPageSize sets the number of lines in a page.
func (b Builder) WithPageSize(lines int) Builder {
	b.pageSize = lines
	return b
}

// WithQuantum sets the round-robin quantum.
func (b Builder) WithQuantum(quantum int) Builder {
	b.quantum = quantum
	return b
}

// WithThreadsPerProcess sets how many threads the MT policy splits a process
// into.
func (b Builder) WithThreadsPerProcess(n int) Builder {
	b.threads = n
	return b
}

// WithPreloadPages sets how many leading pages are loaded when a process is
// created.
func (b Builder) WithPreloadPages(n int) Builder {
	b.preloadPages = n
	return b
}

// WithEviction selects how victim frames are picked, EvictionLRU or
// EvictionRandom.
func (b Builder) WithEviction(policy string) Builder {
	b.eviction = policy
	return b
}

// WithSeed sets the seed of the random eviction policy.
func (b Builder) WithSeed(seed int64) Builder {
	b.seed = seed
	return b
}

// WithBackingStoreDir sets the directory that keeps script copies. It is
// emptied when the simulation is built.
func (b Builder) WithBackingStoreDir(dir string) Builder {
	b.backingStoreDir = dir
	return b
}

// WithRunPolicy sets the policy used by Run.
func (b Builder) WithRunPolicy(policy scheduling.Policy) Builder {
	b.runPolicy = policy
	return b
}

// WithOutput sets where page faults and process errors are reported.
func (b Builder) WithOutput(out io.Writer) Builder {
	b.output = out
	return b
}

// WithLogger attaches loggers for events, paging, scheduling and threads.
func (b Builder) WithLogger(logger *log.Logger) Builder {
	b.logger = logger
	return b
}

// WithTraceDB records process, thread and page fault traces into a SQLite
// database. An empty name generates a unique one.
func (b Builder) WithTraceDB(name string) Builder {
	b.traceDB = name
	if name == "" {
		b.traceDB = idgen.SessionName("osim_trace_")
	}

	return b
}

// WithMonitoring starts the monitoring server when the simulation is built.
func (b Builder) WithMonitoring() Builder {
	b.monitorOn = true
	return b
}

// WithMonitorPort sets the port number for the monitoring server.
func (b Builder) WithMonitorPort(port int) Builder {
	b.monitorPort = port
	return b
}

func (b Builder) parametersMustBeValid() {
	if !b.monitorOn && b.monitorPort != 0 {
		panic("monitor port cannot be set when monitoring is disabled")
	}

	if b.eviction != EvictionLRU && b.eviction != EvictionRandom {
		panic(fmt.Sprintf("unknown eviction policy %q", b.eviction))
	}

	if b.preloadPages < 0 {
		panic("preload pages cannot be negative")
	}

	if b.backingStoreDir == "" {
		panic("backing store directory is not set")
	}
}

// Build builds the simulation. It panics if the backing store directory
// cannot be prepared.
func (b Builder) Build() *Simulation {
	b.parametersMustBeValid()

	s := &Simulation{
		id:            xid.New().String(),
		pids:          idgen.New(),
		preloadPages:  b.preloadPages,
		runPolicy:     b.runPolicy,
		compNameIndex: make(map[string]int),
	}

	store, err := backingstore.New(b.backingStoreDir)
	if err != nil {
		panic(err)
	}

	s.store = store
	s.engine = timing.NewSerialEngine()
	s.frames = framestore.MakeBuilder().
		WithPageSize(b.pageSize).
		WithTotalSize(b.frameStoreSize).
		Build("FrameStore")
	s.registry = kernel.NewRegistry("Registry", s.store, b.pageSize)
	s.pager = kernel.MakePagerBuilder().
		WithFrameStore(s.frames).
		WithBackingStore(s.store).
		WithRegistry(s.registry).
		WithVictimFinder(b.victimFinder()).
		WithOutput(b.output).
		Build("Pager")
	s.threads = threading.MakeBuilder().
		WithPager(s.pager).
		WithThreadsPerProcess(b.threads).
		Build("ThreadRunner")
	s.scheduler = scheduling.MakeBuilder().
		WithEngine(s.engine).
		WithPager(s.pager).
		WithThreadRunner(s.threads).
		WithQuantum(b.quantum).
		WithOutput(b.output).
		Build("Scheduler")

	s.RegisterComponent(s.frames)
	s.RegisterComponent(s.registry)
	s.RegisterComponent(s.pager)
	s.RegisterComponent(s.scheduler)
	s.RegisterComponent(s.threads)

	b.attachTracers(s)
	b.attachLoggers(s)
	s.attachProgress()

	if b.monitorOn {
		b.startMonitor(s)
	}

	return s
}

func (b Builder) victimFinder() framestore.VictimFinder {
	if b.eviction == EvictionRandom {
		return framestore.NewRandomVictimFinder(b.seed)
	}

	return framestore.NewLRUVictimFinder()
}

func (b Builder) attachTracers(s *Simulation) {
	domains := []tracing.NamedHookable{s.scheduler, s.threads, s.pager}

	s.stepCounter = tracing.NewStepCountTracer(func(tracing.Task) bool { return true })
	s.turnaround = tracing.NewTotalTimeTracer(s.engine,
		tracing.KindIs(tracing.KindProcess))
	s.faults = tracing.NewTotalTimeTracer(s.engine,
		tracing.KindIs(tracing.KindPageFault))

	for _, d := range domains {
		tracing.CollectTrace(d, s.stepCounter)
	}

	tracing.CollectTrace(s.scheduler, s.turnaround)
	tracing.CollectTrace(s.pager, s.faults)

	if b.traceDB == "" {
		return
	}

	s.dataRecorder = datarecording.New(b.traceDB)
	s.dbTracer = tracing.NewDBTracer(s.engine, s.dataRecorder)

	for _, d := range domains {
		tracing.CollectTrace(d, s.dbTracer)
	}
}

func (b Builder) attachLoggers(s *Simulation) {
	if b.logger == nil {
		return
	}

	s.engine.AcceptHook(timing.NewEventLogger(b.logger))

	paging := kernel.NewPagingLogger(b.logger)
	s.registry.AcceptHook(paging)
	s.pager.AcceptHook(paging)

	s.scheduler.AcceptHook(scheduling.NewLogger(b.logger))
	s.threads.AcceptHook(threading.NewLogger(b.logger))
}

func (b Builder) startMonitor(s *Simulation) {
	s.monitor = monitoring.NewMonitor()
	if b.monitorPort > 0 {
		s.monitor.WithPortNumber(b.monitorPort)
	}

	s.monitor.RegisterEngine(s.engine)
	s.monitor.RegisterFrameStore(s.frames)
	s.monitor.RegisterRegistry(s.registry)
	s.monitor.RegisterScheduler(s.scheduler)
	s.monitor.RegisterComponent(s.pager)
	s.monitor.RegisterComponent(s.threads)

	s.monitorURL = s.monitor.StartServer()
}
