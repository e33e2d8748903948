// Package simulation wires the engine, the memory system, the schedulers and
// the instrumentation into one simulated machine that runs scripts.
package simulation

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sarchlab/osim/datarecording"
	"github.com/sarchlab/osim/idgen"
	"github.com/sarchlab/osim/instrumentation/hooking"
	"github.com/sarchlab/osim/instrumentation/tracing"
	"github.com/sarchlab/osim/kernel"
	"github.com/sarchlab/osim/mem/backingstore"
	"github.com/sarchlab/osim/mem/framestore"
	"github.com/sarchlab/osim/monitoring"
	"github.com/sarchlab/osim/scheduling"
	"github.com/sarchlab/osim/threading"
	"github.com/sarchlab/osim/timing"
)

// A Component is a named part of the simulation.
type Component interface {
	Name() string
}

// A Simulation owns every part of the simulated machine.
type Simulation struct {
	id string

	engine    *timing.SerialEngine
	store     *backingstore.DiskStore
	frames    *framestore.FrameStore
	registry  *kernel.Registry
	pager     *kernel.Pager
	scheduler *scheduling.Scheduler
	threads   *threading.Runner

	pids         idgen.Generator
	preloadPages int
	runPolicy    scheduling.Policy

	stepCounter  *tracing.StepCountTracer
	turnaround   *tracing.TotalTimeTracer
	faults       *tracing.TotalTimeTracer
	dataRecorder datarecording.DataRecorder
	dbTracer     *tracing.DBTracer

	monitor    *monitoring.Monitor
	monitorURL string

	progressLock sync.Mutex
	progress     *monitoring.ProgressBar

	components    []Component
	compNameIndex map[string]int
}

// ID returns the unique ID of the simulation.
func (s *Simulation) ID() string {
	return s.id
}

// GetEngine returns the engine used in the simulation.
func (s *Simulation) GetEngine() *timing.SerialEngine {
	return s.engine
}

// GetRegistry returns the script registry.
func (s *Simulation) GetRegistry() *kernel.Registry {
	return s.registry
}

// GetFrameStore returns the frame store.
func (s *Simulation) GetFrameStore() *framestore.FrameStore {
	return s.frames
}

// GetPager returns the pager.
func (s *Simulation) GetPager() *kernel.Pager {
	return s.pager
}

// GetScheduler returns the process scheduler.
func (s *Simulation) GetScheduler() *scheduling.Scheduler {
	return s.scheduler
}

// GetThreadRunner returns the runner used by the MT policy.
func (s *Simulation) GetThreadRunner() *threading.Runner {
	return s.threads
}

// GetDataRecorder returns the data recorder used in the simulation. It is nil
// unless a trace database was requested.
func (s *Simulation) GetDataRecorder() datarecording.DataRecorder {
	return s.dataRecorder
}

// GetMonitor returns the monitor used in the simulation, if any.
func (s *Simulation) GetMonitor() *monitoring.Monitor {
	return s.monitor
}

// MonitorURL returns the address of the monitoring server, or "" when
// monitoring is off.
func (s *Simulation) MonitorURL() string {
	return s.monitorURL
}

// RegisterComponent registers a component with the simulation.
func (s *Simulation) RegisterComponent(c Component) {
	compName := c.Name()
	if _, found := s.compNameIndex[compName]; found {
		panic("component " + compName + " already registered")
	}

	s.components = append(s.components, c)
	s.compNameIndex[compName] = len(s.components) - 1
}

// GetComponentByName returns the component with the given name.
func (s *Simulation) GetComponentByName(name string) Component {
	i, found := s.compNameIndex[name]
	if !found {
		return nil
	}

	return s.components[i]
}

// Components returns all the registered components.
func (s *Simulation) Components() []Component {
	return append([]Component(nil), s.components...)
}

// RegisterExecutor sets what runs each instruction line.
func (s *Simulation) RegisterExecutor(e scheduling.Executor) {
	s.scheduler.RegisterExecutor(e)
}

// Run runs one script under the run policy.
func (s *Simulation) Run(name string) error {
	return s.Exec([]string{name}, s.runPolicy)
}

// Exec runs the scripts together under the policy. Every script is loaded
// before any of them is scheduled; if one cannot be loaded, the ones already
// loaded are released and nothing runs.
func (s *Simulation) Exec(names []string, policy scheduling.Policy) error {
	refs := make([]*kernel.ScriptRef, 0, len(names))

	for _, name := range names {
		ref, err := s.registry.Load(name)
		if err != nil {
			return errors.Join(err, releaseRefs(refs))
		}

		refs = append(refs, ref)
	}

	pcbs := make([]*kernel.PCB, 0, len(refs))
	total := uint64(0)

	for _, ref := range refs {
		if err := s.pager.Preload(ref.Script(), s.preloadPages); err != nil {
			return errors.Join(err, releaseRefs(refs))
		}

		total += uint64(ref.Script().NumLines())
	}

	for _, ref := range refs {
		pcbs = append(pcbs, kernel.NewPCB(s.pids.Generate(), ref))
	}

	outermost := s.trackProgress(names, total)

	err := s.scheduler.Run(policy, pcbs)

	if outermost {
		s.completeProgress()
	}

	return err
}

func releaseRefs(refs []*kernel.ScriptRef) error {
	var errs []error

	for _, ref := range refs {
		errs = append(errs, ref.Release())
	}

	return errors.Join(errs...)
}

func (s *Simulation) trackProgress(names []string, total uint64) bool {
	if s.monitor == nil {
		return false
	}

	s.progressLock.Lock()
	defer s.progressLock.Unlock()

	if s.progress != nil {
		s.progress.IncreaseTotal(total)
		return false
	}

	s.progress = s.monitor.CreateProgressBar(strings.Join(names, " "), total)

	return true
}

func (s *Simulation) completeProgress() {
	s.progressLock.Lock()
	defer s.progressLock.Unlock()

	s.monitor.CompleteProgressBar(s.progress)
	s.progress = nil
}

func (s *Simulation) attachProgress() {
	s.scheduler.AcceptHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
		if ctx.Pos != scheduling.HookPosInstruction {
			return
		}

		if inst, ok := ctx.Detail.(scheduling.Instruction); ok && inst.Executed {
			s.instructionFinished()
		}
	}))

	s.threads.AcceptHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
		if ctx.Pos == threading.HookPosThreadStep {
			s.instructionFinished()
		}
	}))
}

func (s *Simulation) instructionFinished() {
	s.progressLock.Lock()
	defer s.progressLock.Unlock()

	if s.progress != nil {
		s.progress.IncrementFinished(1)
	}
}

// Stats summarizes what the simulation has done so far.
type Stats struct {
	Cycles            timing.VTimeInCycle
	Processes         int
	AverageTurnaround float64
	PageFaults        int
	Evictions         uint64
	Preemptions       uint64
	BlockedThreads    uint64
	FailedProcesses   uint64
}

func (st Stats) String() string {
	return fmt.Sprintf(
		"cycles: %d\nprocesses: %d\naverage turnaround: %.2f cycles\n"+
			"page faults: %d\nevictions: %d\npreemptions: %d\n"+
			"blocked threads: %d\nfailed processes: %d\n",
		st.Cycles, st.Processes, st.AverageTurnaround,
		st.PageFaults, st.Evictions, st.Preemptions,
		st.BlockedThreads, st.FailedProcesses)
}

// Stats returns the counters collected by the tracers.
func (s *Simulation) Stats() Stats {
	return Stats{
		Cycles:            s.engine.CurrentTime(),
		Processes:         s.turnaround.TaskCount(),
		AverageTurnaround: s.turnaround.AverageTime(),
		PageFaults:        s.faults.TaskCount(),
		Evictions:         s.stepCounter.GetStepCount("evict"),
		Preemptions:       s.stepCounter.GetStepCount("preempt"),
		BlockedThreads:    s.stepCounter.GetStepCount("blocked"),
		FailedProcesses:   s.stepCounter.GetStepCount("failed"),
	}
}

// Terminate stops the monitor, flushes the trace database and removes the
// backing store.
func (s *Simulation) Terminate() error {
	var errs []error

	if s.monitor != nil {
		errs = append(errs, s.monitor.StopServer())
	}

	if s.dataRecorder != nil {
		s.dbTracer.Terminate()
		errs = append(errs, s.dataRecorder.Close())
	}

	errs = append(errs, s.store.Close())

	return errors.Join(errs...)
}
