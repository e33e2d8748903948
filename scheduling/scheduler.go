package scheduling

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/sarchlab/osim/idgen"
	"github.com/sarchlab/osim/instrumentation/hooking"
	"github.com/sarchlab/osim/instrumentation/tracing"
	"github.com/sarchlab/osim/kernel"
	"github.com/sarchlab/osim/timing"
)

// An Executor runs one instruction line. A negative return code asks the
// scheduler to stop dispatching altogether.
type Executor interface {
	Execute(line string) int
}

// ExecutorFunc adapts a function into an Executor.
type ExecutorFunc func(line string) int

// Execute calls f(line).
func (f ExecutorFunc) Execute(line string) int {
	return f(line)
}

// A ThreadRunner runs a process as a group of cooperative threads, one thread
// step at a time.
type ThreadRunner interface {
	// Step runs one thread step of the process. finished is true once every
	// thread of the process has terminated.
	Step(p *kernel.PCB, executor Executor) (finished bool, code int, err error)

	// Abandon drops the threads of a process that will not run again.
	Abandon(p *kernel.PCB)
}

// dispatchEvent asks the scheduler to make one dispatch decision.
type dispatchEvent struct{}

// Snapshot describes what the scheduler is doing.
type Snapshot struct {
	Active  bool
	Policy  string
	Running *idgen.ID
	Ready   []idgen.ID
}

// Scheduler owns the ready queue and the CPU. Each engine cycle it runs one
// instruction of the running process, or serves one page fault.
type Scheduler struct {
	*hooking.HookableBase

	name     string
	engine   timing.Engine
	pager    *kernel.Pager
	executor Executor
	threads  ThreadRunner
	out      io.Writer
	quantum  int

	ready *ReadyQueue

	mu      sync.Mutex
	active  bool
	policy  Policy
	running *kernel.PCB
	slice   int
}

// Name returns the name of the scheduler.
func (s *Scheduler) Name() string {
	return s.name
}

// ReadyQueue returns the queue of waiting processes.
func (s *Scheduler) ReadyQueue() *ReadyQueue {
	return s.ready
}

// RegisterExecutor sets what runs each instruction.
func (s *Scheduler) RegisterExecutor(executor Executor) {
	s.executor = executor
}

// Snapshot returns the current scheduling state.
func (s *Scheduler) Snapshot() Snapshot {
	s.mu.Lock()
	snapshot := Snapshot{Active: s.active}

	if s.active {
		snapshot.Policy = s.policy.String()
	}

	if s.running != nil {
		pid := s.running.PID()
		snapshot.Running = &pid
	}
	s.mu.Unlock()

	snapshot.Ready = s.ready.PIDs()

	return snapshot
}

// Run schedules the processes under the policy and returns when they have
// all finished. The scheduler takes over the processes: each one is released
// when it finishes or fails.
//
// If the scheduler is already running, which happens when a running
// instruction itself starts processes, the processes join the active ready
// queue under the active policy and Run returns at once.
func (s *Scheduler) Run(policy Policy, pcbs []*kernel.PCB) error {
	if s.executor == nil {
		panic("scheduling: no executor registered")
	}

	s.mu.Lock()
	if s.active {
		s.mu.Unlock()

		for _, p := range pcbs {
			s.admit(p)
		}

		return nil
	}

	if policy == MT && s.threads == nil {
		s.mu.Unlock()
		s.releaseAll(pcbs)

		return fmt.Errorf("scheduling: policy %s needs a thread runner", policy)
	}

	s.active = true
	s.policy = policy
	s.running = nil
	s.slice = 0
	s.mu.Unlock()

	for _, p := range pcbs {
		s.admit(p)
	}

	switch policy {
	case SJF:
		s.ready.SortByKey(lineCount)
	case Aging:
		s.ready.SortByKey(score)
	}

	s.scheduleDispatch()

	err := s.engine.Run()

	s.mu.Lock()
	s.active = false
	s.mu.Unlock()

	return err
}

// Handle processes the events scheduled by the scheduler itself.
func (s *Scheduler) Handle(e any) error {
	switch e.(type) {
	case dispatchEvent:
		return s.dispatch()
	default:
		panic(fmt.Sprintf("scheduling: cannot handle event of type %T", e))
	}
}

func (s *Scheduler) admit(p *kernel.PCB) {
	tracing.StartTask(TaskID(p), "", s, tracing.KindProcess, p.Script().Name(), p)
	s.ready.PushBack(p)
	s.invoke(HookPosProcessAdmit, p, nil)
}

// TaskID returns the ID of the trace task that follows the process.
func TaskID(p *kernel.PCB) string {
	return fmt.Sprintf("P%d", p.PID())
}

func (s *Scheduler) scheduleDispatch() {
	s.engine.Schedule(timing.ScheduledEvent{
		Event:   dispatchEvent{},
		Time:    s.engine.CurrentTime() + 1,
		Handler: s,
	})
}

func (s *Scheduler) dispatch() error {
	p := s.currentOrNext()
	if p == nil {
		return nil
	}

	var code int

	switch s.policy {
	case MT:
		code = s.stepThreads(p)
	case RR:
		code = s.stepRoundRobin(p)
	default:
		code = s.stepInline(p)
	}

	if code < 0 {
		s.halt()
		return ErrHalted
	}

	s.scheduleDispatch()

	return nil
}

func (s *Scheduler) currentOrNext() *kernel.PCB {
	s.mu.Lock()
	p := s.running
	s.mu.Unlock()

	if p != nil {
		return p
	}

	for {
		p = s.ready.PopFront()
		if p == nil {
			return nil
		}

		if !p.Done() {
			break
		}

		s.finish(p, nil)
	}

	s.setRunning(p)
	tracing.AddTaskStep(TaskID(p), s, "dispatch")
	s.invoke(HookPosDispatch, p, nil)

	return p
}

// stepInline serves a fault and runs the instruction in the same step. It is
// used by FCFS, SJF, and aging.
func (s *Scheduler) stepInline(p *kernel.PCB) int {
	code, status := s.execute(p, false)
	if status != stepExecuted || code < 0 {
		return code
	}

	if p.Done() {
		s.finish(p, nil)
		return code
	}

	if s.policy == Aging {
		s.age(p)
	}

	return code
}

// stepRoundRobin runs one instruction of the slice. A fault ends the slice
// and the instruction is retried on the next turn of the process.
func (s *Scheduler) stepRoundRobin(p *kernel.PCB) int {
	code, status := s.execute(p, true)

	switch status {
	case stepFailed:
		return 0
	case stepFaulted:
		s.preempt(p, s.ready.PushBack)
		return 0
	}

	if code < 0 {
		return code
	}

	if p.Done() {
		s.finish(p, nil)
		return code
	}

	s.mu.Lock()
	s.slice++
	expired := s.slice >= s.quantum
	s.mu.Unlock()

	if expired {
		s.preempt(p, s.ready.PushBack)
	}

	return code
}

func (s *Scheduler) stepThreads(p *kernel.PCB) int {
	finished, code, err := s.threads.Step(p, s.executor)
	if err != nil {
		s.threads.Abandon(p)
		s.finish(p, err)

		return 0
	}

	if code < 0 {
		return code
	}

	if finished {
		s.finish(p, nil)
	}

	return code
}

type stepStatus int

const (
	stepExecuted stepStatus = iota
	stepFaulted
	stepFailed
)

// execute fetches and runs the instruction at the program counter of p. If
// giveUpOnFault is set, a page fault is served but the instruction is left for
// a later turn.
func (s *Scheduler) execute(p *kernel.PCB, giveUpOnFault bool) (int, stepStatus) {
	pc := p.PC

	line, faulted, err := s.pager.Fetch(p.Script(), pc)
	if err != nil {
		s.finish(p, err)
		return 0, stepFailed
	}

	inst := Instruction{PC: pc, Line: line, Faulted: faulted}

	if faulted {
		tracing.AddTaskStep(TaskID(p), s, "page_fault")
	}

	if faulted && giveUpOnFault {
		s.invoke(HookPosInstruction, p, inst)
		return 0, stepFaulted
	}

	code := s.executor.Execute(line)
	p.Advance()

	inst.Executed = true
	inst.Code = code
	s.invoke(HookPosInstruction, p, inst)

	return code, stepExecuted
}

// age lowers the score of every waiting process and hands the CPU to the
// head of the queue if it now has a strictly lower score than the running
// process.
func (s *Scheduler) age(running *kernel.PCB) {
	s.ready.Each(func(p *kernel.PCB) {
		if p.JobLengthScore > 0 {
			p.JobLengthScore--
		}
	})
	s.ready.SortByKey(score)

	head := s.ready.Front()
	if head == nil || head.JobLengthScore >= running.JobLengthScore {
		return
	}

	s.preempt(running, func(p *kernel.PCB) {
		s.ready.InsertAfterEqual(p, score)
	})
}

func (s *Scheduler) preempt(p *kernel.PCB, requeue func(p *kernel.PCB)) {
	s.setRunning(nil)
	tracing.AddTaskStep(TaskID(p), s, "preempt")
	s.invoke(HookPosPreempt, p, nil)
	requeue(p)
}

// finish removes a process for good. err is nil if it ran to completion.
func (s *Scheduler) finish(p *kernel.PCB, err error) {
	s.setRunning(nil)

	if err != nil {
		fmt.Fprintf(s.out, "Error: process %d (%s) terminated: %v\n",
			p.PID(), p.Script().Name(), err)
		tracing.AddTaskStep(TaskID(p), s, "failed")
	}

	if relErr := p.Release(); relErr != nil {
		err = errors.Join(err, relErr)
		fmt.Fprintf(s.out, "Error: %v\n", relErr)
	}

	tracing.EndTask(TaskID(p), s)
	s.invoke(HookPosProcessEnd, p, ProcessEnd{Err: err})
}

// halt drops every process held by the scheduler.
func (s *Scheduler) halt() {
	s.mu.Lock()
	p := s.running
	s.running = nil
	s.mu.Unlock()

	held := s.ready.Drain()
	if p != nil {
		held = append([]*kernel.PCB{p}, held...)
	}

	for _, p := range held {
		tracing.AddTaskStep(TaskID(p), s, "halted")
		tracing.EndTask(TaskID(p), s)
		s.invoke(HookPosHalt, p, nil)
	}

	s.releaseAll(held)
}

func (s *Scheduler) releaseAll(pcbs []*kernel.PCB) {
	for _, p := range pcbs {
		if s.threads != nil {
			s.threads.Abandon(p)
		}

		_ = p.Release()
	}
}

func (s *Scheduler) setRunning(p *kernel.PCB) {
	s.mu.Lock()
	s.running = p
	s.slice = 0
	s.mu.Unlock()
}

func (s *Scheduler) invoke(pos *hooking.HookPos, p *kernel.PCB, detail any) {
	if s.NumHooks() == 0 {
		return
	}

	s.InvokeHook(hooking.HookCtx{Domain: s, Pos: pos, Item: p, Detail: detail})
}

func lineCount(p *kernel.PCB) int {
	return p.NumLines()
}

func score(p *kernel.PCB) int {
	return p.JobLengthScore
}

var _ timing.Handler = (*Scheduler)(nil)
