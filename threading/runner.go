package threading

import (
	"fmt"
	"sync"

	"github.com/sarchlab/osim/idgen"
	"github.com/sarchlab/osim/instrumentation/hooking"
	"github.com/sarchlab/osim/instrumentation/tracing"
	"github.com/sarchlab/osim/kernel"
	"github.com/sarchlab/osim/scheduling"
)

// Hook positions raised by the runner. The Item is always the thread.
var (
	HookPosThreadStart   = &hooking.HookPos{Name: "ThreadStart"}
	HookPosThreadStep    = &hooking.HookPos{Name: "ThreadStep"}
	HookPosThreadBlock   = &hooking.HookPos{Name: "ThreadBlock"}
	HookPosThreadUnblock = &hooking.HookPos{Name: "ThreadUnblock"}
	HookPosThreadEnd     = &hooking.HookPos{Name: "ThreadEnd"}
)

// Runner runs processes as groups of cooperative threads. Every call to Step
// runs one thread for one instruction.
type Runner struct {
	*hooking.HookableBase

	name      string
	pager     *kernel.Pager
	perProc   int
	ids       idgen.Generator
	mu        sync.Mutex
	schedules map[idgen.ID]*Scheduler
}

// Name returns the name of the runner.
func (r *Runner) Name() string {
	return r.name
}

// Step runs one thread step of the process. The process is split into
// threads on its first step. A thread that page faults is blocked for the
// rest of the round and rejoins the ready tail on the next step.
func (r *Runner) Step(
	p *kernel.PCB,
	executor scheduling.Executor,
) (finished bool, code int, err error) {
	sched, err := r.scheduleOf(p)
	if err != nil {
		return false, 0, err
	}

	for _, t := range sched.Blocked() {
		sched.Unblock(t)
		r.invoke(HookPosThreadUnblock, t)
	}

	t := sched.Next()
	if t == nil {
		return r.complete(p, sched), 0, nil
	}

	line, faulted, err := r.pager.Fetch(p.Script(), t.PC())
	if err != nil {
		return false, 0, fmt.Errorf("thread %d: %w", t.TID(), err)
	}

	if faulted {
		sched.Block(t)
		tracing.AddTaskStep(taskID(t), r, "blocked")
		r.invoke(HookPosThreadBlock, t)

		return false, 0, nil
	}

	code = executor.Execute(line)
	t.Advance()
	p.CountStep()
	r.invoke(HookPosThreadStep, t)

	if t.HasNext() {
		sched.Yield(t)
	} else {
		sched.Terminate(t)
		tracing.EndTask(taskID(t), r)
		r.invoke(HookPosThreadEnd, t)
	}

	return r.complete(p, sched), code, nil
}

// Abandon terminates every thread of the process.
func (r *Runner) Abandon(p *kernel.PCB) {
	r.mu.Lock()
	sched, found := r.schedules[p.PID()]
	delete(r.schedules, p.PID())
	r.mu.Unlock()

	if !found {
		return
	}

	for _, t := range sched.Threads() {
		sched.Terminate(t)
		tracing.AddTaskStep(taskID(t), r, "abandoned")
		tracing.EndTask(taskID(t), r)
		r.invoke(HookPosThreadEnd, t)
	}
}

// Threads returns the live threads of the process.
func (r *Runner) Threads(p *kernel.PCB) []*kernel.TCB {
	r.mu.Lock()
	sched, found := r.schedules[p.PID()]
	r.mu.Unlock()

	if !found {
		return nil
	}

	return sched.Threads()
}

func (r *Runner) scheduleOf(p *kernel.PCB) (*Scheduler, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sched, found := r.schedules[p.PID()]; found {
		return sched, nil
	}

	n := r.perProc
	if n > p.NumLines() {
		n = p.NumLines()
	}

	if n == 0 {
		n = 1
	}

	sched := NewScheduler(n)

	for i := 0; i < n; i++ {
		t := kernel.NewTCB(r.ids.Generate(), p, i, n)
		if err := sched.Add(t); err != nil {
			return nil, err
		}

		p.AddThread(t)
		tracing.StartTask(taskID(t), scheduling.TaskID(p), r, tracing.KindThread,
			fmt.Sprintf("%s#%d", p.Script().Name(), i), t)
		r.invoke(HookPosThreadStart, t)
	}

	r.schedules[p.PID()] = sched

	return sched, nil
}

func (r *Runner) complete(p *kernel.PCB, sched *Scheduler) bool {
	if sched.HasWork() {
		return false
	}

	r.mu.Lock()
	delete(r.schedules, p.PID())
	r.mu.Unlock()

	p.Complete()

	return true
}

func taskID(t *kernel.TCB) string {
	return fmt.Sprintf("%s.T%d", scheduling.TaskID(t.Parent()), t.TID())
}

func (r *Runner) invoke(pos *hooking.HookPos, t *kernel.TCB) {
	if r.NumHooks() == 0 {
		return
	}

	r.InvokeHook(hooking.HookCtx{Domain: r, Pos: pos, Item: t})
}

var _ scheduling.ThreadRunner = (*Runner)(nil)
