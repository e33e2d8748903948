package timing

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/sarchlab/osim/instrumentation/hooking"
)

// SerialEngine drives a simulation one event at a time. In osim every
// dispatch of the scheduler is an event, so the current time counts
// dispatch cycles.
//
// A handler error ends Run at once. The scheduler relies on this to stop
// when a script quits. Events still queued at that point are kept.
type SerialEngine struct {
	*hooking.HookableBase

	clockMu sync.RWMutex
	cycle   VTimeInCycle

	// Primary events run before secondary ones scheduled for the same cycle.
	primary   eventQueue
	secondary eventQueue

	// gate is held while an event is handled and while the engine is
	// paused, so pausing waits for the running event to finish.
	gate     sync.Mutex
	pauseMu  sync.Mutex
	paused   bool
	runnerMu sync.Mutex
}

// NewSerialEngine creates an engine at cycle 0 with nothing scheduled.
func NewSerialEngine() *SerialEngine {
	return &SerialEngine{
		HookableBase: hooking.NewHookableBase(),
		primary:      newScheduledEventQueue(),
		secondary:    newScheduledEventQueue(),
	}
}

// Schedule queues an event. Scheduling before the current cycle is a bug in
// the caller and panics.
func (e *SerialEngine) Schedule(evt ScheduledEvent) {
	if now := e.CurrentTime(); evt.Time < now {
		panic(fmt.Sprintf(
			"timing: %s scheduled for cycle %d, but the engine is at cycle %d",
			reflect.TypeOf(evt.Event), evt.Time, now,
		))
	}

	queued := evt
	if queued.IsSecondary {
		e.secondary.Push(&queued)
	} else {
		e.primary.Push(&queued)
	}
}

// Run handles events until none are left or a handler fails. Only one Run
// can be in progress at a time.
func (e *SerialEngine) Run() error {
	e.runnerMu.Lock()
	defer e.runnerMu.Unlock()

	for e.primary.Len() > 0 || e.secondary.Len() > 0 {
		if err := e.handleNext(); err != nil {
			return err
		}
	}

	return nil
}

func (e *SerialEngine) handleNext() error {
	e.gate.Lock()
	defer e.gate.Unlock()

	evt := e.popEarliest()
	e.setCycle(evt.Time)

	ctx := hooking.HookCtx{Domain: e, Pos: HookPosBeforeEvent, Item: evt}
	e.InvokeHook(ctx)

	var err error
	if evt.Handler != nil {
		err = evt.Handler.Handle(evt.Event)
	}

	ctx.Pos = HookPosAfterEvent
	e.InvokeHook(ctx)

	return err
}

// popEarliest takes the earliest event. On a tie the primary event wins.
func (e *SerialEngine) popEarliest() *ScheduledEvent {
	switch {
	case e.primary.Len() == 0:
		return e.secondary.Pop()
	case e.secondary.Len() == 0:
		return e.primary.Pop()
	case e.primary.Peek().Time <= e.secondary.Peek().Time:
		return e.primary.Pop()
	default:
		return e.secondary.Pop()
	}
}

func (e *SerialEngine) setCycle(t VTimeInCycle) {
	e.clockMu.Lock()
	e.cycle = t
	e.clockMu.Unlock()
}

// Pause blocks the engine before its next event. The monitor uses it to
// freeze a running script. Pausing twice has no effect.
func (e *SerialEngine) Pause() {
	e.pauseMu.Lock()
	defer e.pauseMu.Unlock()

	if !e.paused {
		e.gate.Lock()
		e.paused = true
	}
}

// Continue lets a paused engine go on.
func (e *SerialEngine) Continue() {
	e.pauseMu.Lock()
	defer e.pauseMu.Unlock()

	if e.paused {
		e.paused = false
		e.gate.Unlock()
	}
}

// CurrentTime returns the cycle of the event being handled, or of the last
// one handled.
func (e *SerialEngine) CurrentTime() VTimeInCycle {
	e.clockMu.RLock()
	defer e.clockMu.RUnlock()

	return e.cycle
}

var _ Engine = (*SerialEngine)(nil)
