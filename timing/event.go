// Package timing provides the discrete event engine that drives the scheduler.
// One engine cycle corresponds to one dispatch decision of the simulated CPU.
package timing

import "github.com/sarchlab/osim/instrumentation/hooking"

// VTimeInCycle is the logical time of the simulation, counted in cycles.
type VTimeInCycle uint64

// Handler processes events of various types. Events are plain data structs;
// handlers use type switching to tell them apart.
type Handler interface {
	Handle(event any) error
}

// TimeTeller exposes the current simulation cycle.
type TimeTeller interface {
	CurrentTime() VTimeInCycle
}

// EventScheduler schedules events in the simulation timeline.
type EventScheduler interface {
	TimeTeller
	Schedule(event ScheduledEvent)
}

// Engine keeps the discrete event simulation running.
type Engine interface {
	hooking.Hookable
	EventScheduler

	// Run processes all the events until there is nothing left to do.
	Run() error

	// Pause blocks event dispatching until Continue is called.
	Pause()

	// Continue resumes a paused engine.
	Continue()
}

// ScheduledEvent is the engine-facing wrapper for user-defined events.
type ScheduledEvent struct {
	// Event is the data payload to be delivered to the handler.
	Event any

	// Time is the cycle when the event should be processed.
	Time VTimeInCycle

	// Handler is the component that will process this event.
	Handler Handler

	// IsSecondary indicates if this event should be processed after all
	// primary events at the same time.
	IsSecondary bool
}

// HookPosBeforeEvent is a hook position that triggers before handling an event.
var HookPosBeforeEvent = &hooking.HookPos{Name: "BeforeEvent"}

// HookPosAfterEvent is a hook position that triggers after handling an event.
var HookPosAfterEvent = &hooking.HookPos{Name: "AfterEvent"}
