package timing

import (
	"log"
	"reflect"

	"github.com/sarchlab/osim/instrumentation/hooking"
)

// Named is implemented by handlers that want their name in the event log.
type Named interface {
	Name() string
}

// EventLogger is a hook that prints the event information.
type EventLogger struct {
	hooking.LogHookBase
}

// NewEventLogger returns a new EventLogger which will write in to the logger.
func NewEventLogger(logger *log.Logger) *EventLogger {
	h := new(EventLogger)
	h.Logger = logger

	return h
}

// Func writes the event information into the logger.
func (h *EventLogger) Func(ctx hooking.HookCtx) {
	if ctx.Pos != HookPosBeforeEvent {
		return
	}

	evt, ok := ctx.Item.(*ScheduledEvent)
	if !ok {
		return
	}

	if named, ok := evt.Handler.(Named); ok {
		h.Printf("%d, %s -> %s", evt.Time, reflect.TypeOf(evt.Event), named.Name())
		return
	}

	h.Printf("%d, %s", evt.Time, reflect.TypeOf(evt.Event))
}
