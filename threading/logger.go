package threading

import (
	"log"

	"github.com/sarchlab/osim/instrumentation/hooking"
	"github.com/sarchlab/osim/kernel"
)

// Logger writes thread activity into a logger.
type Logger struct {
	hooking.LogHookBase
}

// NewLogger creates a thread Logger.
func NewLogger(logger *log.Logger) *Logger {
	h := new(Logger)
	h.Logger = logger

	return h
}

// Func logs the hook.
func (h *Logger) Func(ctx hooking.HookCtx) {
	t, ok := ctx.Item.(*kernel.TCB)
	if !ok {
		return
	}

	h.Printf("%s %s", ctx.Pos.Name, t)
}
