package scheduling

import (
	"log"

	"github.com/sarchlab/osim/instrumentation/hooking"
	"github.com/sarchlab/osim/kernel"
)

// Hook positions raised by the scheduler. The Item is always the process.
var (
	HookPosProcessAdmit = &hooking.HookPos{Name: "ProcessAdmit"}
	HookPosDispatch     = &hooking.HookPos{Name: "Dispatch"}
	HookPosInstruction  = &hooking.HookPos{Name: "Instruction"}
	HookPosPreempt      = &hooking.HookPos{Name: "Preempt"}
	HookPosProcessEnd   = &hooking.HookPos{Name: "ProcessEnd"}
	HookPosHalt         = &hooking.HookPos{Name: "Halt"}
)

// Instruction is the Detail of a HookPosInstruction hook.
type Instruction struct {
	PC      kernel.ProgramCounter
	Line    string
	Faulted bool

	// Executed is false when a page fault made the process give up its
	// slice before running the line.
	Executed bool
	Code     int
}

// ProcessEnd is the Detail of a HookPosProcessEnd hook. Err is nil for a
// process that ran to completion.
type ProcessEnd struct {
	Err error
}

// Logger writes scheduling decisions into a logger.
type Logger struct {
	hooking.LogHookBase
}

// NewLogger creates a scheduling Logger.
func NewLogger(logger *log.Logger) *Logger {
	h := new(Logger)
	h.Logger = logger

	return h
}

// Func logs the hook.
func (h *Logger) Func(ctx hooking.HookCtx) {
	p, ok := ctx.Item.(*kernel.PCB)
	if !ok {
		return
	}

	switch ctx.Pos {
	case HookPosInstruction:
		inst := ctx.Detail.(Instruction)
		h.Printf("%s %s pc=%s faulted=%t executed=%t code=%d %q",
			ctx.Pos.Name, p, inst.PC, inst.Faulted, inst.Executed, inst.Code, inst.Line)
	case HookPosProcessEnd:
		end := ctx.Detail.(ProcessEnd)
		h.Printf("%s %s executed=%d err=%v", ctx.Pos.Name, p, p.Executed(), end.Err)
	default:
		h.Printf("%s %s score=%d", ctx.Pos.Name, p, p.JobLengthScore)
	}
}
