package kernel

import (
	"log"

	"github.com/sarchlab/osim/instrumentation/hooking"
	"github.com/sarchlab/osim/mem/framestore"
)

// Hook positions raised by the registry and the pager.
var (
	HookPosScriptLoad     = &hooking.HookPos{Name: "ScriptLoad"}
	HookPosScriptShare    = &hooking.HookPos{Name: "ScriptShare"}
	HookPosScriptTeardown = &hooking.HookPos{Name: "ScriptTeardown"}
	HookPosPageFault      = &hooking.HookPos{Name: "PageFault"}
	HookPosPageEvict      = &hooking.HookPos{Name: "PageEvict"}
)

// PageFault is the Item of a HookPosPageFault hook.
type PageFault struct {
	Script *Script
	Page   int
	Frame  int

	// Victim is the frame content sacrificed to serve the fault, if any.
	Victim *framestore.Frame
}

// PagingLogger writes script and paging activity into a logger.
type PagingLogger struct {
	hooking.LogHookBase
}

// NewPagingLogger creates a PagingLogger writing to logger.
func NewPagingLogger(logger *log.Logger) *PagingLogger {
	h := new(PagingLogger)
	h.Logger = logger

	return h
}

// Func logs the hook.
func (h *PagingLogger) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case HookPosScriptLoad, HookPosScriptShare, HookPosScriptTeardown:
		s := ctx.Item.(*Script)
		h.Printf("%s script=%s id=%d lines=%d pages=%d refs=%d",
			ctx.Pos.Name, s.Name(), s.ID(), s.NumLines(), s.NumPages(), s.RefCount())
	case HookPosPageFault:
		f := ctx.Item.(PageFault)
		h.Printf("%s script=%s page=%d frame=%d evicted=%t",
			ctx.Pos.Name, f.Script.Name(), f.Page, f.Frame, f.Victim != nil)
	case HookPosPageEvict:
		f := ctx.Item.(framestore.Frame)
		h.Printf("%s frame=%d script=%s page=%d",
			ctx.Pos.Name, f.Index, f.Owner.ScriptName, f.Owner.Page)
	}
}
