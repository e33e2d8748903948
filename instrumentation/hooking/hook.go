// Package hooking lets observers attach to the simulated kernel without the
// kernel knowing who is listening. Loggers, tracers, progress bars and tests
// all watch the scheduler, the pager and the registry through hooks.
package hooking

// HookPos names a point where a domain fires its hooks, such as a page fault
// or a dispatch.
type HookPos struct {
	Name string
}

// HookCtx describes one firing of a hook.
type HookCtx struct {
	Domain Hookable
	Pos    *HookPos

	// Item is what the hook is about: an event, a process, a thread, or a
	// script.
	Item any

	// Detail is extra data that depends on Pos. It may be nil.
	Detail any
}

// Hookable is implemented by every component that can be observed.
// Hooks are added before the simulation runs and are never removed.
type Hookable interface {
	AcceptHook(hook Hook)
	NumHooks() int
	Hooks() []Hook
	InvokeHook(ctx HookCtx)
}

// Hook reacts to a domain reaching a hook position.
type Hook interface {
	Func(ctx HookCtx)
}

// HookFunc lets a plain function serve as a Hook.
type HookFunc func(ctx HookCtx)

// Func calls f.
func (f HookFunc) Func(ctx HookCtx) {
	f(ctx)
}

// HookableBase keeps the hook list for the components that embed it. Hooks
// run in the order they were added.
type HookableBase struct {
	hooks []Hook
}

// NewHookableBase returns a HookableBase without hooks.
func NewHookableBase() *HookableBase {
	return &HookableBase{hooks: []Hook{}}
}

// NumHooks returns how many hooks are attached.
func (h *HookableBase) NumHooks() int {
	return len(h.hooks)
}

// Hooks returns the attached hooks.
func (h *HookableBase) Hooks() []Hook {
	return h.hooks
}

// AcceptHook attaches a hook. Attaching the same logger or tracer twice
// panics, since every event would then be reported twice. A HookFunc cannot
// be compared and is always accepted.
func (h *HookableBase) AcceptHook(hook Hook) {
	if _, isFunc := hook.(HookFunc); !isFunc && h.has(hook) {
		panic("hooking: hook attached twice")
	}

	h.hooks = append(h.hooks, hook)
}

func (h *HookableBase) has(hook Hook) bool {
	for _, attached := range h.hooks {
		if _, isFunc := attached.(HookFunc); isFunc {
			continue
		}

		if attached == hook {
			return true
		}
	}

	return false
}

// InvokeHook runs every attached hook with ctx.
func (h *HookableBase) InvokeHook(ctx HookCtx) {
	for _, hook := range h.hooks {
		hook.Func(ctx)
	}
}

var _ Hookable = (*HookableBase)(nil)
