// Package tracing turns the activity of simulated processes, threads, and
// page faults into tasks. A task starts, collects named steps, and ends. The
// domains that own the work report it through StartTask, AddTaskStep, and
// EndTask, and tracers attached with CollectTrace consume it.
package tracing
