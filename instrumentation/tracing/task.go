package tracing

import "github.com/sarchlab/osim/timing"

// A TaskStep represents a milestone in the processing of a task.
type TaskStep struct {
	Time timing.VTimeInCycle `json:"time"`
	What string              `json:"what"`
}

// A Task is a piece of work followed from start to end.
type Task struct {
	ID        string              `json:"id"`
	ParentID  string              `json:"parent_id"`
	Kind      string              `json:"kind"`
	What      string              `json:"what"`
	Location  string              `json:"location"`
	StartTime timing.VTimeInCycle `json:"start_time"`
	EndTime   timing.VTimeInCycle `json:"end_time"`
	Steps     []TaskStep          `json:"steps"`
	Detail    any                 `json:"-"`
}

// TaskFilter is a function that can filter interesting tasks. If this function
// returns true, the task is considered useful.
type TaskFilter func(t Task) bool

// KindIs returns a filter that keeps the tasks of one kind.
func KindIs(kind string) TaskFilter {
	return func(t Task) bool { return t.Kind == kind }
}

// Task kinds reported by the simulator.
const (
	KindProcess   = "process"
	KindThread    = "thread"
	KindPageFault = "page_fault"
)
