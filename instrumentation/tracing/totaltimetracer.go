package tracing

import (
	"sync"

	"github.com/sarchlab/osim/timing"
)

// TotalTimeTracer adds up the cycles spent between the start and the end of
// the tasks that pass its filter. Overlapping tasks are simply added.
type TotalTimeTracer struct {
	timeTeller    timing.TimeTeller
	filter        TaskFilter
	lock          sync.Mutex
	totalTime     timing.VTimeInCycle
	taskCount     int
	inflightTasks map[string]Task
}

// NewTotalTimeTracer creates a new TotalTimeTracer.
func NewTotalTimeTracer(
	timeTeller timing.TimeTeller,
	filter TaskFilter,
) *TotalTimeTracer {
	return &TotalTimeTracer{
		timeTeller:    timeTeller,
		filter:        filter,
		inflightTasks: make(map[string]Task),
	}
}

// TotalTime returns the cycles spent on the completed tasks.
func (t *TotalTimeTracer) TotalTime() timing.VTimeInCycle {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.totalTime
}

// TaskCount returns the number of completed tasks.
func (t *TotalTimeTracer) TaskCount() int {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.taskCount
}

// AverageTime returns the mean number of cycles per completed task.
func (t *TotalTimeTracer) AverageTime() float64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	if t.taskCount == 0 {
		return 0
	}

	return float64(t.totalTime) / float64(t.taskCount)
}

// StartTask records the task start time.
func (t *TotalTimeTracer) StartTask(task Task) {
	if !t.filter(task) {
		return
	}

	task.StartTime = t.timeTeller.CurrentTime()

	t.lock.Lock()
	t.inflightTasks[task.ID] = task
	t.lock.Unlock()
}

// StepTask does nothing.
func (t *TotalTimeTracer) StepTask(_ Task) {
	// Do nothing
}

// EndTask records the end of the task.
func (t *TotalTimeTracer) EndTask(task Task) {
	now := t.timeTeller.CurrentTime()

	t.lock.Lock()
	defer t.lock.Unlock()

	originalTask, ok := t.inflightTasks[task.ID]
	if !ok {
		return
	}

	t.totalTime += now - originalTask.StartTime
	t.taskCount++
	delete(t.inflightTasks, task.ID)
}
