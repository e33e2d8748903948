package tracing

import (
	"sync"

	"github.com/sarchlab/osim/datarecording"
	"github.com/sarchlab/osim/timing"
)

// TaskEntry is one row of the task table.
type TaskEntry struct {
	ID        string
	ParentID  string
	Kind      string
	What      string
	Location  string
	StartTime uint64
	EndTime   uint64
}

// StepEntry is one row of the step table.
type StepEntry struct {
	TaskID string
	Time   uint64
	What   string
}

// Table names used by the DBTracer.
const (
	TaskTable = "trace"
	StepTable = "trace_steps"
)

// DBTracer is a tracer that stores tasks and their steps into a DataRecorder.
type DBTracer struct {
	mu         sync.Mutex
	timeTeller timing.TimeTeller
	backend    datarecording.DataRecorder

	tracingTasks map[string]Task
}

// NewDBTracer creates a new DBTracer and the tables it writes into.
func NewDBTracer(
	timeTeller timing.TimeTeller,
	dataRecorder datarecording.DataRecorder,
) *DBTracer {
	dataRecorder.CreateTable(TaskTable, TaskEntry{})
	dataRecorder.CreateTable(StepTable, StepEntry{})

	return &DBTracer{
		timeTeller:   timeTeller,
		backend:      dataRecorder,
		tracingTasks: make(map[string]Task),
	}
}

// StartTask marks the start of a task.
func (t *DBTracer) StartTask(task Task) {
	t.mu.Lock()
	defer t.mu.Unlock()

	startingTaskMustBeValid(task)

	task.StartTime = t.timeTeller.CurrentTime()
	t.tracingTasks[task.ID] = task
}

func startingTaskMustBeValid(task Task) {
	if task.ID == "" {
		panic("task ID must be set")
	}

	if task.Kind == "" {
		panic("task kind must be set")
	}

	if task.What == "" {
		panic("task what must be set")
	}

	if task.Location == "" {
		panic("task location must be set")
	}
}

// StepTask records a step of a traced task.
func (t *DBTracer) StepTask(task Task) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.tracingTasks[task.ID]; !ok {
		return
	}

	for _, step := range task.Steps {
		t.backend.InsertData(StepTable, StepEntry{
			TaskID: task.ID,
			Time:   uint64(t.timeTeller.CurrentTime()),
			What:   step.What,
		})
	}
}

// EndTask marks the end of a task and writes it.
func (t *DBTracer) EndTask(task Task) {
	t.mu.Lock()
	defer t.mu.Unlock()

	originalTask, ok := t.tracingTasks[task.ID]
	if !ok {
		return
	}

	originalTask.EndTime = t.timeTeller.CurrentTime()
	t.write(originalTask)
	delete(t.tracingTasks, task.ID)
}

// Terminate writes the unfinished tasks as ending now and flushes the
// backend.
func (t *DBTracer) Terminate() {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.timeTeller.CurrentTime()
	for id, task := range t.tracingTasks {
		task.EndTime = now
		t.write(task)
		delete(t.tracingTasks, id)
	}

	t.backend.Flush()
}

func (t *DBTracer) write(task Task) {
	t.backend.InsertData(TaskTable, TaskEntry{
		ID:        task.ID,
		ParentID:  task.ParentID,
		Kind:      task.Kind,
		What:      task.What,
		Location:  task.Location,
		StartTime: uint64(task.StartTime),
		EndTime:   uint64(task.EndTime),
	})
}
