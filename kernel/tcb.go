package kernel

import (
	"fmt"

	"github.com/sarchlab/osim/idgen"
)

// ThreadState is the scheduling state of a thread.
type ThreadState int

// All thread states.
const (
	ThreadReady ThreadState = iota
	ThreadRunning
	ThreadBlocked
	ThreadTerminated
)

func (s ThreadState) String() string {
	switch s {
	case ThreadReady:
		return "ready"
	case ThreadRunning:
		return "running"
	case ThreadBlocked:
		return "blocked"
	case ThreadTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("ThreadState(%d)", int(s))
	}
}

// A TCB is one cooperative thread of a process. All the threads of a process
// walk the same script lines. Thread k of n runs lines k, k+n, k+2n, and so
// on, so that every line is run by exactly one thread.
type TCB struct {
	tid    idgen.ID
	parent *PCB
	index  int
	stride int
	next   int

	State ThreadState
	Steps int
}

// NewTCB creates thread index of stride threads of parent.
func NewTCB(tid idgen.ID, parent *PCB, index, stride int) *TCB {
	if stride <= 0 || index < 0 || index >= stride {
		panic(fmt.Sprintf("kernel: invalid thread %d of %d", index, stride))
	}

	return &TCB{
		tid:    tid,
		parent: parent,
		index:  index,
		stride: stride,
		next:   index,
	}
}

// TID returns the thread ID.
func (t *TCB) TID() idgen.ID { return t.tid }

// Parent returns the process the thread belongs to.
func (t *TCB) Parent() *PCB { return t.parent }

// Index returns the position of the thread among its siblings.
func (t *TCB) Index() int { return t.index }

// HasNext tells if the thread still has a line to run.
func (t *TCB) HasNext() bool {
	return t.next < t.parent.NumLines()
}

// PC returns the program counter of the thread.
func (t *TCB) PC() ProgramCounter {
	if !t.HasNext() {
		return ProgramCounter{Page: t.parent.Script().NumPages()}
	}

	ps := t.parent.Script().PageSize()

	return ProgramCounter{Page: t.next / ps, Offset: t.next % ps}
}

// Advance moves the thread to its next line.
func (t *TCB) Advance() {
	t.next += t.stride
	t.Steps++
}

func (t *TCB) String() string {
	return fmt.Sprintf("T%d(%s#%d)", t.tid, t.parent, t.index)
}
