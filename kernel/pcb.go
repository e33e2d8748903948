package kernel

import (
	"fmt"
	"sync"

	"github.com/sarchlab/osim/idgen"
)

// ProgramCounter locates the next instruction of a process.
type ProgramCounter struct {
	Page   int
	Offset int
}

func (pc ProgramCounter) String() string {
	return fmt.Sprintf("(%d, %d)", pc.Page, pc.Offset)
}

// A PCB is the control block of one simulated process.
type PCB struct {
	pid idgen.ID
	ref *ScriptRef

	// PC is the next instruction to execute. It reaches (NumPages, 0) when
	// the process has finished.
	PC ProgramCounter

	// JobLengthScore starts as the instruction count. Only the aging policy
	// changes it.
	JobLengthScore int

	executed int

	mu      sync.Mutex
	threads []*TCB
}

// NewPCB creates a process that runs the script held by ref. The PCB takes
// over ref and releases it when the process is released.
func NewPCB(pid idgen.ID, ref *ScriptRef) *PCB {
	return &PCB{
		pid:            pid,
		ref:            ref,
		JobLengthScore: ref.Script().NumLines(),
	}
}

// PID returns the process ID.
func (p *PCB) PID() idgen.ID {
	return p.pid
}

// Script returns the script the process runs.
func (p *PCB) Script() *Script {
	return p.ref.Script()
}

// NumLines returns the instruction count of the process.
func (p *PCB) NumLines() int {
	return p.ref.Script().NumLines()
}

// Executed returns how many instructions the process has executed.
func (p *PCB) Executed() int {
	return p.executed
}

// Done tells if the process has run its last instruction.
func (p *PCB) Done() bool {
	return p.PC.Page >= p.Script().NumPages()
}

// Advance moves the program counter past the current instruction. Once the
// last line has run, the counter jumps to (NumPages, 0) so padding lines of
// the last page are never executed.
func (p *PCB) Advance() {
	s := p.Script()

	next := p.PC.Page*s.PageSize() + p.PC.Offset + 1
	if next >= s.NumLines() {
		p.PC = ProgramCounter{Page: s.NumPages()}
	} else {
		p.PC = ProgramCounter{Page: next / s.PageSize(), Offset: next % s.PageSize()}
	}

	p.executed++
}

// CountStep records an instruction run on behalf of the process by one of
// its threads.
func (p *PCB) CountStep() {
	p.executed++
}

// Complete moves the program counter to the end of the script. It is used
// when the threads of the process have run every line.
func (p *PCB) Complete() {
	p.PC = ProgramCounter{Page: p.Script().NumPages()}
}

// Release gives up the script of the process. It is safe to call more than
// once.
func (p *PCB) Release() error {
	return p.ref.Release()
}

// Released tells if the process has given up its script.
func (p *PCB) Released() bool {
	return p.ref.Released()
}

// AddThread attaches a thread to the process.
func (p *PCB) AddThread(t *TCB) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.threads = append(p.threads, t)
}

// RemoveThread detaches a thread from the process.
func (p *PCB) RemoveThread(t *TCB) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, existing := range p.threads {
		if existing == t {
			p.threads = append(p.threads[:i], p.threads[i+1:]...)
			return
		}
	}
}

// Threads returns the threads still attached to the process.
func (p *PCB) Threads() []*TCB {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]*TCB, len(p.threads))
	copy(out, p.threads)

	return out
}

func (p *PCB) String() string {
	return fmt.Sprintf("P%d(%s)", p.pid, p.Script().Name())
}
