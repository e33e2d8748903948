// Package threading splits a process into cooperative threads and steps them
// one instruction at a time.
package threading

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sarchlab/osim/kernel"
)

// ErrTooManyThreads means a thread scheduler is already full.
var ErrTooManyThreads = errors.New("too many threads")

// Scheduler keeps the ready and blocked threads of a process. A single mutex
// guards every queue.
type Scheduler struct {
	mu         sync.Mutex
	maxThreads int
	live       int
	running    *kernel.TCB
	ready      []*kernel.TCB
	blocked    []*kernel.TCB
}

// NewScheduler creates a scheduler holding at most maxThreads live threads.
func NewScheduler(maxThreads int) *Scheduler {
	if maxThreads <= 0 {
		panic(fmt.Sprintf("threading: max threads must be positive, got %d", maxThreads))
	}

	return &Scheduler{maxThreads: maxThreads}
}

// Add registers a new thread at the tail of the ready queue.
func (s *Scheduler) Add(t *kernel.TCB) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.live >= s.maxThreads {
		return fmt.Errorf("%w: limit is %d", ErrTooManyThreads, s.maxThreads)
	}

	s.live++
	t.State = kernel.ThreadReady
	s.ready = append(s.ready, t)

	return nil
}

// Next takes the head of the ready queue and makes it the running thread. It
// returns nil if no thread is ready.
func (s *Scheduler) Next() *kernel.TCB {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.ready) == 0 {
		return nil
	}

	t := s.ready[0]
	s.ready = s.ready[1:]
	t.State = kernel.ThreadRunning
	s.running = t

	return t
}

// Yield puts the running thread back at the tail of the ready queue.
func (s *Scheduler) Yield(t *kernel.TCB) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mustBeRunning(t)
	s.running = nil
	t.State = kernel.ThreadReady
	s.ready = append(s.ready, t)
}

// Block moves the running thread to the blocked queue.
func (s *Scheduler) Block(t *kernel.TCB) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mustBeRunning(t)
	s.running = nil
	t.State = kernel.ThreadBlocked
	s.blocked = append(s.blocked, t)
}

// Unblock moves a blocked thread to the tail of the ready queue.
func (s *Scheduler) Unblock(t *kernel.TCB) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var found bool

	s.blocked, found = remove(s.blocked, t)
	if !found {
		panic(fmt.Sprintf("threading: %s is not blocked", t))
	}

	t.State = kernel.ThreadReady
	s.ready = append(s.ready, t)
}

// Blocked returns the blocked threads in the order they blocked.
func (s *Scheduler) Blocked() []*kernel.TCB {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*kernel.TCB, len(s.blocked))
	copy(out, s.blocked)

	return out
}

// Terminate removes a thread from the scheduler and from its parent.
func (s *Scheduler) Terminate(t *kernel.TCB) {
	s.mu.Lock()

	if s.running == t {
		s.running = nil
	}

	s.ready, _ = remove(s.ready, t)
	s.blocked, _ = remove(s.blocked, t)

	if t.State != kernel.ThreadTerminated {
		s.live--
	}

	t.State = kernel.ThreadTerminated
	s.mu.Unlock()

	t.Parent().RemoveThread(t)
}

// HasWork tells if any thread is still alive.
func (s *Scheduler) HasWork() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.running != nil || len(s.ready) > 0 || len(s.blocked) > 0
}

// Threads returns every live thread, running first, then ready, then blocked.
func (s *Scheduler) Threads() []*kernel.TCB {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*kernel.TCB
	if s.running != nil {
		out = append(out, s.running)
	}

	out = append(out, s.ready...)
	out = append(out, s.blocked...)

	return out
}

func (s *Scheduler) mustBeRunning(t *kernel.TCB) {
	if s.running != t {
		panic(fmt.Sprintf("threading: %s is not running", t))
	}
}

func remove(list []*kernel.TCB, t *kernel.TCB) ([]*kernel.TCB, bool) {
	for i, existing := range list {
		if existing == t {
			return append(list[:i], list[i+1:]...), true
		}
	}

	return list, false
}
