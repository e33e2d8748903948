package scheduling

import (
	"sort"
	"sync"

	"github.com/sarchlab/osim/idgen"
	"github.com/sarchlab/osim/instrumentation/hooking"
	"github.com/sarchlab/osim/kernel"
)

// HookPosQueuePush marks when a process joins the ready queue.
var HookPosQueuePush = &hooking.HookPos{Name: "Queue Push"}

// HookPosQueuePop marks when a process leaves the ready queue.
var HookPosQueuePop = &hooking.HookPos{Name: "Queue Pop"}

// A ReadyQueue is an ordered sequence of processes waiting for the CPU. The
// queue owns the processes it holds.
type ReadyQueue struct {
	*hooking.HookableBase

	mu   sync.Mutex
	name string
	pcbs []*kernel.PCB
}

// NewReadyQueue creates an empty ready queue.
func NewReadyQueue(name string) *ReadyQueue {
	return &ReadyQueue{
		HookableBase: hooking.NewHookableBase(),
		name:         name,
	}
}

// Name returns the name of the queue.
func (q *ReadyQueue) Name() string {
	return q.name
}

// Len returns the number of waiting processes.
func (q *ReadyQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.pcbs)
}

// PushBack appends a process to the tail.
func (q *ReadyQueue) PushBack(p *kernel.PCB) {
	q.mu.Lock()
	q.pcbs = append(q.pcbs, p)
	q.mu.Unlock()

	q.invoke(HookPosQueuePush, p)
}

// InsertAfterEqual puts the process in front of the first process whose key
// is strictly greater. The queue is assumed to be sorted by key.
func (q *ReadyQueue) InsertAfterEqual(p *kernel.PCB, key func(*kernel.PCB) int) {
	q.mu.Lock()
	i := sort.Search(len(q.pcbs), func(i int) bool {
		return key(q.pcbs[i]) > key(p)
	})
	q.pcbs = append(q.pcbs, nil)
	copy(q.pcbs[i+1:], q.pcbs[i:])
	q.pcbs[i] = p
	q.mu.Unlock()

	q.invoke(HookPosQueuePush, p)
}

// PopFront removes and returns the head. It returns nil if the queue is
// empty.
func (q *ReadyQueue) PopFront() *kernel.PCB {
	q.mu.Lock()

	if len(q.pcbs) == 0 {
		q.mu.Unlock()
		return nil
	}

	p := q.pcbs[0]
	q.pcbs[0] = nil
	q.pcbs = q.pcbs[1:]
	q.mu.Unlock()

	q.invoke(HookPosQueuePop, p)

	return p
}

// Front returns the head without removing it.
func (q *ReadyQueue) Front() *kernel.PCB {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pcbs) == 0 {
		return nil
	}

	return q.pcbs[0]
}

// SortByKey reorders the queue by ascending key. Processes with equal keys
// keep their relative order.
func (q *ReadyQueue) SortByKey(key func(*kernel.PCB) int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	sort.SliceStable(q.pcbs, func(i, j int) bool {
		return key(q.pcbs[i]) < key(q.pcbs[j])
	})
}

// Each calls f on every waiting process from head to tail.
func (q *ReadyQueue) Each(f func(p *kernel.PCB)) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, p := range q.pcbs {
		f(p)
	}
}

// Drain removes every process and returns them in queue order.
func (q *ReadyQueue) Drain() []*kernel.PCB {
	q.mu.Lock()
	out := q.pcbs
	q.pcbs = nil
	q.mu.Unlock()

	for _, p := range out {
		q.invoke(HookPosQueuePop, p)
	}

	return out
}

// PIDs lists the waiting processes from head to tail.
func (q *ReadyQueue) PIDs() []idgen.ID {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]idgen.ID, len(q.pcbs))
	for i, p := range q.pcbs {
		out[i] = p.PID()
	}

	return out
}

func (q *ReadyQueue) invoke(pos *hooking.HookPos, p *kernel.PCB) {
	if q.NumHooks() == 0 {
		return
	}

	q.InvokeHook(hooking.HookCtx{Domain: q, Pos: pos, Item: p})
}
