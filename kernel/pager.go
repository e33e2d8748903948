package kernel

import (
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/sarchlab/osim/idgen"
	"github.com/sarchlab/osim/instrumentation/hooking"
	"github.com/sarchlab/osim/instrumentation/tracing"
	"github.com/sarchlab/osim/mem/backingstore"
	"github.com/sarchlab/osim/mem/framestore"
)

// Pager moves pages between the backing store and the frame store and keeps
// page tables consistent with frame occupancy.
type Pager struct {
	*hooking.HookableBase

	mu       sync.Mutex
	name     string
	frames   *framestore.FrameStore
	store    backingstore.Store
	victims  framestore.VictimFinder
	out      io.Writer
	resident map[idgen.ID]*Script
	faultIDs idgen.Generator
}

// Name returns the name of the pager.
func (p *Pager) Name() string {
	return p.name
}

// FrameStore returns the frame store managed by the pager.
func (p *Pager) FrameStore() *framestore.FrameStore {
	return p.frames
}

// Fetch returns the instruction at the program counter of the script, paging
// it in if needed. faulted tells whether a page fault had to be served.
func (p *Pager) Fetch(s *Script, pc ProgramCounter) (line string, faulted bool, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if pc.Page < 0 || pc.Page >= s.NumPages() {
		return "", false, fmt.Errorf("kernel: %s has no page %d", s.Name(), pc.Page)
	}

	frame, found := s.table.Find(pc.Page)
	if found {
		p.frameMustBelongTo(frame, s, pc.Page)
		p.frames.Touch(frame)

		return p.frames.Line(frame, pc.Offset), false, nil
	}

	frame, err = p.fault(s, pc.Page)
	if err != nil {
		return "", true, err
	}

	return p.frames.Line(frame, pc.Offset), true, nil
}

// Preload maps up to numPages leading pages of the script into free frames.
// It never evicts.
func (p *Pager) Preload(s *Script, numPages int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for page := 0; page < numPages && page < s.NumPages(); page++ {
		if _, found := s.table.Find(page); found {
			continue
		}

		frame, ok := p.frames.FindFree()
		if !ok {
			return nil
		}

		if err := p.loadInto(s, page, frame); err != nil {
			return err
		}
	}

	return nil
}

// Discard frees every frame held by the script and unmaps all its pages.
func (p *Pager) Discard(s *Script) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, frame := range s.table.Mapped() {
		f := p.frames.Frame(frame)
		if f.Occupied && f.Owner.ScriptID == s.ID() {
			p.frames.Free(frame)
		}
	}

	s.table.Reset()
	delete(p.resident, s.ID())
}

// Evict frees the frame and unmaps it from every page table.
func (p *Pager) Evict(frame int) framestore.Frame {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.evict(frame)
}

// CheckInvariants verifies that every occupied frame is referenced by exactly
// one (script, page) entry and that every mapped entry points at the frame
// that holds it.
func (p *Pager) CheckInvariants() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	refs := make(map[int]int)

	for _, s := range p.resident {
		for page, frame := range s.table.Mapped() {
			f := p.frames.Frame(frame)
			if !f.Occupied || f.Owner.ScriptID != s.ID() || f.Owner.Page != page {
				return fmt.Errorf("kernel: %s page %d maps to frame %d holding %s page %d",
					s.Name(), page, frame, f.Owner.ScriptName, f.Owner.Page)
			}

			refs[frame]++
		}
	}

	for _, f := range p.frames.Frames() {
		if f.Occupied && refs[f.Index] != 1 {
			return fmt.Errorf("kernel: frame %d is referenced %d times", f.Index, refs[f.Index])
		}

		if !f.Occupied && refs[f.Index] != 0 {
			return fmt.Errorf("kernel: free frame %d is still referenced", f.Index)
		}
	}

	return nil
}

func (p *Pager) fault(s *Script, page int) (int, error) {
	taskID := fmt.Sprintf("F%d", p.faultIDs.Generate())
	tracing.StartTask(taskID, "", p, tracing.KindPageFault,
		fmt.Sprintf("%s:%d", s.Name(), page), nil)
	defer tracing.EndTask(taskID, p)

	frame, ok := p.frames.FindFree()

	var victim *framestore.Frame

	if !ok {
		v, found := p.victims.FindVictim(p.frames.Frames())
		if !found {
			return 0, fmt.Errorf("%w: no frame to evict for %s page %d",
				ErrFrameStoreExhausted, s.Name(), page)
		}

		old := p.evict(v)
		victim = &old
		frame = v

		tracing.AddTaskStep(taskID, p, "evict")
	}

	if err := p.loadInto(s, page, frame); err != nil {
		return 0, err
	}

	p.report(victim)
	p.InvokeHook(hooking.HookCtx{
		Domain: p,
		Pos:    HookPosPageFault,
		Item:   PageFault{Script: s, Page: page, Frame: frame, Victim: victim},
	})

	return frame, nil
}

func (p *Pager) loadInto(s *Script, page, frame int) error {
	lines, err := p.store.ReadPage(s.Location(), page, s.PageSize())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}

	owner := framestore.Owner{ScriptID: s.ID(), ScriptName: s.Name(), Page: page}
	p.frames.Load(frame, owner, lines, s.validLinesOf(page))
	s.table.Insert(page, frame)
	p.resident[s.ID()] = s

	return nil
}

func (p *Pager) evict(frame int) framestore.Frame {
	old := p.frames.Free(frame)

	for id, s := range p.resident {
		s.table.RemoveFrame(frame)

		if len(s.table.Mapped()) == 0 {
			delete(p.resident, id)
		}
	}

	p.InvokeHook(hooking.HookCtx{Domain: p, Pos: HookPosPageEvict, Item: old})

	return old
}

func (p *Pager) report(victim *framestore.Frame) {
	if p.out == nil {
		return
	}

	if victim == nil {
		fmt.Fprintln(p.out, "Page fault!")
		return
	}

	fmt.Fprintln(p.out, "Page fault! Victim page contents:")
	fmt.Fprintln(p.out)

	for _, line := range victim.ValidLines() {
		fmt.Fprintln(p.out, line)
	}

	fmt.Fprintln(p.out)
	fmt.Fprintln(p.out, "End of victim page contents.")
}

func (p *Pager) frameMustBelongTo(frame int, s *Script, page int) {
	f := p.frames.Frame(frame)
	if !f.Occupied || f.Owner.ScriptID != s.ID() || f.Owner.Page != page {
		log.Panicf("kernel: stale mapping, %s page %d -> frame %d which holds %s page %d",
			s.Name(), page, frame, f.Owner.ScriptName, f.Owner.Page)
	}
}
