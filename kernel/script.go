package kernel

import (
	"sync"
	"sync/atomic"

	"github.com/sarchlab/osim/idgen"
	"github.com/sarchlab/osim/mem/vm"
)

// A Script is one distinct program loaded into the backing store. It is shared
// by every process that runs it.
type Script struct {
	id       idgen.ID
	name     string
	location string
	numLines int
	pageSize int
	table    *vm.PageTable
	refs     atomic.Int32
}

// ID returns the unique ID of the script.
func (s *Script) ID() idgen.ID { return s.id }

// Name returns the path the script was loaded from.
func (s *Script) Name() string { return s.name }

// Location returns where the backing store keeps the script.
func (s *Script) Location() string { return s.location }

// NumLines returns the number of instructions of the script.
func (s *Script) NumLines() int { return s.numLines }

// PageSize returns the number of lines per page.
func (s *Script) PageSize() int { return s.pageSize }

// NumPages returns ceil(NumLines / PageSize).
func (s *Script) NumPages() int {
	return (s.numLines + s.pageSize - 1) / s.pageSize
}

// PageTable returns the page table of the script.
func (s *Script) PageTable() *vm.PageTable { return s.table }

// RefCount returns the number of live handles to the script.
func (s *Script) RefCount() int { return int(s.refs.Load()) }

// validLinesOf returns how many real lines the page holds.
func (s *Script) validLinesOf(page int) int {
	n := s.numLines - page*s.pageSize
	if n > s.pageSize {
		n = s.pageSize
	}

	if n < 0 {
		n = 0
	}

	return n
}

// A ScriptRef is one owner's share of a Script. The script is torn down when
// the last ScriptRef is released.
type ScriptRef struct {
	script   *Script
	registry *Registry

	once     sync.Once
	released atomic.Bool
	err      error
}

// Script returns the shared script.
func (r *ScriptRef) Script() *Script {
	return r.script
}

// Release gives up this share of the script. Releasing the same ScriptRef
// more than once has no further effect.
func (r *ScriptRef) Release() error {
	r.once.Do(func() {
		r.released.Store(true)
		r.err = r.registry.release(r.script)
	})

	return r.err
}

// Released tells if Release has been called.
func (r *ScriptRef) Released() bool {
	return r.released.Load()
}
