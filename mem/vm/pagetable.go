// Package vm defines the per-script page table that maps logical pages of
// instruction lines onto frames of the frame store.
package vm

import (
	"fmt"
	"sync"
)

// Unmapped marks a page that is not resident in any frame.
const Unmapped = -1

// A PageTable maps page indices to frame indices. It is safe for concurrent
// use.
type PageTable struct {
	sync.Mutex
	entries []int
}

// NewPageTable creates a page table with numPages entries, all unmapped.
func NewPageTable(numPages int) *PageTable {
	t := &PageTable{entries: make([]int, numPages)}
	for i := range t.entries {
		t.entries[i] = Unmapped
	}

	return t
}

// NumPages returns the number of pages that the table covers.
func (t *PageTable) NumPages() int {
	t.Lock()
	defer t.Unlock()

	return len(t.entries)
}

// Find returns the frame holding the page. The bool return value indicates
// whether the page is mapped.
func (t *PageTable) Find(page int) (frame int, found bool) {
	t.Lock()
	defer t.Unlock()

	t.pageMustBeInRange(page)

	frame = t.entries[page]

	return frame, frame != Unmapped
}

// Insert maps the page onto the frame.
func (t *PageTable) Insert(page, frame int) {
	t.Lock()
	defer t.Unlock()

	t.pageMustBeInRange(page)

	if frame < 0 {
		panic(fmt.Sprintf("vm: invalid frame %d", frame))
	}

	t.entries[page] = frame
}

// Remove unmaps the page.
func (t *PageTable) Remove(page int) {
	t.Lock()
	defer t.Unlock()

	t.pageMustBeInRange(page)
	t.entries[page] = Unmapped
}

// RemoveFrame unmaps every page that points at the frame and returns the pages
// that were unmapped.
func (t *PageTable) RemoveFrame(frame int) []int {
	t.Lock()
	defer t.Unlock()

	var pages []int

	for page, f := range t.entries {
		if f == frame {
			t.entries[page] = Unmapped
			pages = append(pages, page)
		}
	}

	return pages
}

// Mapped returns the page-to-frame pairs of every resident page, in page order.
func (t *PageTable) Mapped() map[int]int {
	t.Lock()
	defer t.Unlock()

	mapped := make(map[int]int)

	for page, frame := range t.entries {
		if frame != Unmapped {
			mapped[page] = frame
		}
	}

	return mapped
}

// Reset unmaps all the pages.
func (t *PageTable) Reset() {
	t.Lock()
	defer t.Unlock()

	for i := range t.entries {
		t.entries[i] = Unmapped
	}
}

func (t *PageTable) pageMustBeInRange(page int) {
	if page < 0 || page >= len(t.entries) {
		panic(fmt.Sprintf("vm: page %d out of range [0, %d)", page, len(t.entries)))
	}
}
