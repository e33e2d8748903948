// Package framestore models the physical memory of the simulated machine: a
// fixed number of frames, each able to hold one page of instruction lines.
package framestore

import (
	"fmt"
	"sync"

	"github.com/sarchlab/osim/idgen"
)

// Owner identifies the (script, page) pair held by an occupied frame.
type Owner struct {
	ScriptID   idgen.ID
	ScriptName string
	Page       int
}

// A Frame is one slot of the frame store.
type Frame struct {
	Index    int
	Occupied bool
	LastUsed uint64
	Owner    Owner

	// Lines always has PageSize entries. Only the first Valid entries come
	// from the script; the rest is padding past the end of the script.
	Lines []string
	Valid int
}

// FrameStore is a fixed-size array of frames with a logical clock that
// records when each frame was last used.
type FrameStore struct {
	sync.Mutex

	name     string
	pageSize int
	frames   []Frame
	clock    uint64
}

// Name returns the name of the frame store.
func (s *FrameStore) Name() string {
	return s.name
}

// NumFrames returns how many frames the store has.
func (s *FrameStore) NumFrames() int {
	return len(s.frames)
}

// PageSize returns the number of lines a frame holds.
func (s *FrameStore) PageSize() int {
	return s.pageSize
}

// Clock returns the current logical clock.
func (s *FrameStore) Clock() uint64 {
	s.Lock()
	defer s.Unlock()

	return s.clock
}

// FindFree returns the lowest-indexed unoccupied frame.
func (s *FrameStore) FindFree() (int, bool) {
	s.Lock()
	defer s.Unlock()

	for i := range s.frames {
		if !s.frames[i].Occupied {
			return i, true
		}
	}

	return 0, false
}

// Load fills an unoccupied frame with a page and stamps it with the clock.
// Lines beyond PageSize are rejected; missing lines are padded with "".
func (s *FrameStore) Load(frame int, owner Owner, lines []string, valid int) {
	s.Lock()
	defer s.Unlock()

	f := s.frameMustExist(frame)
	if f.Occupied {
		panic(fmt.Sprintf("framestore: frame %d is already occupied by %s page %d",
			frame, f.Owner.ScriptName, f.Owner.Page))
	}

	if len(lines) > s.pageSize || valid > s.pageSize || valid < 0 {
		panic(fmt.Sprintf("framestore: page of %d lines does not fit in frame", len(lines)))
	}

	f.Lines = make([]string, s.pageSize)
	copy(f.Lines, lines)
	f.Valid = valid
	f.Owner = owner
	f.Occupied = true
	s.stamp(f)
}

// Touch records an access to an occupied frame.
func (s *FrameStore) Touch(frame int) {
	s.Lock()
	defer s.Unlock()

	f := s.frameMustBeOccupied(frame)
	s.stamp(f)
}

// Line returns a copy of one line of an occupied frame.
func (s *FrameStore) Line(frame, offset int) string {
	s.Lock()
	defer s.Unlock()

	f := s.frameMustBeOccupied(frame)
	if offset < 0 || offset >= s.pageSize {
		panic(fmt.Sprintf("framestore: offset %d out of range", offset))
	}

	return f.Lines[offset]
}

// Free marks the frame unoccupied and returns what it held.
func (s *FrameStore) Free(frame int) Frame {
	s.Lock()
	defer s.Unlock()

	f := s.frameMustExist(frame)
	old := f.snapshot()

	*f = Frame{Index: frame}

	return old
}

// Frame returns a snapshot of one frame.
func (s *FrameStore) Frame(frame int) Frame {
	s.Lock()
	defer s.Unlock()

	return s.frameMustExist(frame).snapshot()
}

// Frames returns a snapshot of all the frames.
func (s *FrameStore) Frames() []Frame {
	s.Lock()
	defer s.Unlock()

	out := make([]Frame, len(s.frames))
	for i := range s.frames {
		out[i] = s.frames[i].snapshot()
	}

	return out
}

func (s *FrameStore) stamp(f *Frame) {
	s.clock++
	f.LastUsed = s.clock
}

func (s *FrameStore) frameMustExist(frame int) *Frame {
	if frame < 0 || frame >= len(s.frames) {
		panic(fmt.Sprintf("framestore: frame %d does not exist", frame))
	}

	return &s.frames[frame]
}

func (s *FrameStore) frameMustBeOccupied(frame int) *Frame {
	f := s.frameMustExist(frame)
	if !f.Occupied {
		panic(fmt.Sprintf("framestore: frame %d is not occupied", frame))
	}

	return f
}

func (f *Frame) snapshot() Frame {
	c := *f
	c.Lines = append([]string(nil), f.Lines...)

	return c
}

// ValidLines returns the lines of the frame that came from the script.
func (f Frame) ValidLines() []string {
	if f.Valid > len(f.Lines) {
		return f.Lines
	}

	return f.Lines[:f.Valid]
}
