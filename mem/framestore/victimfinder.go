package framestore

import (
	"math/rand"
	"sync"
)

// A VictimFinder decides which frame should be evicted.
type VictimFinder interface {
	FindVictim(frames []Frame) (frame int, ok bool)
}

// LRUVictimFinder evicts the least recently used frame. Ties go to the lowest
// frame index.
type LRUVictimFinder struct {
}

// NewLRUVictimFinder returns a newly constructed LRU victim finder.
func NewLRUVictimFinder() *LRUVictimFinder {
	return new(LRUVictimFinder)
}

// FindVictim returns the occupied frame with the oldest stamp.
func (e *LRUVictimFinder) FindVictim(frames []Frame) (int, bool) {
	victim := -1

	for i := range frames {
		if !frames[i].Occupied {
			continue
		}

		if victim == -1 || frames[i].LastUsed < frames[victim].LastUsed {
			victim = i
		}
	}

	if victim == -1 {
		return 0, false
	}

	return frames[victim].Index, true
}

// RandomVictimFinder evicts an occupied frame chosen uniformly at random. It is
// seeded so that runs stay reproducible.
type RandomVictimFinder struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomVictimFinder returns a random victim finder using the seed.
func NewRandomVictimFinder(seed int64) *RandomVictimFinder {
	return &RandomVictimFinder{rng: rand.New(rand.NewSource(seed))}
}

// FindVictim returns a random occupied frame.
func (e *RandomVictimFinder) FindVictim(frames []Frame) (int, bool) {
	var occupied []int

	for _, f := range frames {
		if f.Occupied {
			occupied = append(occupied, f.Index)
		}
	}

	if len(occupied) == 0 {
		return 0, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	return occupied[e.rng.Intn(len(occupied))], true
}
