package framestore

import "fmt"

// DefaultPageSize is the number of lines in one page.
const DefaultPageSize = 3

// Builder can build frame stores.
type Builder struct {
	pageSize  int
	totalSize int
}

// MakeBuilder creates a builder with the default configuration of a 30-line
// store split into 3-line frames.
func MakeBuilder() Builder {
	return Builder{
		pageSize:  DefaultPageSize,
		totalSize: 30,
	}
}

// WithPageSize sets the number of lines held by one frame.
func (b Builder) WithPageSize(n int) Builder {
	b.pageSize = n
	return b
}

// WithTotalSize sets the capacity of the store in lines. The number of frames
// is the total size divided by the page size.
func (b Builder) WithTotalSize(lines int) Builder {
	b.totalSize = lines
	return b
}

func (b Builder) parametersMustBeValid() {
	if b.pageSize <= 0 {
		panic(fmt.Sprintf("framestore: page size must be positive, got %d", b.pageSize))
	}

	if b.totalSize/b.pageSize <= 0 {
		panic(fmt.Sprintf("framestore: total size %d cannot hold a single page of %d lines",
			b.totalSize, b.pageSize))
	}
}

// Build creates a new FrameStore with every frame free.
func (b Builder) Build(name string) *FrameStore {
	b.parametersMustBeValid()

	numFrames := b.totalSize / b.pageSize
	s := &FrameStore{
		name:     name,
		pageSize: b.pageSize,
		frames:   make([]Frame, numFrames),
	}

	for i := range s.frames {
		s.frames[i].Index = i
	}

	return s
}
