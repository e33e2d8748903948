// Package backingstore keeps the durable per-script copy of instruction lines
// from which pages are loaded into the frame store.
package backingstore

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sarchlab/osim/idgen"
)

// A Store persists script lines and serves them back one page at a time.
type Store interface {
	// Write persists the lines of a script and returns where they are kept.
	Write(name string, lines []string) (location string, err error)

	// ReadPage returns the pageSize lines of the given page. Lines past the
	// end of the script are returned as empty strings.
	ReadPage(location string, page, pageSize int) ([]string, error)

	// Remove deletes the lines kept at location.
	Remove(location string) error
}

// DiskStore keeps one file per script inside a directory.
type DiskStore struct {
	mu  sync.Mutex
	dir string
	ids idgen.Generator
}

// New creates a DiskStore rooted at dir. The directory is created if needed
// and emptied if it already holds files from an earlier session.
func New(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("backingstore: create %s: %w", dir, err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("backingstore: read %s: %w", dir, err)
	}

	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return nil, fmt.Errorf("backingstore: reset %s: %w", dir, err)
		}
	}

	return &DiskStore{dir: dir, ids: idgen.New()}, nil
}

// Dir returns the directory that holds the backing files.
func (s *DiskStore) Dir() string {
	return s.dir
}

// Write creates a fresh file holding the lines.
func (s *DiskStore) Write(name string, lines []string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fileName := fmt.Sprintf("%04d_%s", s.ids.Generate(), sanitize(name))
	location := filepath.Join(s.dir, fileName)

	content := strings.Join(lines, "\n")
	if len(lines) > 0 {
		content += "\n"
	}

	if err := os.WriteFile(location, []byte(content), 0o644); err != nil {
		_ = os.Remove(location)
		return "", fmt.Errorf("backingstore: write %s: %w", location, err)
	}

	return location, nil
}

// ReadPage reads the lines of one page from the file at location.
func (s *DiskStore) ReadPage(location string, page, pageSize int) ([]string, error) {
	if page < 0 || pageSize <= 0 {
		return nil, fmt.Errorf("backingstore: invalid page %d of size %d", page, pageSize)
	}

	lines, err := ReadLines(location)
	if err != nil {
		return nil, err
	}

	out := make([]string, pageSize)
	for i := 0; i < pageSize; i++ {
		index := page*pageSize + i
		if index < len(lines) {
			out[i] = lines[index]
		}
	}

	return out, nil
}

// Remove deletes the file at location.
func (s *DiskStore) Remove(location string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(location); err != nil {
		return fmt.Errorf("backingstore: remove %s: %w", location, err)
	}

	return nil
}

// Close removes the backing store directory and everything in it.
func (s *DiskStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return os.RemoveAll(s.dir)
}

// ReadLines returns the lines of a text file without line terminators.
func ReadLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, strings.TrimRight(scanner.Text(), "\r"))
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("backingstore: read %s: %w", path, err)
	}

	return lines, nil
}

func sanitize(name string) string {
	base := filepath.Base(name)

	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
}

var _ Store = (*DiskStore)(nil)
