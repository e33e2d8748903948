// Package idgen provides the identifier generators used by a simulation
// instance. PIDs, TIDs and script IDs come from sequential generators so that
// traces are reproducible; session names come from xid.
package idgen

import (
	"strconv"
	"sync/atomic"

	"github.com/rs/xid"
)

// ID is a unique identifier represented as a uint64.
type ID uint64

// String returns the decimal form of the ID.
func (id ID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// Generator produces unique identifiers.
type Generator interface {
	Generate() ID
}

// New returns a sequential generator whose first emitted ID is 1.
func New() Generator {
	return &sequentialGenerator{}
}

type sequentialGenerator struct {
	next uint64
}

func (g *sequentialGenerator) Generate() ID {
	return ID(atomic.AddUint64(&g.next, 1))
}

// SessionName returns a globally unique name with the given prefix. The
// result is not deterministic and must only be used for naming output
// artifacts, never for anything that shows up in a trace.
func SessionName(prefix string) string {
	return prefix + xid.New().String()
}
