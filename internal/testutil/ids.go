package testutil

import (
	"fmt"
	"sync"
)

// SequenceIDs generates predictable mutation ids: "<prefix>-0001",
// "<prefix>-0002", ...
//
// Implements engine.IDGenerator.
//
// Thread-safety: safe for concurrent use via internal mutex.
type SequenceIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequenceIDs creates a generator. An empty prefix defaults to "mut".
func NewSequenceIDs(prefix string) *SequenceIDs {
	if prefix == "" {
		prefix = "mut"
	}
	return &SequenceIDs{prefix: prefix}
}

// Generate returns the next id.
func (g *SequenceIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%04d", g.prefix, g.n)
}
