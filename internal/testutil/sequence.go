package testutil

import (
	"fmt"
	"sync"
)

// SequenceGenerator hands out pass IDs "pass-1", "pass-2", ... for tests.
//
// Unlike compiler.FixedGenerator it never runs out, and it can be reset so
// the same test compiles with identical pass IDs on every run.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type SequenceGenerator struct {
	mu     sync.Mutex
	prefix string
	seq    int64
}

// NewSequenceGenerator creates a generator whose IDs start with prefix.
// An empty prefix means "pass".
func NewSequenceGenerator(prefix string) *SequenceGenerator {
	if prefix == "" {
		prefix = "pass"
	}
	return &SequenceGenerator{prefix: prefix}
}

// Generate returns the next ID. The first call returns "<prefix>-1".
func (g *SequenceGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	return fmt.Sprintf("%s-%d", g.prefix, g.seq)
}

// Current returns how many IDs have been generated.
func (g *SequenceGenerator) Current() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.seq
}

// Reset restarts the sequence. The next call to Generate returns
// "<prefix>-1".
func (g *SequenceGenerator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq = 0
}
