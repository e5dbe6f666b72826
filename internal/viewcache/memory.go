package viewcache

import (
	"sync"
)

// Memory is the process-local accumulator for single-worker deployments
// and tests. A mutex-guarded map is plenty: Record is a few map writes,
// contention is short.
type Memory struct {
	mu     sync.Mutex
	counts map[uint]int64
	// seen dedups viewers within the current flush window only; it resets
	// on drain, so the same viewer counts again next window.
	seen map[string]map[uint]struct{}
}

func NewMemory() *Memory {
	return &Memory{
		counts: make(map[uint]int64),
		seen:   make(map[string]map[uint]struct{}),
	}
}

// Record adds one pending view per post not yet seen from this
// fingerprint in the current window. An empty fingerprint skips dedup
// (opaque key unavailable) but still counts.
func (m *Memory) Record(postIDs []uint, fingerprint string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var seen map[uint]struct{}
	if fingerprint != "" {
		seen = m.seen[fingerprint]
		if seen == nil {
			seen = make(map[uint]struct{})
			m.seen[fingerprint] = seen
		}
	}

	for _, id := range postIDs {
		if seen != nil {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
		}
		m.counts[id]++
	}
}

// DrainAll returns the accumulation and resets both the counts and the
// dedup window.
func (m *Memory) DrainAll() map[uint]int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := m.counts
	m.counts = make(map[uint]int64)
	m.seen = make(map[string]map[uint]struct{})
	return out
}

// Restore merges a failed flush batch back in. The dedup window is not
// resurrected; double-counting a viewer across a failed flush is harmless.
func (m *Memory) Restore(counts map[uint]int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, n := range counts {
		m.counts[id] += n
	}
}

var (
	_ Cache    = (*Memory)(nil)
	_ Restorer = (*Memory)(nil)
)
