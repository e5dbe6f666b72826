package viewcache_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/suryabasnet/murmur/internal/viewcache"
)

func TestMemoryRecordDedupsPerFingerprint(t *testing.T) {
	m := viewcache.NewMemory()

	m.Record([]uint{1, 2}, "u:1")
	m.Record([]uint{1, 2}, "u:1") // repeat view, same window
	m.Record([]uint{2}, "u:2")

	got := m.DrainAll()
	assert.Equal(t, map[uint]int64{1: 1, 2: 2}, got)
}

func TestMemoryEmptyFingerprintAlwaysCounts(t *testing.T) {
	m := viewcache.NewMemory()

	m.Record([]uint{7}, "")
	m.Record([]uint{7}, "")

	assert.Equal(t, map[uint]int64{7: 2}, m.DrainAll())
}

func TestMemoryDrainResetsWindow(t *testing.T) {
	m := viewcache.NewMemory()

	m.Record([]uint{5}, "u:1")
	assert.Equal(t, map[uint]int64{5: 1}, m.DrainAll())

	// Drained clean.
	assert.Empty(t, m.DrainAll())

	// Same viewer counts again in the next window.
	m.Record([]uint{5}, "u:1")
	assert.Equal(t, map[uint]int64{5: 1}, m.DrainAll())
}

func TestMemoryRestoreMerges(t *testing.T) {
	m := viewcache.NewMemory()

	m.Record([]uint{1}, "u:1")
	m.Restore(map[uint]int64{1: 3, 9: 2})

	assert.Equal(t, map[uint]int64{1: 4, 9: 2}, m.DrainAll())
}
