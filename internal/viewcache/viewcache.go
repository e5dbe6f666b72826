// Package viewcache is the deferred write-back cache for view counters.
// View events are high-frequency and individually worthless, so they are
// coalesced here and applied to the store in one batched transaction per
// flush interval. In-flight increments are lost if the process dies between
// flushes; that is the accepted trade-off for an approximate counter.
package viewcache

// Cache accumulates pending view increments. Record must never block the
// caller or surface an error; DrainAll atomically returns and clears the
// accumulation and is only called by the flush owner.
type Cache interface {
	Record(postIDs []uint, fingerprint string)
	DrainAll() map[uint]int64
}

// Restorer is implemented by caches that can take a failed flush batch
// back, preserving at-least-once flush semantics.
type Restorer interface {
	Restore(counts map[uint]int64)
}
