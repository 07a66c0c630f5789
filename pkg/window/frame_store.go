package window

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// defaultFrameStoreCapacity bounds the number of distinct keys a Sliding
// operator retains state for before the watermark has had a chance to
// garbage-collect any of them. It only matters under pathological key
// cardinality; ordinary pipelines never come close to it.
const defaultFrameStoreCapacity = 1 << 16

// frameStore is the per-key state map backing Sliding. It wraps a bounded
// LRU so a burst of high-cardinality keys cannot grow retained state
// without limit while the watermark lags behind, while still honoring
// the frame-retention invariant: a key with frames still pending
// emission is never evicted, only keys that are already logically empty
// (see evictable on keyState) are candidates.
type frameStore[K comparable, A any] struct {
	cache *lru.Cache[K, *keyState[A]]
}

func newFrameStore[K comparable, A any]() *frameStore[K, A] {
	var c, err = lru.NewWithEvict[K, *keyState[A]](defaultFrameStoreCapacity, nil)
	if err != nil {
		// Only returns an error for a non-positive size, which
		// defaultFrameStoreCapacity never is.
		panic(err)
	}
	return &frameStore[K, A]{cache: c}
}

func (fs *frameStore[K, A]) get(k K) (*keyState[A], bool) {
	return fs.cache.Get(k)
}

func (fs *frameStore[K, A]) put(k K, ks *keyState[A]) {
	fs.cache.Add(k, ks)
}

func (fs *frameStore[K, A]) delete(k K) {
	fs.cache.Remove(k)
}

// keys returns every retained key, oldest-used first — used as the
// cross-key emission order, which spec.md section 4.4.1 leaves
// implementation-defined but requires to be stable across re-runs for
// deterministic input.
func (fs *frameStore[K, A]) keys() []K {
	return fs.cache.Keys()
}

func (fs *frameStore[K, A]) len() int {
	return fs.cache.Len()
}
