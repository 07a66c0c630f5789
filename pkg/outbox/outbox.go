// Package outbox implements the per-ordinal bounded output conduit a
// processor writes to. Cooperative operators get buckets of capacity 1;
// non-cooperative operators get an effectively unbounded bucket. Offer
// returns false when the bucket is full, signalling the caller to
// suspend and retry on the next callback rather than spin.
package outbox

import "github.com/riverwork/corestream/pkg/inbox"

// SnapshotEntry is a (key, value) pair written to the snapshot bucket by
// saveSnapshot.
type SnapshotEntry struct {
	Key   string
	Value []byte
}

type bucket[T any] struct {
	cap int // 0 means unbounded.
	buf []inbox.Entry[T]
}

func newBucket[T any](capacity int) *bucket[T] {
	return &bucket[T]{cap: capacity}
}

func (b *bucket[T]) offer(e inbox.Entry[T]) bool {
	if b.cap > 0 && len(b.buf) >= b.cap {
		return false
	}
	b.buf = append(b.buf, e)
	return true
}

func (b *bucket[T]) drain() []inbox.Entry[T] {
	var out = b.buf
	b.buf = nil
	return out
}

// Outbox is the full set of output conduits owned by one processor
// instance: one data bucket per ordinal, plus a snapshot bucket.
type Outbox[T any] struct {
	buckets      []*bucket[T]
	snapshot     *bucket[SnapshotEntry]
	pendingBcast []bool // per-ordinal: still needs the in-flight broadcast item.
	bcastItem    inbox.Entry[T]
	bcasting     bool
}

// New returns an Outbox with the given number of data ordinals. capacity
// is the per-bucket capacity: pass 1 for a cooperative operator, 0 for an
// unbounded (non-cooperative) operator. The snapshot bucket shares the
// same capacity, per spec.md section 4.1.
func New[T any](ordinals, capacity int) *Outbox[T] {
	var o = &Outbox[T]{
		buckets:      make([]*bucket[T], ordinals),
		snapshot:     newBucket[SnapshotEntry](capacity),
		pendingBcast: make([]bool, ordinals),
	}
	for i := range o.buckets {
		o.buckets[i] = newBucket[T](capacity)
	}
	return o
}

// Offer attempts to place item on the bucket for ordinal. It returns
// true on acceptance, false if the bucket is full.
func (o *Outbox[T]) Offer(ordinal int, item T) bool {
	return o.buckets[ordinal].offer(inbox.Data(item))
}

// OfferWatermark places a watermark on every data ordinal's channel.
// Watermark items share bucket capacity with data items but travel their
// own monotonic channel: callers must not interleave OfferWatermark with
// a partially-accepted broadcast data Offer.
func (o *Outbox[T]) OfferWatermark(ts int64) bool {
	var ok = true
	for i, b := range o.buckets {
		if !b.offer(inbox.WM[T](ts)) {
			ok = false
		} else {
			_ = i
		}
	}
	return ok
}

// OfferBroadcast offers item to every data ordinal. A partial success
// (some ordinals accept, others are full) is remembered: subsequent calls
// to OfferBroadcast only retry the ordinals that still need the item, so
// the broadcast completes without duplicating delivery to ordinals that
// already accepted it. Returns true only once every ordinal has the item.
func (o *Outbox[T]) OfferBroadcast(item T) bool {
	if !o.bcasting {
		o.bcasting = true
		o.bcastItem = inbox.Data(item)
		for i := range o.pendingBcast {
			o.pendingBcast[i] = true
		}
	}

	var allDone = true
	for i, pending := range o.pendingBcast {
		if !pending {
			continue
		}
		if o.buckets[i].offer(o.bcastItem) {
			o.pendingBcast[i] = false
		} else {
			allDone = false
		}
	}

	if allDone {
		o.bcasting = false
	}
	return allDone
}

// OfferToSnapshot writes a (key, value) pair to the snapshot bucket.
// Returns false if the snapshot bucket is full, applying the same
// backpressure as a data bucket.
func (o *Outbox[T]) OfferToSnapshot(key string, value []byte) bool {
	return o.snapshot.offer(inbox.Data(SnapshotEntry{Key: key, Value: value}))
}

// Drain removes and returns everything buffered for ordinal. Used by the
// harness/engine to move items downstream.
func (o *Outbox[T]) Drain(ordinal int) []inbox.Entry[T] {
	return o.buckets[ordinal].drain()
}

// DrainSnapshot removes and returns everything buffered in the snapshot
// bucket.
func (o *Outbox[T]) DrainSnapshot() []SnapshotEntry {
	var out = o.snapshot.drain()
	var result = make([]SnapshotEntry, len(out))
	for i, e := range out {
		result[i] = e.Item
	}
	return result
}

// Ordinals returns the number of data ordinals this Outbox serves.
func (o *Outbox[T]) Ordinals() int { return len(o.buckets) }
