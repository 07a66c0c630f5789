// Package session implements the session-window operator of spec.md
// section 4.4.2: per-key disjoint intervals that grow and merge as new
// events arrive, emitted once the watermark passes their end.
package session

import (
	"fmt"

	"github.com/riverwork/corestream/pkg/aggregate"
	"github.com/riverwork/corestream/pkg/inbox"
	"github.com/riverwork/corestream/pkg/item"
	"github.com/riverwork/corestream/pkg/outbox"
	"github.com/riverwork/corestream/pkg/processor"
	"github.com/riverwork/corestream/pkg/snapshot"
	"github.com/riverwork/corestream/pkg/traverser"
)

type interval[A any] struct {
	start, end int64
	acc        A
}

// sessionSnap is one retained session's snapshot record, keyed per
// spec.md section 4.5's Sessions key schema: (partitionKey, sessionStart)
// mapping to (end, accumulator). Self-contained, so restore order across
// records does not matter.
type sessionSnap[K comparable, A any] struct {
	Key   K
	Start int64
	End   int64
	Acc   A
}

// Session is the session-window operator. K is the partition key, T the
// input item type, A the accumulator, R the finished result.
type Session[K comparable, T, A, R any] struct {
	timeout int64
	keyFn   func(T) K
	tsFn    func(T) int64
	op      aggregate.Operation1[T, A, R]

	sessions map[K][]interval[A]
	keyOrder []K

	out *outbox.Outbox[item.SessionEntry[K, R]]
	ctx processor.Context

	pending traverser.Traverser[item.SessionEntry[K, R]]

	snapWriter  *snapshot.KeyWriter[item.SessionEntry[K, R]]
	snapPending []sessionSnap[K, A]
	snapActive  bool
}

// New builds a session-window operator with the given inactivity
// timeout: a session's end is the last event's timestamp plus timeout,
// and it closes once the watermark reaches that end.
func New[K comparable, T, A, R any](
	timeout int64,
	keyFn func(T) K,
	tsFn func(T) int64,
	op aggregate.Operation1[T, A, R],
) *Session[K, T, A, R] {
	return &Session[K, T, A, R]{
		timeout: timeout, keyFn: keyFn, tsFn: tsFn, op: op,
		sessions: make(map[K][]interval[A]),
	}
}

func (s *Session[K, T, A, R]) Init(out *outbox.Outbox[item.SessionEntry[K, R]], ctx processor.Context) error {
	s.out, s.ctx = out, ctx
	return nil
}

func (s *Session[K, T, A, R]) IsCooperative() bool { return true }

// accumulate folds x into the key's session set per spec.md section
// 4.4.2: 0, 1 or 2 existing sessions can overlap [t, t+timeout]; the
// 2-overlap case is the bridging merge.
func (s *Session[K, T, A, R]) accumulate(x T) {
	var t = s.tsFn(x)
	var k = s.keyFn(x)
	var ivs, existed = s.sessions[k]
	if !existed {
		s.keyOrder = append(s.keyOrder, k)
	}

	var lo, hi = t, t + s.timeout
	var firstOverlap = -1
	var lastOverlap = -1
	for i, iv := range ivs {
		if iv.start <= hi && iv.end >= lo {
			if firstOverlap == -1 {
				firstOverlap = i
			}
			lastOverlap = i
		}
	}

	var newStart, newEnd = lo, hi
	var acc A
	switch {
	case firstOverlap == -1:
		acc = s.op.Accumulate(s.op.Create(), x)
	case lastOverlap == firstOverlap:
		var iv = ivs[firstOverlap]
		newStart, newEnd = min64(iv.start, lo), max64(iv.end, hi)
		acc = s.op.Accumulate(iv.acc, x)
	default:
		// Bridging merge: exactly two overlapping sessions (disjoint
		// storage guarantees no more than two can simultaneously
		// overlap a single [t, t+timeout] window).
		var a, b = ivs[firstOverlap], ivs[lastOverlap]
		newStart, newEnd = min64(a.start, lo), max64(b.end, hi)
		acc = s.op.Accumulate(s.op.Combine(a.acc, b.acc), x)
	}

	var merged = interval[A]{start: newStart, end: newEnd, acc: acc}
	var rebuilt = make([]interval[A], 0, len(ivs)-max0(lastOverlap-firstOverlap, 0))
	if firstOverlap == -1 {
		rebuilt = append(rebuilt, ivs...)
		rebuilt = insertSorted(rebuilt, merged)
	} else {
		rebuilt = append(rebuilt, ivs[:firstOverlap]...)
		rebuilt = append(rebuilt, merged)
		rebuilt = append(rebuilt, ivs[lastOverlap+1:]...)
	}
	s.sessions[k] = rebuilt
}

func insertSorted[A any](ivs []interval[A], merged interval[A]) []interval[A] {
	var i = 0
	for i < len(ivs) && ivs[i].start < merged.start {
		i++
	}
	ivs = append(ivs, interval[A]{})
	copy(ivs[i+1:], ivs[i:])
	ivs[i] = merged
	return ivs
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func max0(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// emit builds a Traverser over every session this watermark closes,
// across every key, ascending start within a key; cross-key order is
// implementation-defined per spec.md section 4.4 emission-ordering note.
func (s *Session[K, T, A, R]) emit(wm int64) traverser.Traverser[item.SessionEntry[K, R]] {
	type work struct {
		key K
		iv  interval[A]
	}
	var items []work
	var survivors = s.keyOrder[:0]
	for _, k := range s.keyOrder {
		var ivs = s.sessions[k]
		var kept = ivs[:0]
		for _, iv := range ivs {
			if iv.end <= wm {
				items = append(items, work{key: k, iv: iv})
			} else {
				kept = append(kept, iv)
			}
		}
		if len(kept) == 0 {
			delete(s.sessions, k)
		} else {
			s.sessions[k] = kept
			survivors = append(survivors, k)
		}
	}
	s.keyOrder = survivors

	return traverser.Func[item.SessionEntry[K, R]](func() (item.SessionEntry[K, R], bool) {
		if len(items) == 0 {
			var zero item.SessionEntry[K, R]
			return zero, false
		}
		var w = items[0]
		items = items[1:]
		return item.SessionEntry[K, R]{Start: w.iv.start, End: w.iv.end, Key: w.key, Value: s.op.Finish(w.iv.acc)}, true
	})
}

func (s *Session[K, T, A, R]) drainPending() bool {
	for s.pending != nil {
		var v, ok = s.pending.Next()
		if !ok {
			s.pending = nil
			break
		}
		if !s.out.Offer(0, v) {
			s.pending = traverser.Prefix([]item.SessionEntry[K, R]{v}, s.pending)
			return false
		}
	}
	return true
}

func (s *Session[K, T, A, R]) Process(ordinal int, in *inbox.Inbox[T]) error {
	if !s.drainPending() {
		return nil
	}
	in.DrainTo(func(e inbox.Entry[T]) bool {
		if e.IsWM {
			s.pending = s.emit(e.Watermark)
			if !s.drainPending() {
				return false
			}
			return s.out.OfferWatermark(e.Watermark)
		}
		s.accumulate(e.Item)
		return true
	})
	return nil
}

func (s *Session[K, T, A, R]) TryProcess() (bool, error)      { return s.drainPending(), nil }
func (s *Session[K, T, A, R]) CompleteEdge(int) (bool, error) { return true, nil }
func (s *Session[K, T, A, R]) Complete() (bool, error)        { return s.drainPending(), nil }

// SaveSnapshot streams one record per retained session, keyed on
// "key:sessionStart" so distinct sessions for the same partition key
// each get their own snapshot slot, matching spec.md section 4.5's
// Sessions key schema.
func (s *Session[K, T, A, R]) SaveSnapshot(out *outbox.Outbox[item.SessionEntry[K, R]]) (bool, error) {
	if s.snapWriter == nil {
		s.snapWriter = snapshot.NewKeyWriter[item.SessionEntry[K, R]](s.ctx.VertexName, snapshot.JSONCodec{})
	}
	if !s.snapActive {
		s.snapActive = true
		s.snapWriter.Reset()
		s.snapPending = s.snapPending[:0]
		for _, k := range s.keyOrder {
			for _, iv := range s.sessions[k] {
				s.snapPending = append(s.snapPending, sessionSnap[K, A]{Key: k, Start: iv.start, End: iv.end, Acc: iv.acc})
			}
		}
	}
	for len(s.snapPending) > 0 {
		var snap = s.snapPending[0]
		var snapKey = fmt.Sprintf("%v:%d", snap.Key, snap.Start)
		var ok, err = s.snapWriter.Offer(out, snapKey, snap)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
		s.snapPending = s.snapPending[1:]
	}
	s.snapActive = false
	return true, nil
}

// RestoreSnapshot rebuilds sessions/keyOrder directly from each record;
// records arrive in no particular cross-key order, but within one key
// they must be re-inserted in ascending start order to preserve the
// disjoint-interval invariant accumulate relies on.
func (s *Session[K, T, A, R]) RestoreSnapshot(in *inbox.Inbox[outbox.SnapshotEntry]) error {
	var restoreErr error
	in.DrainTo(func(e inbox.Entry[outbox.SnapshotEntry]) bool {
		if e.IsWM {
			return true
		}
		var snap sessionSnap[K, A]
		if err := (snapshot.JSONCodec{}).Decode(e.Item.Value, &snap); err != nil {
			restoreErr = err
			return false
		}
		var iv = interval[A]{start: snap.Start, end: snap.End, acc: snap.Acc}
		if _, ok := s.sessions[snap.Key]; !ok {
			s.keyOrder = append(s.keyOrder, snap.Key)
		}
		s.sessions[snap.Key] = insertSorted(s.sessions[snap.Key], iv)
		return true
	})
	return restoreErr
}

func (s *Session[K, T, A, R]) FinishSnapshotRestore() (bool, error) { return true, nil }
