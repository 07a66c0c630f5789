package window

import (
	"fmt"
	"sort"

	"github.com/riverwork/corestream/pkg/aggregate"
	"github.com/riverwork/corestream/pkg/inbox"
	"github.com/riverwork/corestream/pkg/item"
	"github.com/riverwork/corestream/pkg/outbox"
	"github.com/riverwork/corestream/pkg/processor"
	"github.com/riverwork/corestream/pkg/snapshot"
	"github.com/riverwork/corestream/pkg/traverser"
)

// frameSnap is one retained frame accumulator within a key's snapshot.
type frameSnap[A any] struct {
	FE  int64
	Acc A
}

// keySnapshot is the (key, value) payload of one snapshot record: a
// single key's entire keyState, self-contained so restore can rebuild it
// without reference to any other record.
type keySnapshot[K comparable, A any] struct {
	Key           K
	Frames        []frameSnap[A]
	NextWinToEmit int64
	TopFrameTs    int64
	Initialized   bool
}

// keyState is the per-key retained state of a Sliding operator: the
// ordered frame accumulators plus bookkeeping for incremental
// combine/deduct maintenance.
type keyState[A any] struct {
	frames        map[int64]A
	frameOrder    []int64 // ascending, kept in sync with frames.
	nextWinToEmit int64
	topFrameTs    int64
	initialized   bool

	// Incremental running accumulator, valid only when Deduct is set.
	running      A
	runningValid bool
}

func newKeyState[A any]() *keyState[A] {
	return &keyState[A]{frames: make(map[int64]A)}
}

func (s *keyState[A]) putFrame(fe int64, a A) {
	if _, ok := s.frames[fe]; !ok {
		// Frames normally arrive in non-decreasing fe order, so
		// append-then-bubble keeps frameOrder sorted cheaply in the
		// common case.
		s.frameOrder = append(s.frameOrder, fe)
		for i := len(s.frameOrder) - 1; i > 0 && s.frameOrder[i-1] > s.frameOrder[i]; i-- {
			s.frameOrder[i-1], s.frameOrder[i] = s.frameOrder[i], s.frameOrder[i-1]
		}
	}
	s.frames[fe] = a
}

func (s *keyState[A]) deleteFramesLE(threshold int64) {
	var kept = s.frameOrder[:0]
	for _, fe := range s.frameOrder {
		if fe <= threshold {
			delete(s.frames, fe)
		} else {
			kept = append(kept, fe)
		}
	}
	s.frameOrder = kept
}

// Sliding is the frame-aligned sliding/tumbling window operator of
// spec.md section 4.4.1. T is the input item type, K the partition key,
// A the accumulator, R the finished result.
type Sliding[K comparable, T, A, R any] struct {
	def         Definition
	keyFn       func(T) K
	tsFn        func(T) int64
	op          aggregate.Operation1[T, A, R]
	isLastStage bool
	// frameKind selects the stage-2 combine reading: the input item's
	// timestamp already IS the frame-end, rather than needing
	// HigherFrameTs applied to an event timestamp.
	frameKind bool

	keys *frameStore[K, A]

	out *outbox.Outbox[item.TimestampedEntry[K, R]]
	ctx processor.Context

	pending      traverser.Traverser[item.TimestampedEntry[K, R]]
	pendingWM    int64
	hasPendingWM bool

	snapWriter *snapshot.KeyWriter[item.TimestampedEntry[K, R]]
	snapKeys   []K
	snapActive bool
}

// NewSliding builds a single-stage sliding window operator.
func NewSliding[K comparable, T, A, R any](
	def Definition,
	keyFn func(T) K,
	tsFn func(T) int64,
	op aggregate.Operation1[T, A, R],
	isLastStage bool,
) *Sliding[K, T, A, R] {
	return &Sliding[K, T, A, R]{
		def: def, keyFn: keyFn, tsFn: tsFn, op: op, isLastStage: isLastStage,
		keys: newFrameStore[K, A](),
	}
}

// NewSlidingStage2 builds the stage-2 combine half of a two-stage
// aggregation (spec.md section 4.4.4): input items are
// TimestampedEntry[K,A] carrying partial accumulators already tagged
// with their frame-end timestamp, and op.Combine replaces op.Accumulate.
func NewSlidingStage2[K comparable, T, A, R any](
	def Definition,
	op aggregate.Operation1[T, A, R],
) *Sliding[K, item.TimestampedEntry[K, A], A, R] {
	var combining = aggregate.AsCombining(op)
	return &Sliding[K, item.TimestampedEntry[K, A], A, R]{
		def:   def,
		keyFn: func(e item.TimestampedEntry[K, A]) K { return e.Key },
		tsFn:  func(e item.TimestampedEntry[K, A]) int64 { return e.Ts },
		op: aggregate.Operation1[item.TimestampedEntry[K, A], A, R]{
			Create:     combining.Create,
			Accumulate: func(a A, e item.TimestampedEntry[K, A]) A { return combining.Combine(a, e.Value) },
			Combine:    combining.Combine,
			Deduct:     combining.Deduct,
			Finish:     combining.Finish,
		},
		isLastStage: true,
		frameKind:   true,
		keys:        newFrameStore[K, A](),
	}
}

func (s *Sliding[K, T, A, R]) Init(out *outbox.Outbox[item.TimestampedEntry[K, R]], ctx processor.Context) error {
	s.out, s.ctx = out, ctx
	return nil
}

func (s *Sliding[K, T, A, R]) IsCooperative() bool { return true }

func (s *Sliding[K, T, A, R]) keyStateFor(k K) *keyState[A] {
	var ks, ok = s.keys.get(k)
	if !ok {
		ks = newKeyState[A]()
		s.keys.put(k, ks)
	}
	return ks
}

func (s *Sliding[K, T, A, R]) accumulate(x T) {
	var ts = s.tsFn(x)
	var fe int64
	if s.frameKind {
		fe = ts
	} else {
		fe = s.def.HigherFrameTs(ts)
	}
	var k = s.keyFn(x)
	var ks = s.keyStateFor(k)
	if !ks.initialized {
		ks.nextWinToEmit = fe
		ks.initialized = true
	}
	if fe > ks.topFrameTs {
		ks.topFrameTs = fe
	}
	var cur, ok = ks.frames[fe]
	if !ok {
		cur = s.op.Create()
	}
	ks.putFrame(fe, s.op.Accumulate(cur, x))
}

// boundWe returns the last window-end for which ks.topFrameTs is still a
// contributing frame: topFrameTs <= we < topFrameTs + WindowSize, on the
// FrameSize grid, so the largest such we is topFrameTs + WindowSize -
// FrameSize.
func (s *Sliding[K, T, A, R]) boundWe(ks *keyState[A]) int64 {
	return ks.topFrameTs + s.def.WindowSize - s.def.FrameSize
}

// foldWindow computes op.Combine over every retained frame with
// we-WindowSize < fe <= we, re-folding from scratch.
func (s *Sliding[K, T, A, R]) foldWindow(ks *keyState[A], we int64) A {
	var acc = s.op.Create()
	var lo = we - s.def.WindowSize
	for _, fe := range ks.frameOrder {
		if fe > lo && fe <= we {
			acc = s.op.Combine(acc, ks.frames[fe])
		}
	}
	return acc
}

// runningAccumulatorFor maintains an incremental per-key running
// accumulator using op.Deduct, advancing it from whatever window was
// last computed up to `we`. This avoids re-folding all retained frames
// on every window when an inverse is available.
func (s *Sliding[K, T, A, R]) runningAccumulatorFor(ks *keyState[A], we int64) A {
	if !ks.runningValid {
		ks.running = s.foldWindow(ks, we)
		ks.runningValid = true
		return ks.running
	}
	var entering, hasEnter = ks.frames[we]
	if hasEnter {
		ks.running = s.op.Combine(ks.running, entering)
	}
	var leaving, hasLeave = ks.frames[we-s.def.WindowSize]
	if hasLeave {
		ks.running = s.op.Deduct(ks.running, leaving)
	}
	return ks.running
}

type slidingWork[K comparable] struct {
	key K
	we  int64
}

// emitWindows builds a Traverser over every TimestampedEntry this
// watermark triggers, across every key, in ascending we; within one we,
// keys follow the frame store's order (least recently used first) — the
// resumable unit that survives a mid-emission backpressure suspension.
func (s *Sliding[K, T, A, R]) emitWindows(wm int64) traverser.Traverser[item.TimestampedEntry[K, R]] {
	var items []slidingWork[K]
	for _, k := range s.keys.keys() {
		var ks, _ = s.keys.get(k)
		if !ks.initialized {
			continue
		}
		var bound = s.boundWe(ks)
		for we := ks.nextWinToEmit; we <= wm && we <= bound; we += s.def.FrameSize {
			items = append(items, slidingWork[K]{key: k, we: we})
		}
	}
	// Stable, so each key's windows keep their ascending order, which the
	// incremental running accumulator depends on.
	sort.SliceStable(items, func(i, j int) bool { return items[i].we < items[j].we })

	return traverser.Func[item.TimestampedEntry[K, R]](func() (item.TimestampedEntry[K, R], bool) {
		if len(items) == 0 {
			var zero item.TimestampedEntry[K, R]
			return zero, false
		}
		var w = items[0]
		items = items[1:]
		var ks, _ = s.keys.get(w.key)

		var acc A
		if s.op.Deduct != nil {
			acc = s.runningAccumulatorFor(ks, w.we)
		} else {
			acc = s.foldWindow(ks, w.we)
		}
		ks.nextWinToEmit = w.we + s.def.FrameSize

		var result R
		if s.isLastStage {
			result = s.op.Finish(acc)
		} else {
			result = any(acc).(R)
		}
		return item.TimestampedEntry[K, R]{Ts: w.we, Key: w.key, Value: result}, true
	})
}

func (s *Sliding[K, T, A, R]) drainPending() bool {
	for s.pending != nil {
		var v, ok = s.pending.Next()
		if !ok {
			s.pending = nil
			break
		}
		if !s.out.Offer(0, v) {
			s.pending = traverser.Prefix([]item.TimestampedEntry[K, R]{v}, s.pending)
			return false
		}
	}
	if s.hasPendingWM {
		if !s.out.OfferWatermark(s.pendingWM) {
			return false
		}
		s.gc(s.pendingWM)
		s.hasPendingWM = false
	}
	return true
}

// gc enforces the frame-retention invariant (spec.md section 3 and
// Testable Property 3): after forwarding watermark wm, delete frames
// with frameEndTs <= wm - windowSize, and drop key tracking entirely
// once a key has no retained frames and nothing left to emit.
func (s *Sliding[K, T, A, R]) gc(wm int64) {
	for _, k := range s.keys.keys() {
		var ks, _ = s.keys.get(k)
		ks.deleteFramesLE(wm - s.def.WindowSize)
		if len(ks.frameOrder) == 0 && ks.nextWinToEmit > s.boundWe(ks) {
			s.keys.delete(k)
		}
	}
}

func (s *Sliding[K, T, A, R]) Process(ordinal int, in *inbox.Inbox[T]) error {
	if !s.drainPending() {
		return nil
	}
	in.DrainTo(func(e inbox.Entry[T]) bool {
		if e.IsWM {
			s.pending = s.emitWindows(e.Watermark)
			s.pendingWM, s.hasPendingWM = e.Watermark, true
			return s.drainPending()
		}
		s.accumulate(e.Item)
		return true
	})
	return nil
}

func (s *Sliding[K, T, A, R]) TryProcess() (bool, error)      { return s.drainPending(), nil }
func (s *Sliding[K, T, A, R]) CompleteEdge(int) (bool, error) { return true, nil }
func (s *Sliding[K, T, A, R]) Complete() (bool, error)        { return s.drainPending(), nil }

// SaveSnapshot streams one record per retained key: spec.md section 8's
// Testable Property 4 (snapshot key uniqueness) is enforced by
// snapshot.KeyWriter, keyed on each K's fmt-rendered identity, which is
// unique for the comparable scalar/struct keys this core's operators
// use. The per-key record is self-contained (frames, emission cursor,
// high-water mark), so restore order across keys does not matter.
func (s *Sliding[K, T, A, R]) SaveSnapshot(out *outbox.Outbox[item.TimestampedEntry[K, R]]) (bool, error) {
	if s.snapWriter == nil {
		s.snapWriter = snapshot.NewKeyWriter[item.TimestampedEntry[K, R]](s.ctx.VertexName, snapshot.JSONCodec{})
	}
	if !s.snapActive {
		s.snapActive = true
		s.snapKeys = append([]K(nil), s.keys.keys()...)
		s.snapWriter.Reset()
	}
	for len(s.snapKeys) > 0 {
		var k = s.snapKeys[0]
		var ks, _ = s.keys.get(k)
		var snap = keySnapshot[K, A]{
			Key: k, NextWinToEmit: ks.nextWinToEmit, TopFrameTs: ks.topFrameTs, Initialized: ks.initialized,
		}
		for _, fe := range ks.frameOrder {
			snap.Frames = append(snap.Frames, frameSnap[A]{FE: fe, Acc: ks.frames[fe]})
		}
		var ok, err = s.snapWriter.Offer(out, fmt.Sprintf("%v", k), snap)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
		s.snapKeys = s.snapKeys[1:]
	}
	s.snapActive = false
	return true, nil
}

// RestoreSnapshot rebuilds keyState directly from each record; no
// derived invariant needs a second pass, so FinishSnapshotRestore is
// trivial.
func (s *Sliding[K, T, A, R]) RestoreSnapshot(in *inbox.Inbox[outbox.SnapshotEntry]) error {
	var restoreErr error
	in.DrainTo(func(e inbox.Entry[outbox.SnapshotEntry]) bool {
		if e.IsWM {
			return true
		}
		var snap keySnapshot[K, A]
		if err := (snapshot.JSONCodec{}).Decode(e.Item.Value, &snap); err != nil {
			restoreErr = err
			return false
		}
		var ks = newKeyState[A]()
		ks.nextWinToEmit, ks.topFrameTs, ks.initialized = snap.NextWinToEmit, snap.TopFrameTs, snap.Initialized
		for _, f := range snap.Frames {
			ks.putFrame(f.FE, f.Acc)
		}
		s.keys.put(snap.Key, ks)
		return true
	})
	return restoreErr
}

func (s *Sliding[K, T, A, R]) FinishSnapshotRestore() (bool, error) { return true, nil }
