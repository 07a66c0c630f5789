package window

import (
	"time"

	"github.com/riverwork/corestream/pkg/inbox"
	"github.com/riverwork/corestream/pkg/outbox"
	"github.com/riverwork/corestream/pkg/processor"
)

// Insert is the watermark-insertion operator of spec.md section 4.4.3: it
// derives watermarks from a WatermarkPolicy fed by a per-item timestamp
// extractor, throttles emission through an EmissionPolicy, and guarantees
// the watermark sequence on its output strictly increases.
type Insert[T any] struct {
	processor.NopSnapshot[T]

	getTs  func(T) int64
	policy WatermarkPolicy
	emit   EmissionPolicy
	nowFn  func() int64

	lastEmitted int64
	out         *outbox.Outbox[T]

	pending   T
	hasPend   bool
	pendingWM int64
	hasPendWM bool
}

// NewInsert builds a watermark-insertion operator. nowFn supplies
// wall-clock milliseconds for the tryProcess idle path; pass nil to use
// time.Now, or a fixed function in tests for determinism.
func NewInsert[T any](getTs func(T) int64, policy WatermarkPolicy, emit EmissionPolicy, nowFn func() int64) *Insert[T] {
	if nowFn == nil {
		nowFn = func() int64 { return time.Now().UnixMilli() }
	}
	return &Insert[T]{getTs: getTs, policy: policy, emit: emit, nowFn: nowFn, lastEmitted: minWatermark}
}

func (ins *Insert[T]) Init(out *outbox.Outbox[T], _ processor.Context) error {
	ins.out = out
	return nil
}

func (ins *Insert[T]) IsCooperative() bool { return true }

// tryAdvance emits a watermark for the current policy candidate if the
// emission policy permits, recording it as pendingWM on backpressure.
func (ins *Insert[T]) tryAdvance() {
	var candidate = ins.policy.CurrentWatermark()
	if candidate == minWatermark {
		return
	}
	if ins.emit.ShouldEmit(ins.lastEmitted, candidate) {
		ins.pendingWM, ins.hasPendWM = candidate, true
	}
}

func (ins *Insert[T]) drainPending() bool {
	if ins.hasPendWM {
		if !ins.out.OfferWatermark(ins.pendingWM) {
			return false
		}
		ins.lastEmitted = ins.pendingWM
		ins.hasPendWM = false
	}
	if ins.hasPend {
		if !ins.out.Offer(0, ins.pending) {
			return false
		}
		ins.hasPend = false
	}
	return true
}

func (ins *Insert[T]) Process(ordinal int, in *inbox.Inbox[T]) error {
	if !ins.drainPending() {
		return nil
	}
	in.DrainTo(func(e inbox.Entry[T]) bool {
		if e.IsWM {
			// An upstream watermark is advisory input time, not an
			// emission request; fold it into the policy the same as an
			// event observation so a pre-watermarked upstream still
			// advances this stage.
			ins.policy.OnEvent(e.Watermark)
			return true
		}
		ins.policy.OnEvent(ins.getTs(e.Item))
		ins.tryAdvance()
		if !ins.drainPending() {
			ins.pending, ins.hasPend = e.Item, true
			return false
		}
		if !ins.out.Offer(0, e.Item) {
			ins.pending, ins.hasPend = e.Item, true
			return false
		}
		return true
	})
	return nil
}

func (ins *Insert[T]) TryProcess() (bool, error) {
	if !ins.drainPending() {
		return false, nil
	}
	ins.policy.OnTimeout(ins.nowFn())
	ins.tryAdvance()
	return ins.drainPending(), nil
}

func (ins *Insert[T]) CompleteEdge(int) (bool, error) { return true, nil }
func (ins *Insert[T]) Complete() (bool, error)        { return ins.drainPending(), nil }
