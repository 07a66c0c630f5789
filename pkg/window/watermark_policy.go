package window

import "math"

// WatermarkPolicy tracks event-time progress for a single input edge and
// derives a current watermark candidate from it — spec.md section 4.4.3.
// Implementations need not be monotonic themselves; Insert clamps the
// observed sequence to non-decreasing before it ever reaches the outbox.
type WatermarkPolicy interface {
	// OnEvent reports a newly observed event timestamp.
	OnEvent(ts int64)
	// OnTimeout reports wall-clock progress with no new event.
	OnTimeout(nowMs int64)
	// CurrentWatermark returns the policy's current watermark candidate.
	CurrentWatermark() int64
}

// BoundedOutOfOrderness assumes events arrive no more than maxLag behind
// the highest timestamp seen so far; the candidate watermark trails the
// high-water mark by that fixed lag. This is Jet's default policy.
type BoundedOutOfOrderness struct {
	maxLag int64
	top    int64
	seen   bool
}

func NewBoundedOutOfOrderness(maxLag int64) *BoundedOutOfOrderness {
	return &BoundedOutOfOrderness{maxLag: maxLag}
}

func (p *BoundedOutOfOrderness) OnEvent(ts int64) {
	if !p.seen || ts > p.top {
		p.top, p.seen = ts, true
	}
}

func (p *BoundedOutOfOrderness) OnTimeout(int64) {}

func (p *BoundedOutOfOrderness) CurrentWatermark() int64 {
	if !p.seen {
		return minWatermark
	}
	return p.top - p.maxLag
}

// Limiting wraps a delegate policy and forwards OnEvent, OnTimeout and
// CurrentWatermark to it unchanged. It does not advance the watermark
// from wall-clock time: idleMs and the last-event fields are stored but
// not read, so an idle source leaves the watermark where the delegate
// puts it.
type Limiting struct {
	delegate      WatermarkPolicy
	idleMs        int64
	lastEventWall int64
	lastEventTs   int64
	haveEvent     bool
}

func NewLimiting(delegate WatermarkPolicy, idleMs int64) *Limiting {
	return &Limiting{delegate: delegate, idleMs: idleMs}
}

func (p *Limiting) OnEvent(ts int64) {
	p.delegate.OnEvent(ts)
}

func (p *Limiting) OnTimeout(nowMs int64) {
	p.delegate.OnTimeout(nowMs)
}

func (p *Limiting) CurrentWatermark() int64 {
	return p.delegate.CurrentWatermark()
}

// minWatermark is the sentinel "no events observed yet" watermark value;
// it is never itself emitted because CurrentWatermark only returns it
// before the first event, and Insert never emits before the first event.
const minWatermark = int64(math.MinInt64)

// EmissionPolicy decides, given the last emitted watermark and a new
// candidate, whether the candidate should actually be emitted.
type EmissionPolicy interface {
	ShouldEmit(lastEmitted, candidate int64) bool
}

// Unthrottled emits every strictly-increasing candidate.
type Unthrottled struct{}

func (Unthrottled) ShouldEmit(lastEmitted, candidate int64) bool {
	return candidate > lastEmitted
}

// Throttle emits only candidates that land on a stride-aligned grid point
// strictly above lastEmitted, coalescing intermediate advances — mirrors
// Jet's throttling(wmPolicy, frameSize) wrapper.
type Throttle struct {
	Stride int64
}

func (t Throttle) ShouldEmit(lastEmitted, candidate int64) bool {
	if candidate <= lastEmitted {
		return false
	}
	var aligned = candidate - candidate%t.Stride
	return aligned > lastEmitted
}
