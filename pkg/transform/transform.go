// Package transform implements the stateless single-input operators:
// map, filter, flatMap and peek. They ignore watermarks as data but
// forward them in order, per spec.md section 4.3.
package transform

import (
	"github.com/riverwork/corestream/pkg/inbox"
	"github.com/riverwork/corestream/pkg/outbox"
	"github.com/riverwork/corestream/pkg/processor"
	"github.com/riverwork/corestream/pkg/traverser"
)

// Map emits f(item) for every item, skipping it if f returns (zero,
// false) — the "else nothing" case of spec.md section 4.3 expressed
// without relying on nil-able Out.
type Map[In, Out any] struct {
	processor.NopSnapshot[Out]
	f   func(In) (Out, bool)
	out *outbox.Outbox[Out]

	pending Out
	hasPend bool
}

// NewMap builds a Map operator from a total function; every input item
// produces exactly one output item.
func NewMap[In, Out any](f func(In) Out) *Map[In, Out] {
	return &Map[In, Out]{f: func(in In) (Out, bool) { return f(in), true }}
}

// NewMapFiltering builds a Map operator whose function may decline to
// emit for a given input, mirroring Hazelcast Jet's "map returns null"
// convention.
func NewMapFiltering[In, Out any](f func(In) (Out, bool)) *Map[In, Out] {
	return &Map[In, Out]{f: f}
}

func (m *Map[In, Out]) Init(out *outbox.Outbox[Out], _ processor.Context) error {
	m.out = out
	return nil
}

func (m *Map[In, Out]) Process(ordinal int, in *inbox.Inbox[In]) error {
	if m.hasPend {
		if !m.out.Offer(0, m.pending) {
			return nil
		}
		m.hasPend = false
	}
	in.DrainTo(func(e inbox.Entry[In]) bool {
		if e.IsWM {
			return m.out.OfferWatermark(e.Watermark)
		}
		var v, ok = m.f(e.Item)
		if !ok {
			return true
		}
		if m.out.Offer(0, v) {
			return true
		}
		m.pending, m.hasPend = v, true
		return false
	})
	return nil
}

func (m *Map[In, Out]) TryProcess() (bool, error)              { return true, nil }
func (m *Map[In, Out]) CompleteEdge(int) (bool, error)          { return true, nil }
func (m *Map[In, Out]) Complete() (bool, error)                 { return true, nil }
func (m *Map[In, Out]) IsCooperative() bool                     { return true }

// Filter emits item unchanged iff p(item).
type Filter[T any] struct {
	processor.NopSnapshot[T]
	p   func(T) bool
	out *outbox.Outbox[T]

	pending T
	hasPend bool
}

func NewFilter[T any](p func(T) bool) *Filter[T] {
	return &Filter[T]{p: p}
}

func (f *Filter[T]) Init(out *outbox.Outbox[T], _ processor.Context) error {
	f.out = out
	return nil
}

func (f *Filter[T]) Process(ordinal int, in *inbox.Inbox[T]) error {
	if f.hasPend {
		if !f.out.Offer(0, f.pending) {
			return nil
		}
		f.hasPend = false
	}
	in.DrainTo(func(e inbox.Entry[T]) bool {
		if e.IsWM {
			return f.out.OfferWatermark(e.Watermark)
		}
		if !f.p(e.Item) {
			return true
		}
		if f.out.Offer(0, e.Item) {
			return true
		}
		f.pending, f.hasPend = e.Item, true
		return false
	})
	return nil
}

func (f *Filter[T]) TryProcess() (bool, error)     { return true, nil }
func (f *Filter[T]) CompleteEdge(int) (bool, error) { return true, nil }
func (f *Filter[T]) Complete() (bool, error)        { return true, nil }
func (f *Filter[T]) IsCooperative() bool            { return true }

// Peek passes every item through unchanged, invoking observe as a side
// effect first. Present in the original Jet design but dropped by the
// distillation; commonly paired with Map for debugging and metrics taps.
type Peek[T any] struct {
	processor.NopSnapshot[T]
	observe func(T)
	out     *outbox.Outbox[T]

	pending T
	hasPend bool
}

func NewPeek[T any](observe func(T)) *Peek[T] {
	return &Peek[T]{observe: observe}
}

func (p *Peek[T]) Init(out *outbox.Outbox[T], _ processor.Context) error {
	p.out = out
	return nil
}

func (p *Peek[T]) Process(ordinal int, in *inbox.Inbox[T]) error {
	if p.hasPend {
		if !p.out.Offer(0, p.pending) {
			return nil
		}
		p.hasPend = false
	}
	in.DrainTo(func(e inbox.Entry[T]) bool {
		if e.IsWM {
			return p.out.OfferWatermark(e.Watermark)
		}
		p.observe(e.Item)
		if p.out.Offer(0, e.Item) {
			return true
		}
		p.pending, p.hasPend = e.Item, true
		return false
	})
	return nil
}

func (p *Peek[T]) TryProcess() (bool, error)     { return true, nil }
func (p *Peek[T]) CompleteEdge(int) (bool, error) { return true, nil }
func (p *Peek[T]) Complete() (bool, error)        { return true, nil }
func (p *Peek[T]) IsCooperative() bool            { return true }

// FlatMap expands each item into a Traverser and drains it. If the
// outbox refuses an item mid-traversal, the operator retains the
// traverser and resumes from the refused item on the next Process call —
// the resumability property spec.md section 4.3 requires.
type FlatMap[In, Out any] struct {
	processor.NopSnapshot[Out]
	expand func(In) traverser.Traverser[Out]
	out    *outbox.Outbox[Out]

	cur traverser.Traverser[Out]

	pending Out
	hasPend bool
}

func NewFlatMap[In, Out any](expand func(In) traverser.Traverser[Out]) *FlatMap[In, Out] {
	return &FlatMap[In, Out]{expand: expand}
}

func (fm *FlatMap[In, Out]) Init(out *outbox.Outbox[Out], _ processor.Context) error {
	fm.out = out
	return nil
}

// drainCurrent tries to push everything remaining in fm.cur (plus any
// previously-refused pending item) to the outbox. It returns false as
// soon as the outbox refuses, so the caller knows to stop draining the
// inbox and wait for the next callback.
func (fm *FlatMap[In, Out]) drainCurrent() bool {
	if fm.hasPend {
		if !fm.out.Offer(0, fm.pending) {
			return false
		}
		fm.hasPend = false
	}
	for fm.cur != nil {
		var v, ok = fm.cur.Next()
		if !ok {
			fm.cur = nil
			return true
		}
		if !fm.out.Offer(0, v) {
			fm.pending, fm.hasPend = v, true
			return false
		}
	}
	return true
}

func (fm *FlatMap[In, Out]) Process(ordinal int, in *inbox.Inbox[In]) error {
	if !fm.drainCurrent() {
		return nil
	}
	in.DrainTo(func(e inbox.Entry[In]) bool {
		if e.IsWM {
			return fm.out.OfferWatermark(e.Watermark)
		}
		fm.cur = fm.expand(e.Item)
		return fm.drainCurrent()
	})
	return nil
}

func (fm *FlatMap[In, Out]) TryProcess() (bool, error)     { return true, nil }
func (fm *FlatMap[In, Out]) CompleteEdge(int) (bool, error) { return true, nil }
func (fm *FlatMap[In, Out]) Complete() (bool, error)        { return true, nil }
func (fm *FlatMap[In, Out]) IsCooperative() bool            { return true }

// MapUsingContext is a stateless map whose function additionally
// receives the processor.Context, letting the transform vary by
// GlobalProcessorIndex (e.g. round-robin key assignment) without
// becoming stateful.
type MapUsingContext[In, Out any] struct {
	processor.NopSnapshot[Out]
	f   func(processor.Context, In) (Out, bool)
	ctx processor.Context
	out *outbox.Outbox[Out]

	pending Out
	hasPend bool
}

func NewMapUsingContext[In, Out any](f func(processor.Context, In) (Out, bool)) *MapUsingContext[In, Out] {
	return &MapUsingContext[In, Out]{f: f}
}

func (m *MapUsingContext[In, Out]) Init(out *outbox.Outbox[Out], ctx processor.Context) error {
	m.out, m.ctx = out, ctx
	return nil
}

func (m *MapUsingContext[In, Out]) Process(ordinal int, in *inbox.Inbox[In]) error {
	if m.hasPend {
		if !m.out.Offer(0, m.pending) {
			return nil
		}
		m.hasPend = false
	}
	in.DrainTo(func(e inbox.Entry[In]) bool {
		if e.IsWM {
			return m.out.OfferWatermark(e.Watermark)
		}
		var v, ok = m.f(m.ctx, e.Item)
		if !ok {
			return true
		}
		if m.out.Offer(0, v) {
			return true
		}
		m.pending, m.hasPend = v, true
		return false
	})
	return nil
}

func (m *MapUsingContext[In, Out]) TryProcess() (bool, error)     { return true, nil }
func (m *MapUsingContext[In, Out]) CompleteEdge(int) (bool, error) { return true, nil }
func (m *MapUsingContext[In, Out]) Complete() (bool, error)        { return true, nil }
func (m *MapUsingContext[In, Out]) IsCooperative() bool            { return true }
