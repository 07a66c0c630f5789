// Package cogroup implements the batch-mode co-group operator of
// spec.md section 4.4.5: n input ordinals, each with its own key
// extractor and accumulate function, folding into one accumulator per
// observed key and emitting on EOF of every input.
package cogroup

import (
	"fmt"

	"github.com/riverwork/corestream/pkg/inbox"
	"github.com/riverwork/corestream/pkg/item"
	"github.com/riverwork/corestream/pkg/outbox"
	"github.com/riverwork/corestream/pkg/processor"
	"github.com/riverwork/corestream/pkg/snapshot"
	"github.com/riverwork/corestream/pkg/traverser"
)

// cogroupSnap is one snapshot record. A meta record (IsMeta true) carries
// the per-ordinal completed flags once per capture; every other record
// carries one key's accumulator.
type cogroupSnap[K comparable, A any] struct {
	IsMeta      bool
	Completed   []bool
	AllComplete bool
	Key         K
	Acc         A
}

// metaSnapKey is reserved for the single per-capture meta record; actual
// keys are written under the "data:" prefix so a key whose fmt-rendered
// form happens to be "meta" can never collide with it.
const metaSnapKey = "meta"

// CoGroup co-groups up to len(KeyFns) ordinals of the same item type T —
// the shape the Processor contract's single In type admits — into one
// accumulator per key, finished only once every input ordinal has
// completed (spec.md's batch-mode EOF emission).
type CoGroup[K comparable, T, A, R any] struct {
	keyFns []func(T) K
	accFns []func(A, T) A
	op     struct {
		Create func() A
		Finish func(A) R
	}

	data     map[K]A
	keyOrder []K

	completed   []bool
	allComplete bool

	out *outbox.Outbox[item.KeyedEntry[K, R]]
	ctx processor.Context

	pending traverser.Traverser[item.KeyedEntry[K, R]]

	snapWriter  *snapshot.KeyWriter[item.KeyedEntry[K, R]]
	snapPending []cogroupSnap[K, A]
	snapActive  bool
}

// New builds a CoGroup operator. keyFns and accFns must have one entry
// per input ordinal; createAcc builds a fresh accumulator for a newly
// observed key, finish projects the final accumulator to a result.
func New[K comparable, T, A, R any](
	keyFns []func(T) K,
	accFns []func(A, T) A,
	createAcc func() A,
	finish func(A) R,
) *CoGroup[K, T, A, R] {
	var g = &CoGroup[K, T, A, R]{
		keyFns:    keyFns,
		accFns:    accFns,
		data:      make(map[K]A),
		completed: make([]bool, len(keyFns)),
	}
	g.op.Create = createAcc
	g.op.Finish = finish
	return g
}

func (g *CoGroup[K, T, A, R]) Init(out *outbox.Outbox[item.KeyedEntry[K, R]], ctx processor.Context) error {
	g.out, g.ctx = out, ctx
	return nil
}

func (g *CoGroup[K, T, A, R]) IsCooperative() bool { return true }

func (g *CoGroup[K, T, A, R]) Process(ordinal int, in *inbox.Inbox[T]) error {
	in.DrainTo(func(e inbox.Entry[T]) bool {
		if e.IsWM {
			// Co-group is batch-mode: intermediate watermarks carry no
			// emission meaning here, only EOF (CompleteEdge/Complete)
			// does, per spec.md section 4.4.5.
			return true
		}
		var k = g.keyFns[ordinal](e.Item)
		var acc, ok = g.data[k]
		if !ok {
			acc = g.op.Create()
			g.keyOrder = append(g.keyOrder, k)
		}
		g.data[k] = g.accFns[ordinal](acc, e.Item)
		return true
	})
	return nil
}

func (g *CoGroup[K, T, A, R]) TryProcess() (bool, error) { return true, nil }

func (g *CoGroup[K, T, A, R]) CompleteEdge(ordinal int) (bool, error) {
	g.completed[ordinal] = true
	return true, nil
}

func (g *CoGroup[K, T, A, R]) drainPending() bool {
	for g.pending != nil {
		var v, ok = g.pending.Next()
		if !ok {
			g.pending = nil
			break
		}
		if !g.out.Offer(0, v) {
			g.pending = traverser.Prefix([]item.KeyedEntry[K, R]{v}, g.pending)
			return false
		}
	}
	return true
}

func (g *CoGroup[K, T, A, R]) Complete() (bool, error) {
	if !g.allComplete {
		g.allComplete = true
		var keys = g.keyOrder
		g.pending = traverser.Func[item.KeyedEntry[K, R]](func() (item.KeyedEntry[K, R], bool) {
			if len(keys) == 0 {
				var zero item.KeyedEntry[K, R]
				return zero, false
			}
			var k = keys[0]
			keys = keys[1:]
			return item.KeyedEntry[K, R]{Key: k, Value: g.op.Finish(g.data[k])}, true
		})
	}
	return g.drainPending(), nil
}

// SaveSnapshot streams a single meta record (per-ordinal completed
// flags, allComplete) followed by one record per retained key, so a
// restore mid-batch resumes with both the partial accumulators and the
// EOF bookkeeping intact.
func (g *CoGroup[K, T, A, R]) SaveSnapshot(out *outbox.Outbox[item.KeyedEntry[K, R]]) (bool, error) {
	if g.snapWriter == nil {
		g.snapWriter = snapshot.NewKeyWriter[item.KeyedEntry[K, R]](g.ctx.VertexName, snapshot.JSONCodec{})
	}
	if !g.snapActive {
		g.snapActive = true
		g.snapWriter.Reset()
		g.snapPending = g.snapPending[:0]
		g.snapPending = append(g.snapPending, cogroupSnap[K, A]{
			IsMeta:      true,
			Completed:   append([]bool(nil), g.completed...),
			AllComplete: g.allComplete,
		})
		for _, k := range g.keyOrder {
			g.snapPending = append(g.snapPending, cogroupSnap[K, A]{Key: k, Acc: g.data[k]})
		}
	}
	for len(g.snapPending) > 0 {
		var snap = g.snapPending[0]
		var snapKey = metaSnapKey
		if !snap.IsMeta {
			snapKey = fmt.Sprintf("data:%v", snap.Key)
		}
		var ok, err = g.snapWriter.Offer(out, snapKey, snap)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
		g.snapPending = g.snapPending[1:]
	}
	g.snapActive = false
	return true, nil
}

// RestoreSnapshot rebuilds data/keyOrder/completed directly from each
// record; the meta record can arrive in any position relative to the
// per-key records since they touch disjoint fields.
func (g *CoGroup[K, T, A, R]) RestoreSnapshot(in *inbox.Inbox[outbox.SnapshotEntry]) error {
	var restoreErr error
	in.DrainTo(func(e inbox.Entry[outbox.SnapshotEntry]) bool {
		if e.IsWM {
			return true
		}
		var snap cogroupSnap[K, A]
		if err := (snapshot.JSONCodec{}).Decode(e.Item.Value, &snap); err != nil {
			restoreErr = err
			return false
		}
		if snap.IsMeta {
			g.completed = snap.Completed
			g.allComplete = snap.AllComplete
			return true
		}
		if _, ok := g.data[snap.Key]; !ok {
			g.keyOrder = append(g.keyOrder, snap.Key)
		}
		g.data[snap.Key] = snap.Acc
		return true
	})
	return restoreErr
}

func (g *CoGroup[K, T, A, R]) FinishSnapshotRestore() (bool, error) { return true, nil }
