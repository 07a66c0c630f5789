// Package harness is the reference executor of spec.md section 9: it
// drives a Processor through init -> {process|tryProcess}* ->
// completeEdge* -> complete*, asserting the Progress Rule (Testable
// Property 1) after every Process call and watermark monotonicity
// (Property 2) over the drained output; CompleteEdge and Complete are
// not checked for progress. It doubles as the executable behavioral spec
// the pkg/window / pkg/session tests run against, and as the
// vehicle for the snapshot round-trip property (5) via SaveAndRestore.
package harness

import (
	"fmt"

	"github.com/riverwork/corestream/pkg/inbox"
	"github.com/riverwork/corestream/pkg/outbox"
	"github.com/riverwork/corestream/pkg/processor"
)

// Output is one emitted record: either a data item or a watermark,
// mirroring inbox.Entry's shape on the output side.
type Output[Out any] struct {
	Item      Out
	Watermark int64
	IsWM      bool
}

func (o Output[Out]) String() string {
	if o.IsWM {
		return fmt.Sprintf("wm=%d", o.Watermark)
	}
	return fmt.Sprintf("%v", o.Item)
}

// outboxCapacity is large enough that no scenario in spec.md section 8
// needs to exercise backpressure to complete; pkg/window and friends are
// exercised against backpressure directly in their own unit tests via a
// capacity-1 outbox instead.
const outboxCapacity = 4096

// Run drives proc against a single input ordinal carrying entries, in
// order, to completion, and returns everything emitted to output ordinal
// 0. It panics on a ContractViolation — progress-rule or watermark-
// monotonicity breakage is always a defect in the operator under test,
// never an expected outcome.
func Run[In, Out any](proc processor.Processor[In, Out], entries []inbox.Entry[In]) []Output[Out] {
	var out = outbox.New[Out](1, outboxCapacity)
	var ctx = processor.Context{VertexName: "harness", SnapshottingEnabled: true}
	if err := proc.Init(out, ctx); err != nil {
		panic(fmt.Errorf("harness: Init: %w", err))
	}

	var box = inbox.New(entries...)
	for !box.IsEmpty() {
		var before = box.Size()
		if err := proc.Process(0, box); err != nil {
			panic(fmt.Errorf("harness: Process: %w", err))
		}
		if box.Size() == before {
			panic(&processor.ContractViolation{Vertex: ctx.VertexName, Reason: "Process made no progress"})
		}
	}

	for {
		var done, err = proc.CompleteEdge(0)
		if err != nil {
			panic(fmt.Errorf("harness: CompleteEdge: %w", err))
		}
		if done {
			break
		}
	}
	for {
		var done, err = proc.Complete()
		if err != nil {
			panic(fmt.Errorf("harness: Complete: %w", err))
		}
		if done {
			break
		}
	}

	return collectAndCheck[Out](out)
}

// collectAndCheck drains output ordinal 0 and asserts Testable Property
// 2: the watermark sequence on the edge is non-decreasing, strictly
// increasing whenever more than one is emitted.
func collectAndCheck[Out any](out *outbox.Outbox[Out]) []Output[Out] {
	var drained = out.Drain(0)
	var results = make([]Output[Out], 0, len(drained))
	var lastWM int64
	var haveWM bool
	for _, e := range drained {
		if e.IsWM {
			if haveWM && e.Watermark <= lastWM {
				panic(&processor.ContractViolation{Reason: fmt.Sprintf("non-monotonic watermark: %d after %d", e.Watermark, lastWM)})
			}
			lastWM, haveWM = e.Watermark, true
			results = append(results, Output[Out]{Watermark: e.Watermark, IsWM: true})
		} else {
			results = append(results, Output[Out]{Item: e.Item})
		}
	}
	return results
}

// SaveAndRestore exercises Testable Property 5: it captures proc's
// snapshot, rebuilds a fresh instance via newProc, restores the
// snapshot into it, and returns the restored instance ready to receive
// the remaining input. Per spec.md section 4.5, this must only be
// called with proc's inbox fully drained.
func SaveAndRestore[In, Out any](proc processor.Processor[In, Out], newProc processor.Processor[In, Out]) processor.Processor[In, Out] {
	var snapOut = outbox.New[Out](1, outboxCapacity)
	for {
		var done, err = proc.SaveSnapshot(snapOut)
		if err != nil {
			panic(fmt.Errorf("harness: SaveSnapshot: %w", err))
		}
		if done {
			break
		}
	}
	var entries = snapOut.DrainSnapshot()

	var restoreCtx = processor.Context{VertexName: "harness-restored", SnapshottingEnabled: true}
	var restoreOut = outbox.New[Out](1, outboxCapacity)
	if err := newProc.Init(restoreOut, restoreCtx); err != nil {
		panic(fmt.Errorf("harness: restored Init: %w", err))
	}

	var snapBox = inbox.New[outbox.SnapshotEntry]()
	for _, e := range entries {
		snapBox.Fill(inbox.Data(e))
	}
	if err := newProc.RestoreSnapshot(snapBox); err != nil {
		panic(fmt.Errorf("harness: RestoreSnapshot: %w", err))
	}
	for {
		var done, err = newProc.FinishSnapshotRestore()
		if err != nil {
			panic(fmt.Errorf("harness: FinishSnapshotRestore: %w", err))
		}
		if done {
			break
		}
	}
	return newProc
}
