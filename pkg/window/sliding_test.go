package window_test

import (
	"testing"

	"github.com/bradleyjkemp/cupaloy"
	"github.com/stretchr/testify/require"

	"github.com/riverwork/corestream/pkg/aggregate"
	"github.com/riverwork/corestream/pkg/harness"
	"github.com/riverwork/corestream/pkg/inbox"
	"github.com/riverwork/corestream/pkg/item"
	"github.com/riverwork/corestream/pkg/outbox"
	"github.com/riverwork/corestream/pkg/window"
)

type tsVal struct {
	ts  int64
	val int64
}

func constKey(tsVal) string { return "k" }

func tsOf(e tsVal) int64 { return e.ts }

func valOf(e tsVal) int64 { return e.val }

// S3: tumbling sum.
func TestSlidingTumblingSum(t *testing.T) {
	var def = window.New(10, 0, 10)
	var op = aggregate.SummingLong(valOf)
	var proc = window.NewSliding[string, tsVal, int64, int64](def, constKey, tsOf, op, true)

	var entries = []inbox.Entry[tsVal]{
		inbox.Data(tsVal{5, 1}),
		inbox.Data(tsVal{7, 2}),
		inbox.Data(tsVal{12, 3}),
		inbox.Data(tsVal{18, 4}),
		inbox.WM[tsVal](100),
	}
	var out = harness.Run[tsVal, item.TimestampedEntry[string, int64]](proc, entries)

	require.Len(t, out, 3)
	require.Equal(t, item.TimestampedEntry[string, int64]{Ts: 10, Key: "k", Value: 3}, out[0].Item)
	require.Equal(t, item.TimestampedEntry[string, int64]{Ts: 20, Key: "k", Value: 7}, out[1].Item)
	require.True(t, out[2].IsWM)
	require.Equal(t, int64(100), out[2].Watermark)

	cupaloy.SnapshotT(t, out)
}

// S4: sliding sum with incremental combine/deduct.
func TestSlidingSum(t *testing.T) {
	var def = window.New(5, 0, 10)
	var op = aggregate.SummingLong(valOf)
	var proc = window.NewSliding[string, tsVal, int64, int64](def, constKey, tsOf, op, true)

	var entries = []inbox.Entry[tsVal]{
		inbox.Data(tsVal{3, 1}),
		inbox.Data(tsVal{7, 1}),
		inbox.Data(tsVal{12, 1}),
		inbox.WM[tsVal](20),
	}
	var out = harness.Run[tsVal, item.TimestampedEntry[string, int64]](proc, entries)

	require.Len(t, out, 5)
	require.Equal(t, item.TimestampedEntry[string, int64]{Ts: 5, Key: "k", Value: 1}, out[0].Item)
	require.Equal(t, item.TimestampedEntry[string, int64]{Ts: 10, Key: "k", Value: 2}, out[1].Item)
	require.Equal(t, item.TimestampedEntry[string, int64]{Ts: 15, Key: "k", Value: 2}, out[2].Item)
	require.Equal(t, item.TimestampedEntry[string, int64]{Ts: 20, Key: "k", Value: 1}, out[3].Item)
	require.True(t, out[4].IsWM)
	require.Equal(t, int64(20), out[4].Watermark)
}

// Frame retention bound (Testable Property 3): after forwarding
// watermark wm, no retained frame has frameEndTs <= wm - windowSize.
func TestSlidingFrameRetentionBound(t *testing.T) {
	var def = window.New(5, 0, 10)
	var op = aggregate.Counting[tsVal]()
	var proc = window.NewSliding[string, tsVal, int64, int64](def, constKey, tsOf, op, true)

	var entries = []inbox.Entry[tsVal]{
		inbox.Data(tsVal{3, 1}),
		inbox.Data(tsVal{7, 1}),
		inbox.Data(tsVal{12, 1}),
		inbox.WM[tsVal](20),
		inbox.Data(tsVal{23, 1}),
		inbox.WM[tsVal](40),
	}
	var out = harness.Run[tsVal, item.TimestampedEntry[string, int64]](proc, entries)
	require.NotEmpty(t, out)
	// Second watermark triggers two more windows (25 and 30): the late
	// frame 25 is the top frame, so the emission bound is 25+10-5 = 30.
	var lastWM = out[len(out)-1]
	require.True(t, lastWM.IsWM)
	require.Equal(t, int64(40), lastWM.Watermark)

	// After wm=40 every frame has frameEndTs <= 40-10, so no key state is
	// retained and a snapshot capture writes no records.
	var snapOut = outbox.New[item.TimestampedEntry[string, int64]](1, 4096)
	var done, err = proc.SaveSnapshot(snapOut)
	require.NoError(t, err)
	require.True(t, done)
	require.Empty(t, snapOut.DrainSnapshot())
}

// Two-stage equivalence (Testable Property 7): accumulate-by-frame then
// combine-to-sliding-window must match a single-stage run on the same
// partitioning. Stage 1 folds events into per-frame partials only (a
// tumbling window at the frame granularity, windowSize == frameSize);
// stage 2 performs the actual cross-frame sliding combination using the
// real window definition — the classic Jet accumulateByFrame +
// combineToSlidingWindow split.
func TestSlidingTwoStageEquivalence(t *testing.T) {
	var def = window.New(5, 0, 10)
	var baseOp = aggregate.SummingLong(valOf)

	var singleStage = window.NewSliding[string, tsVal, int64, int64](def, constKey, tsOf, baseOp, true)
	var entries = []inbox.Entry[tsVal]{
		inbox.Data(tsVal{3, 1}), inbox.Data(tsVal{7, 1}), inbox.Data(tsVal{12, 1}),
		inbox.WM[tsVal](20),
	}
	var wantOut = harness.Run[tsVal, item.TimestampedEntry[string, int64]](singleStage, entries)

	var frameDef = window.New(5, 0, 5)
	var stage1Op = aggregate.Identity[tsVal, int64](baseOp)
	var stage1 = window.NewSliding[string, tsVal, int64, int64](frameDef, constKey, tsOf, stage1Op, false)
	var stage1Out = harness.Run[tsVal, item.TimestampedEntry[string, int64]](stage1, entries)

	var stage1Entries = make([]inbox.Entry[item.TimestampedEntry[string, int64]], 0, len(stage1Out))
	for _, o := range stage1Out {
		if o.IsWM {
			stage1Entries = append(stage1Entries, inbox.WM[item.TimestampedEntry[string, int64]](o.Watermark))
		} else {
			stage1Entries = append(stage1Entries, inbox.Data(o.Item))
		}
	}
	var stage2 = window.NewSlidingStage2[string](def, baseOp)
	var gotOut = harness.Run[item.TimestampedEntry[string, int64], item.TimestampedEntry[string, int64]](stage2, stage1Entries)

	require.Equal(t, len(wantOut), len(gotOut))
	for i := range wantOut {
		require.Equal(t, wantOut[i].IsWM, gotOut[i].IsWM)
		if wantOut[i].IsWM {
			require.Equal(t, wantOut[i].Watermark, gotOut[i].Watermark)
		} else {
			require.Equal(t, wantOut[i].Item, gotOut[i].Item)
		}
	}
}
