package window_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/riverwork/corestream/pkg/aggregate"
	"github.com/riverwork/corestream/pkg/harness"
	"github.com/riverwork/corestream/pkg/inbox"
	"github.com/riverwork/corestream/pkg/item"
	"github.com/riverwork/corestream/pkg/window"
)

// S6: snapshot round-trip for sliding sum. Run S4's first three items,
// snapshot, restore into a fresh instance, then deliver wm=20. Output
// must equal S4's output.
func TestSlidingSnapshotRoundTrip(t *testing.T) {
	var newProc = func() *window.Sliding[string, tsVal, int64, int64] {
		var def = window.New(5, 0, 10)
		var op = aggregate.SummingLong(valOf)
		return window.NewSliding[string, tsVal, int64, int64](def, constKey, tsOf, op, true)
	}

	var proc = newProc()
	var firstHalf = []inbox.Entry[tsVal]{
		inbox.Data(tsVal{3, 1}),
		inbox.Data(tsVal{7, 1}),
		inbox.Data(tsVal{12, 1}),
	}
	var out = harness.Run[tsVal, item.TimestampedEntry[string, int64]](proc, firstHalf)
	require.Empty(t, out) // no watermark yet, nothing emitted

	var restored = harness.SaveAndRestore[tsVal, item.TimestampedEntry[string, int64]](proc, newProc())

	var rest = []inbox.Entry[tsVal]{inbox.WM[tsVal](20)}
	var finalOut = harness.Run[tsVal, item.TimestampedEntry[string, int64]](restored, rest)

	require.Len(t, finalOut, 5)
	require.Equal(t, item.TimestampedEntry[string, int64]{Ts: 5, Key: "k", Value: 1}, finalOut[0].Item)
	require.Equal(t, item.TimestampedEntry[string, int64]{Ts: 10, Key: "k", Value: 2}, finalOut[1].Item)
	require.Equal(t, item.TimestampedEntry[string, int64]{Ts: 15, Key: "k", Value: 2}, finalOut[2].Item)
	require.Equal(t, item.TimestampedEntry[string, int64]{Ts: 20, Key: "k", Value: 1}, finalOut[3].Item)
	require.True(t, finalOut[4].IsWM)
	require.Equal(t, int64(20), finalOut[4].Watermark)
}
