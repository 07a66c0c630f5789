package cogroup_test

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/riverwork/corestream/pkg/cogroup"
	"github.com/riverwork/corestream/pkg/inbox"
	"github.com/riverwork/corestream/pkg/item"
	"github.com/riverwork/corestream/pkg/outbox"
	"github.com/riverwork/corestream/pkg/processor"
)

type order struct {
	customer string
	amount   int
}

// runCoGroup drives a two-ordinal co-group processor to completion,
// mirroring pkg/harness.Run but across multiple input ordinals (the
// shape pkg/harness's single-ordinal Run cannot express).
func runCoGroup(t *testing.T, proc processor.Processor[order, item.KeyedEntry[string, string]], orders, clicks []inbox.Entry[order]) []item.KeyedEntry[string, string] {
	t.Helper()
	var out = outbox.New[item.KeyedEntry[string, string]](1, 4096)
	require.NoError(t, proc.Init(out, processor.Context{VertexName: "cogroup-test"}))

	var boxes = []*inbox.Inbox[order]{inbox.New(orders...), inbox.New(clicks...)}
	for ord, box := range boxes {
		for !box.IsEmpty() {
			require.NoError(t, proc.Process(ord, box))
		}
		for {
			var done, err = proc.CompleteEdge(ord)
			require.NoError(t, err)
			if done {
				break
			}
		}
	}
	// Nothing is emitted until Complete, after both ordinals reached EOF.
	require.Empty(t, out.Drain(0))
	for {
		var done, err = proc.Complete()
		require.NoError(t, err)
		if done {
			break
		}
	}

	var drained = out.Drain(0)
	var results = make([]item.KeyedEntry[string, string], 0, len(drained))
	for _, e := range drained {
		if !e.IsWM {
			results = append(results, e.Item)
		}
	}
	return results
}

func TestCoGroupEmitsOnceBothOrdinalsComplete(t *testing.T) {
	type acc struct {
		orders int
		clicks int
	}
	var proc = cogroup.New[string, order, acc, string](
		[]func(order) string{
			func(o order) string { return o.customer },
			func(o order) string { return o.customer },
		},
		[]func(acc, order) acc{
			func(a acc, o order) acc { a.orders++; return a },
			func(a acc, o order) acc { a.clicks++; return a },
		},
		func() acc { return acc{} },
		func(a acc) string {
			return strconv.Itoa(a.orders) + "/" + strconv.Itoa(a.clicks)
		},
	)

	var orders = []inbox.Entry[order]{
		inbox.Data(order{customer: "alice", amount: 10}),
		inbox.Data(order{customer: "alice", amount: 20}),
		inbox.Data(order{customer: "bob", amount: 5}),
	}
	var clicks = []inbox.Entry[order]{
		inbox.Data(order{customer: "alice"}),
		inbox.Data(order{customer: "carol"}),
	}

	var out = runCoGroup(t, proc, orders, clicks)
	require.Len(t, out, 3)

	var byKey = make(map[string]string)
	for _, e := range out {
		byKey[e.Key] = e.Value
	}
	require.Equal(t, "2/1", byKey["alice"])
	require.Equal(t, "1/0", byKey["bob"])
	require.Equal(t, "0/1", byKey["carol"])
}

// TestCoGroupSnapshotRoundTrip exercises Testable Property 5 for
// co-group: ordinal 0 is fed and completed, the operator is snapshotted
// and restored into a fresh instance, and only then is ordinal 1 fed and
// completed. The restored instance must retain both the partial
// accumulators from ordinal 0 and its completed flag.
func TestCoGroupSnapshotRoundTrip(t *testing.T) {
	// Exported fields: the snapshot goes through snapshot.JSONCodec,
	// which only encodes exported fields.
	type acc struct {
		Orders int
		Clicks int
	}
	var newProc = func() *cogroup.CoGroup[string, order, acc, string] {
		return cogroup.New[string, order, acc, string](
			[]func(order) string{
				func(o order) string { return o.customer },
				func(o order) string { return o.customer },
			},
			[]func(acc, order) acc{
				func(a acc, o order) acc { a.Orders++; return a },
				func(a acc, o order) acc { a.Clicks++; return a },
			},
			func() acc { return acc{} },
			func(a acc) string {
				return strconv.Itoa(a.Orders) + "/" + strconv.Itoa(a.Clicks)
			},
		)
	}

	var proc = newProc()
	var out = outbox.New[item.KeyedEntry[string, string]](1, 4096)
	require.NoError(t, proc.Init(out, processor.Context{VertexName: "cogroup-snapshot-test"}))

	var orders = inbox.New(
		inbox.Data(order{customer: "alice", amount: 10}),
		inbox.Data(order{customer: "alice", amount: 20}),
		inbox.Data(order{customer: "bob", amount: 5}),
	)
	for !orders.IsEmpty() {
		require.NoError(t, proc.Process(0, orders))
	}
	for {
		var done, err = proc.CompleteEdge(0)
		require.NoError(t, err)
		if done {
			break
		}
	}

	var restored = newProc()
	var restoredOut = outbox.New[item.KeyedEntry[string, string]](1, 4096)
	require.NoError(t, restored.Init(restoredOut, processor.Context{VertexName: "cogroup-snapshot-test-restored"}))
	for {
		var done, err = proc.SaveSnapshot(out)
		require.NoError(t, err)
		if done {
			break
		}
	}
	require.NoError(t, restored.RestoreSnapshot(inbox.New(snapshotEntries(out.DrainSnapshot())...)))
	for {
		var done, err = restored.FinishSnapshotRestore()
		require.NoError(t, err)
		if done {
			break
		}
	}

	var clicks = inbox.New(
		inbox.Data(order{customer: "alice"}),
		inbox.Data(order{customer: "carol"}),
	)
	for !clicks.IsEmpty() {
		require.NoError(t, restored.Process(1, clicks))
	}
	for {
		var done, err = restored.CompleteEdge(1)
		require.NoError(t, err)
		if done {
			break
		}
	}
	for {
		var done, err = restored.Complete()
		require.NoError(t, err)
		if done {
			break
		}
	}

	var drained = restoredOut.Drain(0)
	var byKey = make(map[string]string)
	for _, e := range drained {
		if !e.IsWM {
			byKey[e.Item.Key] = e.Item.Value
		}
	}
	require.Equal(t, "2/1", byKey["alice"])
	require.Equal(t, "1/0", byKey["bob"])
	require.Equal(t, "0/1", byKey["carol"])
}

// snapshotEntries adapts a drained snapshot bucket into inbox entries,
// mirroring pkg/harness.SaveAndRestore's internal plumbing.
func snapshotEntries(entries []outbox.SnapshotEntry) []inbox.Entry[outbox.SnapshotEntry] {
	var result = make([]inbox.Entry[outbox.SnapshotEntry], 0, len(entries))
	for _, e := range entries {
		result = append(result, inbox.Data(e))
	}
	return result
}
