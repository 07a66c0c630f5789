package transform_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/riverwork/corestream/pkg/harness"
	"github.com/riverwork/corestream/pkg/inbox"
	"github.com/riverwork/corestream/pkg/processor"
	"github.com/riverwork/corestream/pkg/traverser"
	"github.com/riverwork/corestream/pkg/transform"
)

// S1: map identity.
func TestMapIdentity(t *testing.T) {
	var proc = transform.NewMap(func(s string) string { return s })
	var entries = []inbox.Entry[string]{inbox.Data("a"), inbox.Data("b"), inbox.WM[string](5)}
	var out = harness.Run[string, string](proc, entries)

	require.Len(t, out, 3)
	require.Equal(t, "a", out[0].Item)
	require.Equal(t, "b", out[1].Item)
	require.True(t, out[2].IsWM)
	require.Equal(t, int64(5), out[2].Watermark)
}

// S2: filter.
func TestFilterEvens(t *testing.T) {
	var proc = transform.NewFilter(func(n int) bool { return n%2 == 0 })
	var entries = []inbox.Entry[int]{
		inbox.Data(1), inbox.Data(2), inbox.Data(3), inbox.Data(4), inbox.WM[int](1),
	}
	var out = harness.Run[int, int](proc, entries)

	require.Len(t, out, 3)
	require.Equal(t, 2, out[0].Item)
	require.Equal(t, 4, out[1].Item)
	require.True(t, out[2].IsWM)
}

func TestMapFilteringSkipsDeclined(t *testing.T) {
	var proc = transform.NewMapFiltering(func(n int) (int, bool) {
		if n < 0 {
			return 0, false
		}
		return n * 10, true
	})
	var entries = []inbox.Entry[int]{inbox.Data(-1), inbox.Data(2), inbox.Data(-3), inbox.Data(4)}
	var out = harness.Run[int, int](proc, entries)

	require.Len(t, out, 2)
	require.Equal(t, 20, out[0].Item)
	require.Equal(t, 40, out[1].Item)
}

func TestPeekObservesAndForwards(t *testing.T) {
	var seen []string
	var proc = transform.NewPeek(func(s string) { seen = append(seen, s) })
	var entries = []inbox.Entry[string]{inbox.Data("x"), inbox.Data("y")}
	var out = harness.Run[string, string](proc, entries)

	require.Equal(t, []string{"x", "y"}, seen)
	require.Len(t, out, 2)
	require.Equal(t, "x", out[0].Item)
	require.Equal(t, "y", out[1].Item)
}

func TestFlatMapExpandsAndResumesUnderBackpressure(t *testing.T) {
	var proc = transform.NewFlatMap(func(n int) traverser.Traverser[int] {
		return traverser.Slice([]int{n, n})
	})
	var entries = []inbox.Entry[int]{inbox.Data(1), inbox.Data(2), inbox.Data(3)}
	var out = harness.Run[int, int](proc, entries)

	require.Equal(t, []int{1, 1, 2, 2, 3, 3}, itemsOf(out))
}

func TestMapUsingContextReadsVertexName(t *testing.T) {
	var proc = transform.NewMapUsingContext(func(ctx processor.Context, s string) (string, bool) {
		return ctx.VertexName + ":" + s, true
	})
	var entries = []inbox.Entry[string]{inbox.Data("a")}
	var out = harness.Run[string, string](proc, entries)

	require.Len(t, out, 1)
	require.Equal(t, "harness:a", out[0].Item)
}

func itemsOf(out []harness.Output[int]) []int {
	var vs = make([]int, 0, len(out))
	for _, o := range out {
		if !o.IsWM {
			vs = append(vs, o.Item)
		}
	}
	return vs
}
